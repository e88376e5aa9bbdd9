package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/faultline/pkg/types"
)

// Environment defaults for commands that talk to a running server.
const (
	EnvURL    = "FAULTLINE_URL"
	EnvAPIKey = "FAULTLINE_API_KEY"

	defaultURL    = "http://localhost:8080"
	clientTimeout = 10 * time.Second
)

type clientOptions struct {
	url    string
	apiKey string
}

func (o *clientOptions) bind(cmd *cobra.Command) {
	url := os.Getenv(EnvURL)
	if url == "" {
		url = defaultURL
	}
	cmd.Flags().StringVar(&o.url, "url", url, "Base URL of a running faultline server (env "+EnvURL+")")
	cmd.Flags().StringVar(&o.apiKey, "api-key", os.Getenv(EnvAPIKey), "API key sent as X-API-Key (env "+EnvAPIKey+")")
}

// apiClient is a small JSON client for the /api surface.
type apiClient struct {
	base   string
	apiKey string
	http   *http.Client
}

func newAPIClient(o clientOptions) *apiClient {
	return &apiClient{
		base:   strings.TrimRight(o.url, "/"),
		apiKey: o.apiKey,
		http:   &http.Client{Timeout: clientTimeout},
	}
}

// do sends body as JSON when non-nil and decodes a 2xx response into out
// when non-nil. Error responses surface the server's error message.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error  string             `json:"error"`
			Fields []types.FieldError `json:"fields"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		msg := apiErr.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		for _, f := range apiErr.Fields {
			msg += "\n  " + f.Field + ": " + f.Reason
		}
		return fmt.Errorf("%s %s: %s (status %d)", method, path, msg, resp.StatusCode)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
