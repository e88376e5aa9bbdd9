package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/faultline/pkg/types"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var opts clientOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show generator state, pattern and statistics of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), clientTimeout)
			defer cancel()
			return runStatus(ctx, newAPIClient(opts), cmd.OutOrStdout())
		},
	}

	opts.bind(cmd)
	return cmd
}

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Generator string `json:"generator"`
	Uptime    string `json:"uptime"`
	Hostname  string `json:"hostname"`
}

type patternResponse struct {
	Pattern        types.PatternType `json:"pattern"`
	Phase          types.Phase       `json:"phase"`
	PhaseStartedAt time.Time         `json:"phase_started_at"`
}

func runStatus(ctx context.Context, c *apiClient, w io.Writer) error {
	var health healthResponse
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &health); err != nil {
		return err
	}
	var cfg types.GenerationConfig
	if err := c.do(ctx, http.MethodGet, "/api/config", nil, &cfg); err != nil {
		return err
	}
	var pat patternResponse
	if err := c.do(ctx, http.MethodGet, "/api/pattern", nil, &pat); err != nil {
		return err
	}
	var st types.Statistics
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &st); err != nil {
		return err
	}

	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "faultline %s on %s (up %s)\n", health.Version, health.Hostname, health.Uptime)

	gen := color.YellowString("STOPPED")
	if health.Generator == "running" {
		gen = color.GreenString("RUNNING")
	}
	_, _ = fmt.Fprintf(w, "  Generator:     %s every %gs\n", gen, cfg.IntervalSeconds)
	phase := ""
	if pat.Phase != "" {
		phase = fmt.Sprintf(" (%s since %s)", pat.Phase, pat.PhaseStartedAt.Format(time.RFC3339))
	}
	_, _ = fmt.Fprintf(w, "  Pattern:       %s%s\n", pat.Pattern, phase)
	_, _ = fmt.Fprintf(w, "  Probabilities: error=%.3f warning=%.3f critical=%.3f\n",
		cfg.ErrorProbability, cfg.WarningProbability, cfg.CriticalProbability)
	_, _ = fmt.Fprintln(w)

	printStats(w, st)
	return nil
}
