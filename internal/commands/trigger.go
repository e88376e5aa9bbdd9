package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/faultline/internal/catalog"
	"github.com/dwsmith1983/faultline/internal/config"
	"github.com/dwsmith1983/faultline/internal/engine"
	"github.com/dwsmith1983/faultline/pkg/types"
)

type triggerOptions struct {
	client     clientOptions
	configPath string
	faultKind  string
	local      bool
	asJSON     bool
}

// NewTriggerCmd creates the trigger command.
func NewTriggerCmd() *cobra.Command {
	var opts triggerOptions

	cmd := &cobra.Command{
		Use:   "trigger [service [operation]]",
		Short: "Force one fault now",
		Long: `Forces a single fault, bypassing probability. Service, operation and
--fault-kind narrow the choice; anything left out is picked at random.
By default the request goes to a running server; --local generates the
fault in-process instead.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := types.TriggerRequest{FaultKind: types.FaultKind(opts.faultKind)}
			if len(args) > 0 {
				req.Service = args[0]
			}
			if len(args) > 1 {
				req.Operation = args[1]
			}
			return runTrigger(cmd.Context(), opts, req, cmd.OutOrStdout())
		},
	}

	opts.client.bind(cmd)
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to faultline.yaml, used with --local")
	cmd.Flags().StringVarP(&opts.faultKind, "fault-kind", "k", "", "Fault kind to raise, e.g. ConnectionError")
	cmd.Flags().BoolVar(&opts.local, "local", false, "Generate in-process instead of calling a server")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the event as JSON")
	return cmd
}

func runTrigger(ctx context.Context, opts triggerOptions, req types.TriggerRequest, out io.Writer) error {
	var ev *types.ErrorEvent
	var err error
	if opts.local {
		ev, err = triggerLocal(ctx, opts.configPath, req)
	} else {
		ev, err = triggerRemote(ctx, newAPIClient(opts.client), req)
	}
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(ev)
	}
	printEvent(out, *ev)
	return nil
}

func triggerRemote(ctx context.Context, c *apiClient, req types.TriggerRequest) (*types.ErrorEvent, error) {
	var ev types.ErrorEvent
	var err error
	if req.Service != "" && req.Operation != "" {
		path := "/api/trigger/" + url.PathEscape(req.Service) + "/" + url.PathEscape(req.Operation)
		if req.FaultKind != "" {
			path += "?fault_kind=" + url.QueryEscape(string(req.FaultKind))
		}
		err = c.do(ctx, http.MethodPost, path, nil, &ev)
	} else {
		err = c.do(ctx, http.MethodPost, "/api/trigger", req, &ev)
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// triggerLocal runs one forced attempt against an engine with no sinks.
func triggerLocal(ctx context.Context, configPath string, req types.TriggerRequest) (*types.ErrorEvent, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	reg, err := loadRegistry(cfg.FleetDirs)
	if err != nil {
		return nil, err
	}
	store, err := config.NewStore(cfg.Generation, reg)
	if err != nil {
		return nil, fmt.Errorf("validating generation config: %w", err)
	}

	opts := []engine.Option{engine.WithLogger(newLogger(cfg.Log, stderr))}
	if cfg.Seed != nil {
		opts = append(opts, engine.WithSeed(*cfg.Seed))
	}
	return engine.New(reg, catalog.New(), store, opts...).Trigger(ctx, req)
}

// printEvent writes a coloured header line followed by the stack trace.
func printEvent(w io.Writer, ev types.ErrorEvent) {
	_, _ = fmt.Fprintf(w, "%s %s %s\n",
		severityLabel(ev.Severity),
		color.New(color.Bold).Sprintf("%s.%s", ev.Service, ev.Operation),
		ev.ID,
	)
	_, _ = fmt.Fprintf(w, "  %s: %s\n", ev.FaultKind, ev.Message)
	_, _ = fmt.Fprintf(w, "  source=%s pattern=%s p=%.3f\n\n", ev.Source, ev.Pattern, ev.EffectiveProbability)
	_, _ = fmt.Fprintln(w, ev.StackTrace)
}
