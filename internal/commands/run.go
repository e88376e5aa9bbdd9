package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/faultline/pkg/types"
)

const runPollInterval = 50 * time.Millisecond

type runOptions struct {
	configPath string
	count      int64
	duration   time.Duration
	seed       uint64
	seedSet    bool
	pattern    string
}

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate faults locally without the HTTP API",
		Long: `Runs the scheduled generator in the foreground and writes events to the
configured sinks. Stops after --count events, after --duration, or on Ctrl-C,
then prints a statistics summary.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.seedSet = cmd.Flags().Changed("seed")
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runRun(ctx, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to faultline.yaml (default ./faultline.yaml)")
	cmd.Flags().Int64VarP(&opts.count, "count", "n", 0, "Stop after this many events (0 means no limit)")
	cmd.Flags().DurationVarP(&opts.duration, "duration", "d", 0, "Stop after this long (0 means no limit)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Seed for reproducible output")
	cmd.Flags().StringVar(&opts.pattern, "pattern", "", "Pattern override: steady, burst, ramp or random")
	return cmd
}

func runRun(ctx context.Context, opts runOptions, out io.Writer) error {
	cfg, _, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.seedSet {
		seed := opts.seed
		cfg.Seed = &seed
	}
	if opts.pattern != "" {
		cfg.Generation.PatternType = types.PatternType(opts.pattern)
	}
	logger := newLogger(cfg.Log, stderr)

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	bg := context.WithoutCancel(ctx)
	rt.dispatcher.Start(bg)
	rt.scheduler.Start(bg)

	poll := time.NewTicker(runPollInterval)
	defer poll.Stop()
wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case <-poll.C:
			if opts.count > 0 && rt.engine.Statistics().TotalEvents >= opts.count {
				break wait
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Stop generating before the snapshot so the summary matches what sinks received.
	rt.scheduler.Stop(shutdownCtx)
	st := rt.engine.Statistics()
	if err := rt.shutdown(shutdownCtx); err != nil {
		return err
	}

	printStats(out, st)
	return nil
}

// printStats renders a statistics snapshot as an aligned summary.
func printStats(w io.Writer, st types.Statistics) {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintln(w, "Statistics:")
	_, _ = fmt.Fprintf(w, "  Events:        %d of %d attempts\n", st.TotalEvents, st.Attempts)
	_, _ = fmt.Fprintf(w, "  Elapsed:       %s\n", (time.Duration(st.ElapsedSeconds * float64(time.Second))).Round(time.Second))
	_, _ = fmt.Fprintf(w, "  Rate:          %.2f events/min\n", st.EventsPerMinute)
	if st.LastEventAt != nil {
		_, _ = fmt.Fprintf(w, "  Last event:    %s\n", st.LastEventAt.Format(time.RFC3339))
	}
	if st.BurstsTriggered > 0 {
		_, _ = fmt.Fprintf(w, "  Bursts:        %d (%d events)\n", st.BurstsTriggered, st.BurstEvents)
	}

	if len(st.BySeverity) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = bold.Fprintln(w, "  By severity:")
		for _, sev := range []types.Severity{types.SeverityCritical, types.SeverityError, types.SeverityWarning, types.SeverityInfo} {
			if n := st.BySeverity[sev]; n > 0 {
				_, _ = fmt.Fprintf(w, "    %-12s %d\n", severityLabel(sev), n)
			}
		}
	}
	printCounts(w, bold, "  By service:", st.ByService)
	printCounts(w, bold, "  By fault kind:", st.ByFaultKind)
	printCounts(w, bold, "  By pattern:", st.ByPattern)
}

func printCounts[K ~string](w io.Writer, bold *color.Color, title string, counts map[K]int64) {
	if len(counts) == 0 {
		return
	}
	keys := make([]K, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	_, _ = fmt.Fprintln(w)
	_, _ = bold.Fprintln(w, title)
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "    %-28s %d\n", k, counts[k])
	}
}

func severityLabel(s types.Severity) string {
	switch s {
	case types.SeverityCritical:
		return color.New(color.FgHiRed, color.Bold).Sprint(string(s))
	case types.SeverityError:
		return color.RedString(string(s))
	case types.SeverityWarning:
		return color.YellowString(string(s))
	default:
		return color.CyanString(string(s))
	}
}
