package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/faultline/internal/config"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter faultline.yaml and example fleet file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(dir, force, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	return cmd
}

func runInit(dir string, force bool, out io.Writer) error {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(out, "Initializing faultline project in %s\n", dir)

	fleetDir := filepath.Join(dir, "fleet")
	if err := os.MkdirAll(fleetDir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", fleetDir, err)
	}

	files := []struct {
		path    string
		content string
	}{
		{filepath.Join(dir, config.FileName), starterConfig},
		{filepath.Join(fleetDir, "inventory.yaml"), starterFleet},
	}
	for _, f := range files {
		if !force {
			if _, err := os.Stat(f.path); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", f.path)
			} else if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("checking %s: %w", f.path, err)
			}
		}
		if err := os.WriteFile(f.path, []byte(f.content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", f.path, err)
		}
		_, _ = fmt.Fprintf(out, "%s %s\n", color.GreenString("  ✓"), f.path)
	}

	_, _ = fmt.Fprintln(out)
	_, _ = bold.Fprintln(out, "Next steps:")
	_, _ = fmt.Fprintf(out, "  cd %s\n", dir)
	_, _ = fmt.Fprintln(out, "  faultline services")
	_, _ = fmt.Fprintln(out, "  faultline serve")
	return nil
}

const starterConfig = `server:
  addr: ":8080"
  # api_key: change-me

# seed: 42

fleet_dirs:
  - ./fleet

generation:
  error_probability: 0.05
  warning_probability: 0.15
  critical_probability: 0.01
  generation_interval_seconds: 2
  enabled_services: []
  pattern_type: steady
  burst:
    quiet_seconds: 10
    burst_seconds: 2
    quiet_probability: 0.01
    burst_probability: 0.9
  ramp:
    floor_probability: 0
    ceiling_probability: 0.5
    duration_seconds: 300
  random_walk:
    step: 0.02
    max_deviation: 0.1
  time_shaping:
    enabled: false
    peak_hours:
      - {start: 9, end: 12}
      - {start: 14, end: 17}
    peak_factor: 0.7
    night_reduction: 0.7
    weekend_reduction: 0.5
    jitter: 0.2

scheduler:
  autostart: true

sinks:
  - type: console
  - type: file
    path: ./logs/faultline.jsonl
  # - type: webhook
  #   url: http://localhost:9000/ingest
  #   min_severity: error
  # - type: redis
  #   addr: localhost:6379
  #   stream: faultline:events

metrics:
  exporter: prometheus

tracing:
  exporter: none

log:
  level: info
  format: text
`

const starterFleet = `services:
  - name: InventoryService
    description: Stock levels and reservations
    operations:
      - name: reserve_stock
        fault_kind: KeyError
        description: hold units for a pending order
      - name: sync_warehouse
        fault_kind: ConnectionError
        description: pull counts from the warehouse system
`
