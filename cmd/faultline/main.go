package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/faultline/internal/commands"
)

var version = "dev"

func main() {
	commands.Version = version

	root := &cobra.Command{
		Use:   "faultline",
		Short: "Synthetic fault generator for exercising observability pipelines",
		Long: `Faultline simulates a fleet of services that fail on a schedule you control.
Faults carry realistic messages and stack traces and are written to the
configured sinks, so log pipelines, alerting rules and dashboards can be
tested against steady, bursty, ramping or drifting error rates.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		commands.NewInitCmd(),
		commands.NewServeCmd(),
		commands.NewRunCmd(),
		commands.NewTriggerCmd(),
		commands.NewStatusCmd(),
		commands.NewServicesCmd(),
		commands.NewFaultsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
