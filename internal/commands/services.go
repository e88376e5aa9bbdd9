package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/faultline/internal/catalog"
	"github.com/dwsmith1983/faultline/pkg/types"
)

// NewServicesCmd creates the services command.
func NewServicesCmd() *cobra.Command {
	var configPath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "services",
		Short: "List simulated services and their operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			reg, err := loadRegistry(cfg.FleetDirs)
			if err != nil {
				return err
			}
			return listServices(cmd.OutOrStdout(), reg.ListServices(), cfg.Generation, asJSON)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to faultline.yaml (default ./faultline.yaml)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func listServices(w io.Writer, services []types.ServiceDescriptor, gen types.GenerationConfig, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(services)
	}

	bold := color.New(color.Bold)
	for _, svc := range services {
		state := color.GreenString("enabled")
		if !gen.ServiceEnabled(svc.Name) {
			state = color.YellowString("disabled")
		}
		_, _ = bold.Fprintf(w, "%s", svc.Name)
		_, _ = fmt.Fprintf(w, "  %s\n", state)
		if svc.Description != "" {
			_, _ = fmt.Fprintf(w, "  %s\n", svc.Description)
		}
		for _, op := range svc.Operations {
			_, _ = fmt.Fprintf(w, "    %-28s %s\n", op.Name, op.FaultKind)
		}
		_, _ = fmt.Fprintln(w)
	}
	return nil
}

// NewFaultsCmd creates the faults command.
func NewFaultsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "faults",
		Short: "List the fault kinds faultline can raise",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listFaults(cmd.OutOrStdout(), catalog.New(), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func listFaults(w io.Writer, cat *catalog.Catalog, asJSON bool) error {
	kinds := cat.Kinds()
	infos := make([]types.FaultKindInfo, 0, len(kinds))
	for _, k := range kinds {
		desc, err := cat.Describe(k)
		if err != nil {
			return err
		}
		infos = append(infos, types.FaultKindInfo{Kind: k, Description: desc})
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}
	for _, info := range infos {
		_, _ = fmt.Fprintf(w, "  %-22s %s\n", color.New(color.Bold).Sprint(string(info.Kind)), info.Description)
	}
	return nil
}
