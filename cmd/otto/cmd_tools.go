package main

import (
	"fmt"

	"otto/pkg/action"
	"otto/pkg/actuator"
	"otto/pkg/config"
	"otto/pkg/deviceprofile"
	"otto/pkg/policy"

	"github.com/spf13/cobra"
)

// newToolsCmd creates the "otto tools" subcommand.
func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the action catalog",
		Long:  "Displays every known tool with its risk class and whether the\ncurrent device profile can bind it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			profile, err := deviceprofile.Load(paths.DeviceProfilePath)
			if err != nil {
				return err
			}
			cfg, err := config.Load(paths.ConfigPath)
			if err != nil {
				return err
			}

			reg := action.NewRegistry()
			controller := actuator.NewController(&actuator.ExecCommandRunner{}, profile.Screen)
			if err := actuator.RegisterTools(reg, controller, profile); err != nil {
				return err
			}

			pol := policy.New(cfg.Policy.Deny)

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-24s %-10s %-8s %s\n", "TOOL", "RISK", "BOUND", "POLICY")
			for _, name := range action.Names() {
				bound := "no"
				if reg.Bound(name) {
					bound = "yes"
				}
				gate := "allowed"
				if pol.Denied(name) {
					gate = "denied"
				} else if pol.RiskOf(name) >= policy.High {
					gate = "needs approval"
				}
				fmt.Fprintf(w, "%-24s %-10s %-8s %s\n", name, pol.RiskOf(name), bound, gate)
			}
			return nil
		},
	}
}
