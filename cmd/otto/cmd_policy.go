package main

import (
	"fmt"
	"sort"

	"otto/pkg/config"
	"otto/pkg/policy"

	"github.com/spf13/cobra"
)

// newPolicyCmd creates the "otto policy" subcommand.
func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Show the active risk policy",
		Long:  "Displays the allow-map with risk classes and the deny-set,\nincluding any deny entries added by configuration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			cfg, err := config.Load(paths.ConfigPath)
			if err != nil {
				return err
			}
			pol := policy.New(cfg.Policy.Deny)

			w := cmd.OutOrStdout()
			allowed := pol.AllowedTools()

			names := make([]string, 0, len(allowed))
			for name := range allowed {
				names = append(names, name)
			}
			sort.Strings(names)

			fmt.Fprintln(w, "allowed:")
			for _, name := range names {
				if pol.Denied(name) {
					continue
				}
				note := ""
				if allowed[name] >= policy.High {
					note = "  (needs approval)"
				}
				fmt.Fprintf(w, "  %-24s %s%s\n", name, allowed[name], note)
			}

			denied := append(policy.DefaultDeny(), cfg.Policy.Deny...)
			sort.Strings(denied)
			fmt.Fprintln(w, "denied:")
			seen := make(map[string]bool, len(denied))
			for _, name := range denied {
				if seen[name] {
					continue
				}
				seen[name] = true
				fmt.Fprintf(w, "  %s\n", name)
			}
			return nil
		},
	}

	cmd.AddCommand(newPolicyCheckCmd())
	return cmd
}

// newPolicyCheckCmd creates the "otto policy check" subcommand.
func newPolicyCheckCmd() *cobra.Command {
	var approved bool

	cmd := &cobra.Command{
		Use:   "check <tool>",
		Short: "Evaluate the policy for one tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pol, err := loadPolicy()
			if err != nil {
				return err
			}

			d := pol.Decide(args[0], approved)
			w := cmd.OutOrStdout()
			if d.Allowed {
				fmt.Fprintf(w, "%s: allowed (risk %s)\n", args[0], d.Risk)
				return nil
			}
			if d.RequiresApproval {
				fmt.Fprintf(w, "%s: refused, operator approval required (risk %s)\n", args[0], d.Risk)
				return nil
			}
			fmt.Fprintf(w, "%s: refused (%s)\n", args[0], d.Reason)
			return nil
		},
	}

	cmd.Flags().BoolVar(&approved, "approved", false, "evaluate as if the operator already approved")
	return cmd
}

// loadPolicy builds the policy engine from the on-disk configuration.
func loadPolicy() (*policy.Engine, error) {
	paths, err := ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}
	cfg, err := config.Load(paths.ConfigPath)
	if err != nil {
		return nil, err
	}
	return policy.New(cfg.Policy.Deny), nil
}
