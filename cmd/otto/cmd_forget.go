package main

import (
	"context"
	"fmt"
	"strconv"

	"otto/pkg/memory"

	"github.com/spf13/cobra"
)

// newForgetCmd creates the "otto forget" subcommand.
func newForgetCmd() *cobra.Command {
	return newForgetCmdWithStore(nil)
}

// newForgetCmdWithStore creates the "otto forget" subcommand. A nil store is
// resolved from the default database path at run time.
func newForgetCmdWithStore(store *memory.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <id> [id...]",
		Short: "Delete one or more memories by ID",
		Long:  "Remove memories from the store by their numeric IDs.\nPrints confirmation for each deleted memory.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolveStore(store)
			if err != nil {
				return fmt.Errorf("forget: %w", err)
			}

			ctx := context.Background()
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("forget: invalid id %q: %w", arg, err)
				}
				if err := s.Delete(ctx, id); err != nil {
					return fmt.Errorf("forget: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Forgot memory %d\n", id)
			}
			return nil
		},
	}
}
