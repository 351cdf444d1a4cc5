package main

import (
	"context"
	"fmt"
	"strings"

	"otto/pkg/memory"

	"github.com/spf13/cobra"
)

// newRememberCmdWithStore creates the "otto remember" subcommand. A nil store
// is resolved from the default database path at run time.
func newRememberCmdWithStore(store *memory.Store) *cobra.Command {
	var caller string
	var importance float64

	cmd := &cobra.Command{
		Use:   "remember <text>",
		Short: "Store a memory",
		Long:  "Insert a note into the memory store. Use --caller to attach it to\na specific caller and --importance to weight recall ranking.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolveStore(store)
			if err != nil {
				return fmt.Errorf("remember: %w", err)
			}

			content := strings.Join(args, " ")
			id, err := s.Insert(context.Background(), memory.InsertParams{
				Content:    content,
				Type:       "note",
				Caller:     caller,
				Importance: importance,
			})
			if err != nil {
				return fmt.Errorf("remember: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Remembered (id=%d): %s\n", id, content)
			return nil
		},
	}

	cmd.Flags().StringVar(&caller, "caller", "", "caller this memory belongs to")
	cmd.Flags().Float64Var(&importance, "importance", 0.8, "recall weight between 0 and 1")

	return cmd
}
