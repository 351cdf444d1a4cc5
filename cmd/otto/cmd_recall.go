package main

import (
	"context"
	"fmt"
	"strings"

	"otto/pkg/memory"

	"github.com/spf13/cobra"
)

// formatRecallResults formats search results for CLI output.
func formatRecallResults(results []memory.ScoredRecord) string {
	if len(results) == 0 {
		return "No memories found.\n"
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, r.Type, r.Content)
		caller := r.Caller
		if caller == "" {
			caller = "-"
		}
		fmt.Fprintf(&b, "   importance: %.2f | score: %.4f | caller: %s | created: %s\n",
			r.Importance, r.Score, caller, formatCreatedAt(r.CreatedAt))
	}
	return b.String()
}

// formatCreatedAt returns the date portion of a datetime string.
func formatCreatedAt(createdAt string) string {
	if len(createdAt) >= 10 {
		return createdAt[:10]
	}
	return createdAt
}

// newRecallCmdWithStore creates the "otto recall" subcommand. A nil store is
// resolved from the default database path at run time.
func newRecallCmdWithStore(store *memory.Store) *cobra.Command {
	var caller string
	var limit int

	cmd := &cobra.Command{
		Use:   "recall <query>",
		Short: "Search memories",
		Long:  "Search the memory store by text query.\nDisplays top results with type, content, importance, score, and caller.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolveStore(store)
			if err != nil {
				return fmt.Errorf("recall: %w", err)
			}

			query := strings.Join(args, " ")
			results, err := s.Search(context.Background(), query, memory.SearchOpts{
				Limit:  limit,
				Caller: caller,
			})
			if err != nil {
				return fmt.Errorf("recall: %w", err)
			}

			fmt.Fprint(cmd.OutOrStdout(), formatRecallResults(results))
			return nil
		},
	}

	cmd.Flags().StringVar(&caller, "caller", "", "restrict to memories about one caller")
	cmd.Flags().IntVar(&limit, "limit", 5, "maximum number of results")

	return cmd
}
