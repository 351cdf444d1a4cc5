package main

import (
	"context"
	"fmt"
	"strings"

	"otto/pkg/memory"

	"github.com/spf13/cobra"
)

// truncateContent truncates s to maxLen characters, appending "..." if truncated.
func truncateContent(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// formatMemoriesTable formats a slice of memories as a tabular string.
func formatMemoriesTable(records []memory.Record) string {
	if len(records) == 0 {
		return "No memories found.\n"
	}

	const maxContent = 60

	var b strings.Builder
	fmt.Fprintf(&b, "%-6s %-16s %-62s %-12s %-10s %s\n", "ID", "TYPE", "CONTENT", "CALLER", "WEIGHT", "CREATED")
	for _, m := range records {
		content := truncateContent(strings.ReplaceAll(m.Content, "\n", " "), maxContent)
		caller := m.Caller
		if caller == "" {
			caller = "-"
		}
		fmt.Fprintf(&b, "%-6d %-16s %-62s %-12s %-10.2f %s\n",
			m.ID, m.Type, content, caller, m.Importance, formatCreatedAt(m.CreatedAt))
	}
	return b.String()
}

// newMemoriesCmd creates the "otto memories" parent command with subcommands.
func newMemoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memories",
		Short: "Browse and manage memories",
		Long:  "Commands for browsing and maintaining the assistant memory store.",
	}

	cmd.AddCommand(
		newMemoriesListCmdWithStore(nil),
		newMemoriesConsolidateCmdWithStore(nil),
	)
	return cmd
}

// newMemoriesListCmdWithStore creates the "otto memories list" subcommand.
// A nil store is resolved from the default database path at run time.
func newMemoriesListCmdWithStore(store *memory.Store) *cobra.Command {
	var typeFilter string
	var callerFilter string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories",
		Long:  "List memories from the store with optional filtering by type and caller.\nOutputs a table with id, type, content (truncated), caller, and importance.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := resolveStore(store)
			if err != nil {
				return fmt.Errorf("memories list: %w", err)
			}

			results, err := s.List(context.Background(), memory.ListOpts{
				Type:   typeFilter,
				Caller: callerFilter,
				Limit:  limit,
			})
			if err != nil {
				return fmt.Errorf("memories list: %w", err)
			}

			fmt.Fprint(cmd.OutOrStdout(), formatMemoriesTable(results))
			return nil
		},
	}

	cmd.Flags().StringVar(&typeFilter, "type", "", "filter by memory type (note|call_summary|call_transcript|action_result|...)")
	cmd.Flags().StringVar(&callerFilter, "caller", "", "filter by caller")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of memories to return")

	return cmd
}

// newMemoriesConsolidateCmdWithStore creates the "otto memories consolidate"
// subcommand. A nil store is resolved from the default database path.
func newMemoriesConsolidateCmdWithStore(store *memory.Store) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Merge duplicates and prune stale memories",
		Long:  "Merges near-duplicate memories and prunes low-weight stale entries.\nWith --dry-run, reports what would change without modifying the store.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := resolveStore(store)
			if err != nil {
				return fmt.Errorf("memories consolidate: %w", err)
			}

			merged, pruned, err := memory.Consolidate(context.Background(), s, memory.ConsolidateOpts{
				DryRun: dryRun,
			})
			if err != nil {
				return fmt.Errorf("memories consolidate: %w", err)
			}

			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "would merge %d duplicates and prune %d stale memories\n", merged, pruned)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "merged %d duplicates, pruned %d stale memories\n", merged, pruned)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without modifying the store")

	return cmd
}
