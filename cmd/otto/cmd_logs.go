package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"otto/pkg/eventlog"

	"github.com/spf13/cobra"
)

// logsConfig holds configuration for the logs command.
type logsConfig struct {
	tail   int
	kind   string
	caller string
	follow bool
}

// newLogsCmd creates the "otto logs" subcommand.
func newLogsCmd() *cobra.Command {
	var cfg logsConfig

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query and tail the engine event log",
		Long:  "Displays events from the engine's event log.\nOptionally filter by kind or caller and follow new events.",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}

			reader, err := eventlog.NewReader(paths.StateDBPath)
			if err != nil {
				return fmt.Errorf("open event log: %w", err)
			}
			defer reader.Close()

			w := cmd.OutOrStdout()

			if cfg.follow {
				return followLogs(cmd.Context(), reader, w, cfg)
			}
			return printLogs(cmd.Context(), reader, w, cfg)
		},
	}

	cmd.Flags().IntVar(&cfg.tail, "tail", 20, "number of recent events to show")
	cmd.Flags().StringVar(&cfg.kind, "kind", "", "filter by event kind (e.g. call, action_executed)")
	cmd.Flags().StringVar(&cfg.caller, "caller", "", "filter call events by caller")
	cmd.Flags().BoolVarP(&cfg.follow, "follow", "f", false, "poll for new events every 1s")

	return cmd
}

// printLogs displays the last N events in chronological order.
func printLogs(ctx context.Context, reader *eventlog.Reader, w io.Writer, cfg logsConfig) error {
	entries, err := reader.Query(ctx, eventlog.QueryOpts{
		Kind:   cfg.kind,
		Caller: cfg.caller,
		Limit:  cfg.tail,
	})
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "no events found")
		return nil
	}

	// Query returns newest first; reverse for chronological display.
	reverseEntries(entries)
	for i := range entries {
		formatEntry(w, &entries[i])
	}
	return nil
}

// followLogs prints the initial tail, then polls for new events.
func followLogs(ctx context.Context, reader *eventlog.Reader, w io.Writer, cfg logsConfig) error {
	entries, err := reader.Query(ctx, eventlog.QueryOpts{
		Kind:   cfg.kind,
		Caller: cfg.caller,
		Limit:  cfg.tail,
	})
	if err != nil {
		return err
	}

	reverseEntries(entries)
	var lastID int64
	for i := range entries {
		formatEntry(w, &entries[i])
		lastID = entries[i].ID
	}

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fresh, err := reader.Query(ctx, eventlog.QueryOpts{
				Kind:   cfg.kind,
				Caller: cfg.caller,
				Limit:  100,
			})
			if err != nil {
				return err
			}
			reverseEntries(fresh)
			for i := range fresh {
				if fresh[i].ID <= lastID {
					continue
				}
				formatEntry(w, &fresh[i])
				lastID = fresh[i].ID
			}
		}
	}
}

// reverseEntries reverses a slice of entries in place.
func reverseEntries(entries []eventlog.Entry) {
	for i := 0; i < len(entries)/2; i++ {
		j := len(entries) - 1 - i
		entries[i], entries[j] = entries[j], entries[i]
	}
}

// formatEntry writes a single event in a human-readable format.
func formatEntry(w io.Writer, e *eventlog.Entry) {
	ts := e.CreatedAt.Format("2006-01-02 15:04:05")
	caller := e.Caller
	if caller == "" {
		caller = "-"
	}
	fmt.Fprintf(w, "%s | %-18s | %-12s | %-14s | %s\n",
		ts, e.Kind, e.Source, caller, e.Payload)
}
