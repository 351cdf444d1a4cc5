package main

import (
	"fmt"
	"sort"
	"time"

	"otto/pkg/eventlog"
	"otto/pkg/safety"

	"github.com/spf13/cobra"
)

// newStatusCmd creates the "otto status" subcommand.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show assistant health",
		Long:  "Displays daemon liveness, heartbeat freshness, and event counts\nfrom the engine's event log.",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}

			w := cmd.OutOrStdout()

			status, pid, err := daemonStatus(paths.PIDPath)
			if err != nil {
				return err
			}

			switch status {
			case StatusRunning:
				fmt.Fprintf(w, "engine:    running (PID %d)\n", pid)
			case StatusStale:
				fmt.Fprintf(w, "engine:    stale (PID %d is dead, lock file remains)\n", pid)
			case StatusStopped:
				fmt.Fprintln(w, "engine:    stopped")
			}

			if beat, err := safety.LastBeat(paths.HeartbeatPath); err == nil {
				age := time.Since(beat).Round(time.Second)
				if safety.HeartbeatFresh(paths.HeartbeatPath, 0, time.Now()) {
					fmt.Fprintf(w, "heartbeat: fresh (%s ago)\n", age)
				} else {
					fmt.Fprintf(w, "heartbeat: STALE (%s ago)\n", age)
				}
			} else {
				fmt.Fprintln(w, "heartbeat: none")
			}

			reader, err := eventlog.NewReader(paths.StateDBPath)
			if err != nil {
				fmt.Fprintln(w, "events:    no event log yet")
				return nil
			}
			defer reader.Close()

			counts, err := reader.CountByKind(cmd.Context())
			if err != nil {
				return err
			}
			if len(counts) == 0 {
				fmt.Fprintln(w, "events:    none")
				return nil
			}

			kinds := make([]string, 0, len(counts))
			for k := range counts {
				kinds = append(kinds, k)
			}
			sort.Strings(kinds)

			fmt.Fprintln(w, "events:")
			for _, k := range kinds {
				fmt.Fprintf(w, "  %-20s %d\n", k, counts[k])
			}
			return nil
		},
	}
}
