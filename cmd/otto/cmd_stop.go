package main

import (
	"fmt"

	"otto/pkg/safety"

	"github.com/spf13/cobra"
)

// newStopCmd creates the "otto stop" subcommand.
func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Graceful shutdown of the assistant",
		Long:  "Drops a stop file that the running engine watches for.\nThe engine drains in-flight handlers and exits cleanly.",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}

			status, pid, err := daemonStatus(paths.PIDPath)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()

			switch status {
			case StatusStopped:
				fmt.Fprintln(w, "engine is not running")
				return nil
			case StatusStale:
				fmt.Fprintf(w, "removing stale lock file (PID %d already dead)\n", pid)
				return safety.ReleaseLock(paths.PIDPath)
			case StatusRunning:
				if err := safety.RequestStop(paths.StopPath); err != nil {
					return err
				}
				fmt.Fprintf(w, "stop requested for engine (PID %d)\n", pid)
				return nil
			}

			return nil
		},
	}
}
