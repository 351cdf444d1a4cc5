package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// helpText is the categorized help output for "otto help".
const helpText = `Otto: on-device assistant

Lifecycle:
  run        Run the assistant in the foreground
  stop       Graceful shutdown via the stop file

Monitoring:
  status     Show daemon health and event counts
  logs       Query and tail the engine event log
  dash       Launch interactive dashboard

Actions:
  tools      List the action catalog with risk and binding
  policy     Show the active risk policy (and check single tools)

Memory:
  remember   Store a memory
  recall     Search memories
  forget     Delete memories by ID
  memories   Browse and maintain the memory store

Use "otto <command> --help" for detailed usage of any command.
`

// newHelpCmd creates the "otto help" subcommand that displays a categorized
// overview. When called with an argument (e.g. "otto help status"), it falls
// through to cobra's built-in per-command help.
func newHelpCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "help [command]",
		Short: "Show categorized command overview",
		Long:  "Displays a categorized overview of all otto subcommands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprint(cmd.OutOrStdout(), helpText)
				return nil
			}

			// Fall through to cobra's per-command help.
			target, _, err := root.Find(args)
			if err != nil || target == nil || target == root {
				return fmt.Errorf("unknown command %q", args[0])
			}
			return target.Help()
		},
	}
}
