package main

import (
	"fmt"

	"otto/internal/version"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root otto command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "otto",
		Short:         "Otto on-device assistant",
		Long:          "otto is the single entry point for the Otto assistant.\nIt watches calls, notifications, and the calendar, and acts on them\nunder an explicit risk policy.",
		Version:       fmt.Sprintf("otto %s", version.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newRunCmd(),
		newStatusCmd(),
		newStopCmd(),
		newLogsCmd(),
		newToolsCmd(),
		newPolicyCmd(),
		newRememberCmdWithStore(nil),
		newRecallCmdWithStore(nil),
		newForgetCmd(),
		newMemoriesCmd(),
		newDashCmd(),
		newHelpCmd(cmd),
	)

	return cmd
}
