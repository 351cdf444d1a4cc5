package main

import (
	"fmt"
	"os"

	"otto/internal/version"
	"otto/pkg/config"
	"otto/pkg/deviceprofile"
	"otto/pkg/engine"
	"otto/pkg/safety"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// newRunCmd creates the "otto run" subcommand: the assistant daemon.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the assistant in the foreground",
		Long:  "Starts the watcher, the dispatcher, the language model, and the\noperator console, and blocks until shutdown is requested (signal,\nstop file, /stop command, or POST /shutdown).",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			if err := os.MkdirAll(paths.OttoHome, 0o700); err != nil {
				return fmt.Errorf("create state dir: %w", err)
			}

			cfg, err := config.Load(paths.ConfigPath)
			if err != nil {
				return err
			}
			profile, err := deviceprofile.Load(paths.DeviceProfilePath)
			if err != nil {
				return err
			}

			log := newStartupLog(cmd.ErrOrStderr(), isatty.IsTerminal(os.Stderr.Fd()))
			if profile.Defaulted {
				log.Step("no device profile found, assuming full capabilities")
			}

			// One engine per device. A leftover stop file must not kill
			// the fresh start; clear it before watching.
			if err := safety.AcquireLock(paths.PIDPath); err != nil {
				return err
			}
			defer func() { _ = safety.ReleaseLock(paths.PIDPath) }()
			if err := safety.ClearStop(paths.StopPath); err != nil {
				return err
			}

			stateDB, err := openDB(paths.StateDBPath)
			if err != nil {
				return err
			}
			defer stateDB.Close()

			memoryDB, err := openDB(paths.MemoryDBPath)
			if err != nil {
				return err
			}
			defer memoryDB.Close()

			eng, err := engine.New(engine.Options{
				Config:        cfg,
				Profile:       profile,
				Version:       version.String(),
				StateDB:       stateDB,
				MemoryDB:      memoryDB,
				HeartbeatPath: paths.HeartbeatPath,
				StopPath:      paths.StopPath,
				Log:           log,
			})
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			return eng.Run(ctx)
		},
	}
}
