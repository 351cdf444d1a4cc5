package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"otto/pkg/safety"
)

// DaemonStatusValue represents the health state of the daemon.
type DaemonStatusValue string

const (
	// StatusRunning means the lock file exists and the process is alive.
	StatusRunning DaemonStatusValue = "running"
	// StatusStopped means no lock file exists.
	StatusStopped DaemonStatusValue = "stopped"
	// StatusStale means the lock file exists but the process is dead.
	StatusStale DaemonStatusValue = "stale"
)

// daemonStatus checks the daemon lock file and process liveness.
// Returns the status, the PID (0 if stopped), and any unexpected error.
func daemonStatus(pidPath string) (status DaemonStatusValue, pid int, err error) {
	pid, err = safety.ReadPID(pidPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return StatusStopped, 0, nil
		}
		return StatusStopped, 0, err
	}

	if safety.IsProcessAlive(pid) {
		return StatusRunning, pid, nil
	}
	return StatusStale, pid, nil
}

// signalContext returns a context that is canceled on SIGTERM or SIGINT.
// The returned stop function releases the signal handler; callers should
// defer it.
func signalContext(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
