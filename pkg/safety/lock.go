// Package safety implements the daemon's safety controls: the PID lock
// that keeps two engines off one device, the stop file that requests a
// graceful shutdown from outside the process, and the heartbeat that lets
// `otto status` tell a live daemon from a dead one.
package safety

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// AcquireLock claims the PID file at path for the current process. A lock
// held by a live process is an error; a stale lock left by a dead process
// is replaced.
func AcquireLock(path string) error {
	return acquireLock(path, os.Getpid(), IsProcessAlive)
}

// acquireLock is the testable core: pid and liveness probe are injected.
func acquireLock(path string, pid int, alive func(int) bool) error {
	if holder, err := ReadPID(path); err == nil {
		if alive(holder) {
			return fmt.Errorf("acquire lock %s: held by live process %d", path, holder)
		}
		// Stale lock from a dead process; fall through and replace it.
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o600); err != nil {
		return fmt.Errorf("write lock %s: %w", path, err)
	}
	return nil
}

// ReleaseLock removes the PID file. Idempotent: a missing file is fine.
func ReleaseLock(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release lock %s: %w", path, err)
	}
	return nil
}

// ReadPID reads and parses the PID stored at path.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path) //nolint:gosec // lock path is controlled by the application
	if err != nil {
		return 0, fmt.Errorf("read lock %s: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse lock %s: %w", path, err)
	}
	return pid, nil
}

// IsProcessAlive checks whether a process with the given PID is running.
// On Unix, sending signal 0 checks for existence without actually signaling.
func IsProcessAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
