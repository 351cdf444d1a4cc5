package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func TestDaemonStatus(t *testing.T) {
	tmpDir := t.TempDir()
	pidFile := filepath.Join(tmpDir, "otto.pid")

	t.Run("stopped when no lock file", func(t *testing.T) {
		status, pid, err := daemonStatus(pidFile)
		if err != nil {
			t.Fatalf("daemonStatus: %v", err)
		}
		if status != StatusStopped {
			t.Errorf("status = %q, want %q", status, StatusStopped)
		}
		if pid != 0 {
			t.Errorf("pid = %d, want 0", pid)
		}
	})

	t.Run("running when lock holds a live PID", func(t *testing.T) {
		self := os.Getpid()
		if err := os.WriteFile(pidFile, []byte(strconv.Itoa(self)), 0o600); err != nil {
			t.Fatalf("write lock: %v", err)
		}
		defer os.Remove(pidFile)

		status, pid, err := daemonStatus(pidFile)
		if err != nil {
			t.Fatalf("daemonStatus: %v", err)
		}
		if status != StatusRunning {
			t.Errorf("status = %q, want %q", status, StatusRunning)
		}
		if pid != self {
			t.Errorf("pid = %d, want %d", pid, self)
		}
	})

	t.Run("stale when lock holds a dead PID", func(t *testing.T) {
		// Far above any configurable pid_max, so signal 0 reports ESRCH.
		if err := os.WriteFile(pidFile, []byte("999999999"), 0o600); err != nil {
			t.Fatalf("write lock: %v", err)
		}
		defer os.Remove(pidFile)

		status, pid, err := daemonStatus(pidFile)
		if err != nil {
			t.Fatalf("daemonStatus: %v", err)
		}
		if status != StatusStale {
			t.Errorf("status = %q, want %q", status, StatusStale)
		}
		if pid != 999999999 {
			t.Errorf("pid = %d, want 999999999", pid)
		}
	})
}

func TestSignalContext(t *testing.T) {
	t.Run("stop cancels the context", func(t *testing.T) {
		ctx, stop := signalContext(context.Background())
		stop()

		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
			t.Fatal("context not canceled after stop")
		}
	})

	t.Run("parent cancellation propagates", func(t *testing.T) {
		parent, cancel := context.WithCancel(context.Background())
		ctx, stop := signalContext(parent)
		defer stop()

		cancel()

		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
			t.Fatal("context not canceled after parent cancel")
		}
	})
}
