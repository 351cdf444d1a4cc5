package safety

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultStopPollInterval is the fallback poll cadence for the stop file
// when fsnotify misses events or is unavailable.
const DefaultStopPollInterval = 2 * time.Second

// StopWatch waits for a stop file to appear and invokes a callback once.
type StopWatch struct {
	path         string
	pollInterval time.Duration
}

// NewStopWatch creates a StopWatch for the given stop file path.
func NewStopWatch(path string, pollInterval time.Duration) *StopWatch {
	if pollInterval <= 0 {
		pollInterval = DefaultStopPollInterval
	}
	return &StopWatch{path: path, pollInterval: pollInterval}
}

// Run blocks until the stop file appears or ctx is cancelled. When the
// file appears it is removed, onStop is called once, and Run returns.
// Directory events come from fsnotify; a poll ticker is the safety net.
func (s *StopWatch) Run(ctx context.Context, onStop func()) {
	fire := func() {
		_ = os.Remove(s.path)
		if onStop != nil {
			onStop()
		}
	}

	// The file may predate the watch (stop requested before start finished).
	if s.exists() {
		fire()
		return
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// Fallback to pure polling if fsnotify fails.
		s.pollLoop(ctx, ticker, fire)
		return
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		s.pollLoop(ctx, ticker, fire)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-watcher.Events:
			if ev.Name == s.path && s.exists() {
				fire()
				return
			}
		case <-watcher.Errors:
			// Poll ticker covers for a broken watch.
		case <-ticker.C:
			if s.exists() {
				fire()
				return
			}
		}
	}
}

func (s *StopWatch) pollLoop(ctx context.Context, ticker *time.Ticker, fire func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.exists() {
				fire()
				return
			}
		}
	}
}

func (s *StopWatch) exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// RequestStop creates the stop file, asking a running daemon to shut down
// at its next suspension point. Used by `otto stop`.
func RequestStop(path string) error {
	if err := os.WriteFile(path, []byte("stop\n"), 0o600); err != nil {
		return fmt.Errorf("write stop file %s: %w", path, err)
	}
	return nil
}

// ClearStop removes a leftover stop file so a fresh start is not killed
// by a stale request. Idempotent.
func ClearStop(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear stop file %s: %w", path, err)
	}
	return nil
}
