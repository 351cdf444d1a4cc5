package safety

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// Heartbeat timing defaults. The freshness bound is three missed beats.
const (
	DefaultBeatInterval = 5 * time.Second
	DefaultFreshFor     = 15 * time.Second
)

// Heartbeat rewrites a timestamp file on an interval so external tooling
// can tell the daemon is alive without talking to it.
type Heartbeat struct {
	path     string
	interval time.Duration

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// NewHeartbeat creates a Heartbeat writing to path. A non-positive
// interval falls back to DefaultBeatInterval.
func NewHeartbeat(path string, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = DefaultBeatInterval
	}
	return &Heartbeat{path: path, interval: interval, nowFunc: time.Now}
}

// Run beats until ctx is cancelled, then removes the file.
func (h *Heartbeat) Run(ctx context.Context) {
	h.beat()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = os.Remove(h.path)
			return
		case <-ticker.C:
			h.beat()
		}
	}
}

func (h *Heartbeat) beat() {
	stamp := h.nowFunc().UTC().Format(time.RFC3339)
	_ = os.WriteFile(h.path, []byte(stamp+"\n"), 0o600)
}

// LastBeat reads the timestamp from a heartbeat file.
func LastBeat(path string) (time.Time, error) {
	data, err := os.ReadFile(path) //nolint:gosec // heartbeat path is controlled by the application
	if err != nil {
		return time.Time{}, fmt.Errorf("read heartbeat %s: %w", path, err)
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse heartbeat %s: %w", path, err)
	}
	return t, nil
}

// HeartbeatFresh reports whether the heartbeat at path was written within
// maxAge of now. A missing or unparsable file is not fresh.
func HeartbeatFresh(path string, maxAge time.Duration, now time.Time) bool {
	if maxAge <= 0 {
		maxAge = DefaultFreshFor
	}
	last, err := LastBeat(path)
	if err != nil {
		return false
	}
	return now.Sub(last) <= maxAge
}
