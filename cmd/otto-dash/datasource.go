package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"otto/pkg/eventlog"
	"otto/pkg/protocol"
	"otto/pkg/safety"
)

// fetchTimeout bounds one event log round-trip.
const fetchTimeout = 5 * time.Second

// feedLimit is how many recent events the feed view keeps.
const feedLimit = 50

// EngineHealth summarizes daemon liveness for the status bar and health view.
type EngineHealth struct {
	PID            int
	Alive          bool
	HeartbeatFresh bool
	LastBeat       time.Time
}

// defaultOttoHome returns the state directory from env or ~/.otto.
func defaultOttoHome() string {
	if v := os.Getenv("OTTO_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, protocol.OttoDir)
}

// defaultStateDBPath returns the event log path from env or the default.
func defaultStateDBPath() string {
	if v := os.Getenv("OTTO_DB_PATH"); v != "" {
		return v
	}
	return filepath.Join(defaultOttoHome(), protocol.StateDBFile)
}

// fetchHealth reads the lock file and heartbeat. An unreadable lock file
// means the engine is offline, not an error condition.
func fetchHealth() EngineHealth {
	home := defaultOttoHome()
	var h EngineHealth

	pid, err := safety.ReadPID(filepath.Join(home, protocol.PIDFile))
	if err == nil {
		h.PID = pid
		h.Alive = safety.IsProcessAlive(pid)
	}

	beatPath := filepath.Join(home, protocol.HeartbeatFile)
	if beat, err := safety.LastBeat(beatPath); err == nil {
		h.LastBeat = beat
		h.HeartbeatFresh = safety.HeartbeatFresh(beatPath, 0, time.Now())
	}

	return h
}

// fetchEvents reads the newest events from the event log, oldest first.
// Returns nil when the database does not exist yet.
func fetchEvents(dbPath, kind string) ([]eventlog.Entry, error) {
	reader, err := eventlog.NewReader(dbPath)
	if err != nil {
		return nil, nil //nolint:nilerr // no database yet means an empty feed
	}
	defer reader.Close()

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	entries, err := reader.Query(ctx, eventlog.QueryOpts{Kind: kind, Limit: feedLimit})
	if err != nil {
		return nil, err
	}

	// Query returns newest first; the feed renders oldest first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// fetchCounts returns per-kind event totals for the health view.
func fetchCounts(dbPath string) map[string]int {
	reader, err := eventlog.NewReader(dbPath)
	if err != nil {
		return nil
	}
	defer reader.Close()

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	counts, err := reader.CountByKind(ctx)
	if err != nil {
		return nil
	}
	return counts
}
