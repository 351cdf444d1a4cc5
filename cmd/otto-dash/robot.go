package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// robotEvent is the JSON shape of one event in the robot snapshot.
type robotEvent struct {
	Kind      string    `json:"kind"`
	Source    string    `json:"source"`
	Caller    string    `json:"caller,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// robotHealth is the JSON shape of the engine section.
type robotHealth struct {
	PID            int  `json:"pid"`
	Alive          bool `json:"alive"`
	HeartbeatFresh bool `json:"heartbeat_fresh"`
}

// robotSnapshot builds one JSON snapshot of engine health, event totals,
// and the recent event feed.
func robotSnapshot() ([]byte, error) {
	health := fetchHealth()
	dbPath := defaultStateDBPath()

	entries, err := fetchEvents(dbPath, "")
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}

	events := make([]robotEvent, 0, len(entries))
	for _, e := range entries {
		events = append(events, robotEvent{
			Kind:      e.Kind,
			Source:    e.Source,
			Caller:    e.Caller,
			Payload:   e.Payload,
			CreatedAt: e.CreatedAt,
		})
	}

	counts := fetchCounts(dbPath)
	if counts == nil {
		counts = map[string]int{}
	}

	snapshot := map[string]any{
		"engine": robotHealth{
			PID:            health.PID,
			Alive:          health.Alive,
			HeartbeatFresh: health.HeartbeatFresh,
		},
		"counts": counts,
		"events": events,
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}
