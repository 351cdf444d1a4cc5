package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"otto/pkg/protocol"
)

// Recorder is the write side of the event log. The dispatcher records every
// event it dequeues; the executor records actions and refusals.
type Recorder struct {
	db *sql.DB
}

// NewRecorder creates a Recorder backed by the given SQLite database.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// EnsureSchema creates the events table if absent.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, protocol.SchemaDDL); err != nil {
		return fmt.Errorf("eventlog schema: %w", err)
	}
	return nil
}

// Record persists one observed event. The payload map is stored as JSON;
// a "caller" payload key is lifted into its own column for filtering.
func (r *Recorder) Record(ctx context.Context, ev protocol.Event) error {
	var payload []byte
	if len(ev.Payload) > 0 {
		var err error
		payload, err = json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (event_id, kind, source, caller, priority, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Kind), ev.Source, ev.PayloadString("caller"), ev.Priority, string(payload))
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}

// RecordNote persists a free-form observability row (engine lifecycle,
// handler faults) that did not travel through the queue.
func (r *Recorder) RecordNote(ctx context.Context, kind protocol.EventKind, source, note string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (kind, source, payload) VALUES (?, ?, ?)`,
		string(kind), source, note)
	if err != nil {
		return fmt.Errorf("log note: %w", err)
	}
	return nil
}
