package protocol

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind classifies an observed signal.
type EventKind string

// Event kinds produced by the watcher and the engine.
const (
	KindCall           EventKind = "call"
	KindCallAutoAnswer EventKind = "call_auto_answer"
	KindCallEnded      EventKind = "call_ended"
	KindCallUtterance  EventKind = "call_utterance"
	KindNotification   EventKind = "notification"
	KindCalendarSoon   EventKind = "calendar_5min"
	KindCalendarUrgent EventKind = "calendar_urgent"
	KindUserMessage    EventKind = "user_message"
)

// Observability-only kinds. These are written to the event log but never
// enqueued for dispatch.
const (
	KindHandlerFault   EventKind = "handler_fault"
	KindEngineStarted  EventKind = "engine_started"
	KindEngineStopped  EventKind = "engine_stopped"
	KindActionExecuted EventKind = "action_executed"
	KindActionRefused  EventKind = "action_refused"
	KindCallState      EventKind = "call_state"
	KindOperatorNote   EventKind = "operator_note"
)

// Event is a normalized record of one observed external signal. Events are
// immutable after creation: producers build them, the dispatcher hands them
// to handlers read-only, and nothing mutates Payload afterwards.
type Event struct {
	ID         string         `json:"id"`
	Kind       EventKind      `json:"kind"`
	Source     string         `json:"source"`
	Payload    map[string]any `json:"payload,omitempty"`
	ObservedAt time.Time      `json:"observed_at"`
	Priority   float64        `json:"priority"`
}

// NewEvent builds an Event with a fresh ID and a priority clamped to [0,1].
func NewEvent(kind EventKind, source string, payload map[string]any, at time.Time, priority float64) Event {
	if priority < 0 {
		priority = 0
	}
	if priority > 1 {
		priority = 1
	}
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Source:     source,
		Payload:    payload,
		ObservedAt: at,
		Priority:   priority,
	}
}

// PayloadString returns the string value stored under key, or "" when the
// key is absent or holds a non-string.
func (e Event) PayloadString(key string) string {
	if e.Payload == nil {
		return ""
	}
	s, _ := e.Payload[key].(string)
	return s
}

// CallState represents where a tracked call is in its lifecycle.
type CallState string

// Call session states.
const (
	CallRinging      CallState = "ringing"
	CallEvaluating   CallState = "evaluating"
	CallAutoAnswered CallState = "auto_answered"
	CallDeclined     CallState = "declined"
	CallActive       CallState = "active"
	CallEnded        CallState = "ended"
)

// Relationship classifies a caller relative to the operator.
type Relationship string

// Caller relationship constants.
const (
	RelFamily       Relationship = "family"
	RelWork         Relationship = "work"
	RelFriend       Relationship = "friend"
	RelAcquaintance Relationship = "acquaintance"
	RelUnknown      Relationship = "unknown"
)

// NoteKind classifies a structured note pushed to the operator.
type NoteKind string

// Note kinds for [OTTO] operator messages.
const (
	NoteCallSummary  NoteKind = "CALL_SUMMARY"
	NoteMissedCall   NoteKind = "MISSED_CALL"
	NoteNotification NoteKind = "NOTIFICATION"
	NoteShutdown     NoteKind = "SHUTDOWN"
	NoteStatus       NoteKind = "STATUS"
)

// FormatOperatorNote produces a structured operator message in the form:
//
//	[OTTO] <KIND>: <summary> — <detail>.
//
// If detail is empty the trailing clause is omitted.
func FormatOperatorNote(kind NoteKind, summary, detail string) string {
	if detail != "" {
		return fmt.Sprintf("[OTTO] %s: %s — %s.", kind, summary, detail)
	}
	return fmt.Sprintf("[OTTO] %s: %s.", kind, summary)
}
