// Package session tracks phone call lifecycles: deriving call events from
// telephony snapshots, deciding whether to answer, and carrying the
// conversation once a call is picked up.
package session

import (
	"strings"
	"sync"
	"time"

	"otto/pkg/protocol"
	"otto/pkg/watch"
)

// DefaultAutoAnswerDelay is how long a call may ring before the
// auto-answer trigger fires.
const DefaultAutoAnswerDelay = 20 * time.Second

// CallSession is one tracked call. Snapshots returned by the Tracker are
// copies; mutation goes through Tracker methods.
type CallSession struct {
	CallerID     string
	CallerName   string
	Relationship protocol.Relationship
	StartedAt    time.Time
	State        protocol.CallState
	Transcript   []string
	Urgency      float64
	Contact      bool
	Spam         bool

	armed bool // auto-answer trigger already emitted
	ended bool // call_ended already emitted
}

// Tracker owns the live session table. Producers feed it snapshots via
// Observe; handlers running on dispatcher goroutines mutate sessions
// through its methods, so the table is mutex-guarded.
type Tracker struct {
	delay time.Duration

	mu       sync.Mutex
	sessions map[string]*CallSession
}

// NewTracker creates a Tracker with the given auto-answer delay
// (DefaultAutoAnswerDelay when <= 0).
func NewTracker(delay time.Duration) *Tracker {
	if delay <= 0 {
		delay = DefaultAutoAnswerDelay
	}
	return &Tracker{
		delay:    delay,
		sessions: make(map[string]*CallSession),
	}
}

// Observe folds one telephony snapshot into the session table and returns
// the lifecycle events to enqueue:
//   - first ringing sighting of a caller opens a session and emits `call`
//   - a session ringing past the delay emits `call_auto_answer` exactly once
//   - a tracked caller gone from the snapshot (or idle) emits `call_ended`
//     exactly once; the ended handler removes the session afterwards
func (t *Tracker) Observe(now time.Time, sightings []protocol.CallSighting) []protocol.Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	var events []protocol.Event
	present := make(map[string]bool, len(sightings))

	for _, s := range sightings {
		id := s.CallerID()
		if id == "" || idle(s.State) {
			continue
		}
		present[id] = true

		sess, ok := t.sessions[id]
		if !ok {
			if !s.Ringing() {
				// A call the operator placed themselves; not ours to track.
				continue
			}
			rel := Classify(s.Name, 0)
			sess = &CallSession{
				CallerID:     id,
				CallerName:   s.Name,
				Relationship: rel,
				StartedAt:    now,
				State:        protocol.CallRinging,
				Urgency:      BaseUrgency(rel),
				Contact:      s.Contact,
				Spam:         s.Spam,
			}
			t.sessions[id] = sess
			events = append(events, protocol.NewEvent(protocol.KindCall, "phone", map[string]any{
				"caller": id,
				"name":   s.Name,
				"state":  string(protocol.CallRinging),
			}, now, watch.CallPriority(s)))
			continue
		}

		// Duplicate signal for an open session. Arm the auto-answer once
		// the ring has lasted long enough and nothing handled it yet.
		if sess.State == protocol.CallRinging && !sess.armed && !sess.ended && now.Sub(sess.StartedAt) >= t.delay {
			sess.armed = true
			events = append(events, protocol.NewEvent(protocol.KindCallAutoAnswer, "phone", map[string]any{
				"caller": id,
				"name":   sess.CallerName,
			}, now, watch.AutoAnswerPriority))
		}
	}

	for id, sess := range t.sessions {
		if present[id] || sess.ended {
			continue
		}
		sess.ended = true
		events = append(events, protocol.NewEvent(protocol.KindCallEnded, "phone", map[string]any{
			"caller":           id,
			"name":             sess.CallerName,
			"duration_seconds": int(now.Sub(sess.StartedAt).Seconds()),
		}, now, 0.5))
	}

	return events
}

func idle(state string) bool {
	return strings.EqualFold(state, "IDLE")
}

// Snapshot returns a copy of the session for a caller.
func (t *Tracker) Snapshot(callerID string) (CallSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.sessions[callerID]
	if !ok {
		return CallSession{}, false
	}
	return snapshotOf(sess), true
}

// Sessions returns copies of every live session.
func (t *Tracker) Sessions() []CallSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]CallSession, 0, len(t.sessions))
	for _, sess := range t.sessions {
		out = append(out, snapshotOf(sess))
	}
	return out
}

// Len returns the number of live sessions.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Transition moves a session from one state to another. It returns false
// when the session is missing or not in the expected state, which makes
// handler races (two goroutines picking up the same trigger) harmless.
func (t *Tracker) Transition(callerID string, from, to protocol.CallState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.sessions[callerID]
	if !ok || sess.State != from {
		return false
	}
	sess.State = to
	return true
}

// Reclassify updates a session's relationship and resets its urgency to
// the relationship's base.
func (t *Tracker) Reclassify(callerID string, rel protocol.Relationship) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.sessions[callerID]
	if !ok {
		return false
	}
	sess.Relationship = rel
	sess.Urgency = BaseUrgency(rel)
	return true
}

// AppendTranscript adds one line to a session's transcript.
func (t *Tracker) AppendTranscript(callerID, line string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.sessions[callerID]
	if !ok {
		return false
	}
	sess.Transcript = append(sess.Transcript, line)
	return true
}

// Remove drops a session from the table.
func (t *Tracker) Remove(callerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, callerID)
}

func snapshotOf(sess *CallSession) CallSession {
	out := *sess
	out.Transcript = make([]string, len(sess.Transcript))
	copy(out.Transcript, sess.Transcript)
	return out
}
