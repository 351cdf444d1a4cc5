package protocol

import (
	"testing"
	"time"
)

func TestNewEventClampsPriority(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"negative clamps to zero", -0.5, 0},
		{"above one clamps to one", 1.7, 1},
		{"in range passes through", 0.8, 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := NewEvent(KindCall, "phone", nil, at, tt.in)
			if ev.Priority != tt.want {
				t.Errorf("priority = %v, want %v", ev.Priority, tt.want)
			}
		})
	}
}

func TestNewEventAssignsUniqueIDs(t *testing.T) {
	at := time.Now()
	a := NewEvent(KindNotification, "com.whatsapp", nil, at, 0.7)
	b := NewEvent(KindNotification, "com.whatsapp", nil, at, 0.7)

	if a.ID == "" || b.ID == "" {
		t.Fatal("event ID is empty")
	}
	if a.ID == b.ID {
		t.Errorf("two events share ID %s", a.ID)
	}
	if !a.ObservedAt.Equal(at) {
		t.Errorf("ObservedAt = %v, want %v", a.ObservedAt, at)
	}
}

func TestPayloadString(t *testing.T) {
	ev := NewEvent(KindCall, "phone", map[string]any{
		"number":   "+15550001",
		"duration": 12,
	}, time.Now(), 0.5)

	if got := ev.PayloadString("number"); got != "+15550001" {
		t.Errorf("number = %q, want %q", got, "+15550001")
	}
	if got := ev.PayloadString("duration"); got != "" {
		t.Errorf("non-string payload value yielded %q, want empty", got)
	}
	if got := ev.PayloadString("missing"); got != "" {
		t.Errorf("missing key yielded %q, want empty", got)
	}

	var empty Event
	if got := empty.PayloadString("number"); got != "" {
		t.Errorf("nil payload yielded %q, want empty", got)
	}
}

func TestFormatOperatorNote(t *testing.T) {
	got := FormatOperatorNote(NoteCallSummary, "Call from Papa", "asked about dinner plans")
	want := "[OTTO] CALL_SUMMARY: Call from Papa — asked about dinner plans."
	if got != want {
		t.Errorf("FormatOperatorNote = %q, want %q", got, want)
	}

	got = FormatOperatorNote(NoteShutdown, "daemon stopping", "")
	want = "[OTTO] SHUTDOWN: daemon stopping."
	if got != want {
		t.Errorf("FormatOperatorNote without detail = %q, want %q", got, want)
	}
}
