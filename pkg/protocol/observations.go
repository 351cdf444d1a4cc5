package protocol

import "time"

// CallSighting is one producer observation of a call in some telephony state.
type CallSighting struct {
	Number  string
	Name    string
	State   string // RINGING, OFFHOOK, IDLE
	Contact bool   // number resolves to a saved contact
	Spam    bool   // number is flagged by the dialer
}

// Ringing reports whether the sighting is an incoming unanswered call.
func (s CallSighting) Ringing() bool { return s.State == "RINGING" }

// CallerID returns the stable identity for session tracking: the number,
// falling back to the display name for withheld numbers.
func (s CallSighting) CallerID() string {
	if s.Number != "" {
		return s.Number
	}
	return s.Name
}

// AppNotification is one entry from the device notification list.
type AppNotification struct {
	Package string
	Title   string
	Content string
}

// Key identifies a notification for de-duplication.
func (n AppNotification) Key() string { return n.Package + ":" + n.Title }

// Appointment is one upcoming calendar entry.
type Appointment struct {
	Title string
	When  time.Time
}
