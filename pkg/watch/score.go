package watch

import (
	"strings"

	"otto/pkg/protocol"
)

// AutoAnswerPriority is the fixed priority attached to auto-answer
// trigger events. It sits above every notification score so the session
// handler always sees the trigger promptly.
const AutoAnswerPriority = 0.9

// messagingApps are the notification sources treated as direct messages
// rather than ambient app chatter.
var messagingApps = map[string]bool{
	"com.whatsapp":          true,
	"com.google.android.gm": true,
}

// urgentKeywords bump a messaging notification to top priority when any
// of them appears in the title.
var urgentKeywords = []string{"urgent", "asap", "meeting", "call"}

// CallPriority scores an incoming call sighting. Known contacts rank
// high even when the carrier also flags the number, spam ranks near the
// floor, unknown numbers sit between.
func CallPriority(s protocol.CallSighting) float64 {
	switch {
	case s.Contact:
		return 0.8
	case s.Spam:
		return 0.1
	default:
		return 0.5
	}
}

// NotificationPriority scores an app notification by source and title.
func NotificationPriority(n protocol.AppNotification) float64 {
	if !messagingApps[strings.ToLower(n.Package)] {
		return 0.3
	}
	title := strings.ToLower(n.Title)
	for _, kw := range urgentKeywords {
		if strings.Contains(title, kw) {
			return 0.9
		}
	}
	return 0.7
}

// CalendarPriority scores an appointment reminder for the given warning
// kind. The urgent window outranks the early warning.
func CalendarPriority(kind protocol.EventKind) float64 {
	if kind == protocol.KindCalendarUrgent {
		return 0.95
	}
	return 0.8
}
