package actuator

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"otto/pkg/protocol"
)

// TelephonySource polls the device call list.
type TelephonySource struct {
	runner CommandRunner
}

// NewTelephonySource creates a TelephonySource.
func NewTelephonySource(runner CommandRunner) *TelephonySource {
	return &TelephonySource{runner: runner}
}

// telephonyEntry is one row of `termux-telephony-call -l` output.
type telephonyEntry struct {
	Number    string `json:"number"`
	Name      string `json:"name"`
	State     string `json:"state"`
	IsContact bool   `json:"is_contact"`
	IsSpam    bool   `json:"is_spam"`
}

// Poll returns the current call sightings.
func (s *TelephonySource) Poll(ctx context.Context) ([]protocol.CallSighting, error) {
	out, err := s.runner.Run(ctx, "termux-telephony-call", "-l")
	if err != nil {
		return nil, fmt.Errorf("poll calls: %w", err)
	}

	var entries []telephonyEntry
	if err := json.Unmarshal(out, &entries); err != nil {
		return nil, fmt.Errorf("parse call list: %w", err)
	}

	sightings := make([]protocol.CallSighting, 0, len(entries))
	for _, e := range entries {
		number := e.Number
		if number == "" {
			number = "unknown"
		}
		sightings = append(sightings, protocol.CallSighting{
			Number:  number,
			Name:    e.Name,
			State:   e.State,
			Contact: e.IsContact,
			Spam:    e.IsSpam,
		})
	}
	return sightings, nil
}

// NotificationSource polls the device notification list.
type NotificationSource struct {
	runner CommandRunner
}

// NewNotificationSource creates a NotificationSource.
func NewNotificationSource(runner CommandRunner) *NotificationSource {
	return &NotificationSource{runner: runner}
}

// notificationEntry is one row of `termux-notification-list` output.
type notificationEntry struct {
	Package string `json:"package"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Poll returns the current notifications.
func (s *NotificationSource) Poll(ctx context.Context) ([]protocol.AppNotification, error) {
	out, err := s.runner.Run(ctx, "termux-notification-list")
	if err != nil {
		return nil, fmt.Errorf("poll notifications: %w", err)
	}

	var entries []notificationEntry
	if err := json.Unmarshal(out, &entries); err != nil {
		return nil, fmt.Errorf("parse notification list: %w", err)
	}

	notifs := make([]protocol.AppNotification, 0, len(entries))
	for _, e := range entries {
		pkg := e.Package
		if pkg == "" {
			pkg = "unknown"
		}
		notifs = append(notifs, protocol.AppNotification{
			Package: pkg,
			Title:   e.Title,
			Content: e.Content,
		})
	}
	return notifs, nil
}

// CalendarSource polls upcoming calendar entries.
type CalendarSource struct {
	runner CommandRunner
	limit  int
}

// NewCalendarSource creates a CalendarSource fetching the next few entries.
func NewCalendarSource(runner CommandRunner) *CalendarSource {
	return &CalendarSource{runner: runner, limit: 5}
}

// calendarEntry is one row of `termux-calendar-list` output.
type calendarEntry struct {
	Title string `json:"title"`
	Time  string `json:"time"`
}

// Poll returns upcoming appointments. Entries with unparsable times are
// skipped rather than failing the whole poll.
func (s *CalendarSource) Poll(ctx context.Context) ([]protocol.Appointment, error) {
	out, err := s.runner.Run(ctx, "termux-calendar-list", "-n", strconv.Itoa(s.limit))
	if err != nil {
		return nil, fmt.Errorf("poll calendar: %w", err)
	}

	var entries []calendarEntry
	if err := json.Unmarshal(out, &entries); err != nil {
		return nil, fmt.Errorf("parse calendar list: %w", err)
	}

	appts := make([]protocol.Appointment, 0, len(entries))
	for _, e := range entries {
		when, err := parseCalendarTime(e.Time)
		if err != nil {
			continue
		}
		appts = append(appts, protocol.Appointment{Title: e.Title, When: when})
	}
	return appts, nil
}

// parseCalendarTime accepts RFC3339 and the bare local form the calendar
// provider emits.
func parseCalendarTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse calendar time %q: %w", s, err)
	}
	return t, nil
}
