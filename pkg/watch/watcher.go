package watch

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"otto/pkg/protocol"
)

// CallSource yields the current call sightings. Satisfied by
// *actuator.TelephonySource.
type CallSource interface {
	Poll(ctx context.Context) ([]protocol.CallSighting, error)
}

// NotificationSource yields the notifications currently posted on the
// device. Satisfied by *actuator.NotificationSource.
type NotificationSource interface {
	Poll(ctx context.Context) ([]protocol.AppNotification, error)
}

// CalendarSource yields upcoming appointments. Satisfied by
// *actuator.CalendarSource.
type CalendarSource interface {
	Poll(ctx context.Context) ([]protocol.Appointment, error)
}

// SessionObserver turns a snapshot of call sightings into lifecycle
// events. Satisfied by *session.Tracker.
type SessionObserver interface {
	Observe(now time.Time, sightings []protocol.CallSighting) []protocol.Event
}

// WatcherConfig holds the poll cadence for each producer loop and the
// calendar reminder windows.
type WatcherConfig struct {
	CallInterval         time.Duration // default 1s
	NotificationInterval time.Duration // default 2s
	CalendarInterval     time.Duration // default 30s
	WarningWindow        time.Duration // default 5m
	UrgentWindow         time.Duration // default 2m
}

func (c *WatcherConfig) withDefaults() WatcherConfig {
	out := *c
	if out.CallInterval == 0 {
		out.CallInterval = time.Second
	}
	if out.NotificationInterval == 0 {
		out.NotificationInterval = 2 * time.Second
	}
	if out.CalendarInterval == 0 {
		out.CalendarInterval = 30 * time.Second
	}
	if out.WarningWindow == 0 {
		out.WarningWindow = 5 * time.Minute
	}
	if out.UrgentWindow == 0 {
		out.UrgentWindow = 2 * time.Minute
	}
	return out
}

// Watcher owns the producer loops that poll the device and feed the
// event queue. A source left nil disables its loop, so a device without
// telephony still gets notification and calendar coverage.
type Watcher struct {
	cfg      WatcherConfig
	queue    *Queue
	calls    CallSource
	notifs   NotificationSource
	calendar CalendarSource
	sessions SessionObserver

	mu        sync.Mutex
	seenNotif map[string]bool
	seenWarn  map[string]bool
	pollErrs  map[string]int

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// NewWatcher creates a Watcher. It does not start polling; call Run().
func NewWatcher(cfg WatcherConfig, queue *Queue, calls CallSource, notifs NotificationSource, calendar CalendarSource, sessions SessionObserver) *Watcher {
	return &Watcher{
		cfg:       cfg.withDefaults(),
		queue:     queue,
		calls:     calls,
		notifs:    notifs,
		calendar:  calendar,
		sessions:  sessions,
		seenNotif: make(map[string]bool),
		seenWarn:  make(map[string]bool),
		pollErrs:  make(map[string]int),
		nowFunc:   time.Now,
	}
}

// Run starts one goroutine per configured source and blocks until ctx is
// cancelled and every loop has exited.
func (w *Watcher) Run(ctx context.Context) {
	var wg sync.WaitGroup

	if w.calls != nil && w.sessions != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx, w.cfg.CallInterval, w.pollCalls)
		}()
	}
	if w.notifs != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx, w.cfg.NotificationInterval, w.pollNotifications)
		}()
	}
	if w.calendar != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx, w.cfg.CalendarInterval, w.pollCalendar)
		}()
	}

	wg.Wait()
}

func (w *Watcher) loop(ctx context.Context, interval time.Duration, poll func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll(ctx)
		}
	}
}

// pollCalls forwards the current sightings to the session tracker and
// enqueues whatever lifecycle events it derives.
func (w *Watcher) pollCalls(ctx context.Context) {
	sightings, err := w.calls.Poll(ctx)
	if err != nil {
		w.countError("calls")
		return
	}
	for _, ev := range w.sessions.Observe(w.nowFunc(), sightings) {
		if !w.queue.Push(ctx, ev) {
			return
		}
	}
}

// pollNotifications enqueues each notification not seen before, keyed by
// package:title.
func (w *Watcher) pollNotifications(ctx context.Context) {
	notifs, err := w.notifs.Poll(ctx)
	if err != nil {
		w.countError("notifications")
		return
	}

	now := w.nowFunc()
	for _, n := range notifs {
		if !w.firstSighting(n.Key()) {
			continue
		}
		ev := protocol.NewEvent(protocol.KindNotification, n.Package, map[string]any{
			"package": n.Package,
			"title":   n.Title,
			"content": n.Content,
		}, now, NotificationPriority(n))
		if !w.queue.Push(ctx, ev) {
			return
		}
	}

	// Keep the de-dupe set from growing without bound. Clearing means a
	// still-posted notification may announce again; that beats leaking.
	w.mu.Lock()
	if len(w.seenNotif) > 100 {
		w.seenNotif = make(map[string]bool)
	}
	w.mu.Unlock()
}

// pollCalendar enqueues a warning when an appointment enters the
// configured warning window and an urgent reminder when it enters the
// urgent window, each at most once per appointment and window.
func (w *Watcher) pollCalendar(ctx context.Context) {
	appts, err := w.calendar.Poll(ctx)
	if err != nil {
		w.countError("calendar")
		return
	}

	now := w.nowFunc()
	for _, appt := range appts {
		until := appt.When.Sub(now)

		var kind protocol.EventKind
		switch {
		case until > 0 && until <= w.cfg.UrgentWindow:
			kind = protocol.KindCalendarUrgent
		case until > w.cfg.UrgentWindow && until <= w.cfg.WarningWindow:
			kind = protocol.KindCalendarSoon
		default:
			continue
		}

		key := fmt.Sprintf("%s@%s:%s", appt.Title, appt.When.Format(time.RFC3339), kind)
		if !w.firstWarning(key) {
			continue
		}

		ev := protocol.NewEvent(kind, "calendar", map[string]any{
			"title":         appt.Title,
			"time":          appt.When.Format(time.RFC3339),
			"minutes_until": int(math.Round(until.Minutes())),
		}, now, CalendarPriority(kind))
		if !w.queue.Push(ctx, ev) {
			return
		}
	}

	w.mu.Lock()
	if len(w.seenWarn) > 100 {
		w.seenWarn = make(map[string]bool)
	}
	w.mu.Unlock()
}

// firstSighting records a notification key and reports whether it was new.
func (w *Watcher) firstSighting(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seenNotif[key] {
		return false
	}
	w.seenNotif[key] = true
	return true
}

// firstWarning records an (appointment, window) key and reports whether
// it was new.
func (w *Watcher) firstWarning(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seenWarn[key] {
		return false
	}
	w.seenWarn[key] = true
	return true
}

func (w *Watcher) countError(source string) {
	w.mu.Lock()
	w.pollErrs[source]++
	w.mu.Unlock()
}

// PollErrors returns a copy of the per-source poll failure counts.
func (w *Watcher) PollErrors() map[string]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]int, len(w.pollErrs))
	for k, v := range w.pollErrs {
		out[k] = v
	}
	return out
}
