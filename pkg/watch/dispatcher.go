package watch

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"otto/pkg/protocol"
)

// Handler consumes one dispatched event. Handlers run concurrently on
// dispatcher-owned goroutines and must tolerate a cancelled ctx.
type Handler func(ctx context.Context, ev protocol.Event) error

// Recorder is the event-log surface the dispatcher writes through.
// Satisfied by *eventlog.Recorder.
type Recorder interface {
	Record(ctx context.Context, ev protocol.Event) error
	RecordNote(ctx context.Context, kind protocol.EventKind, source, note string) error
}

// DispatcherConfig bounds the handler fan-out.
type DispatcherConfig struct {
	MaxInflight int // handler goroutine ceiling (default 32)
}

func (c *DispatcherConfig) withDefaults() DispatcherConfig {
	out := *c
	if out.MaxInflight == 0 {
		out.MaxInflight = 32
	}
	return out
}

// Dispatcher pops events off the queue in FIFO order and fans each one
// out to the handlers registered for its kind. A slow or failing handler
// never stalls the loop or its siblings.
type Dispatcher struct {
	cfg      DispatcherConfig
	queue    *Queue
	recorder Recorder

	mu       sync.Mutex
	handlers map[protocol.EventKind][]Handler
	counts   map[protocol.EventKind]int
	inflight int

	sem chan struct{}
}

// NewDispatcher creates a Dispatcher reading from queue. A nil recorder
// disables event logging. It does not start dispatching; call Run().
func NewDispatcher(cfg DispatcherConfig, queue *Queue, recorder Recorder) *Dispatcher {
	resolved := cfg.withDefaults()
	return &Dispatcher{
		cfg:      resolved,
		queue:    queue,
		recorder: recorder,
		handlers: make(map[protocol.EventKind][]Handler),
		counts:   make(map[protocol.EventKind]int),
		sem:      make(chan struct{}, resolved.MaxInflight),
	}
}

// Register adds a handler for kind. Registration is additive: every
// handler registered for a kind runs on each event of that kind.
func (d *Dispatcher) Register(kind protocol.EventKind, fn Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = append(d.handlers[kind], fn)
}

// Unregister drops every handler for kind.
func (d *Dispatcher) Unregister(kind protocol.EventKind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, kind)
}

// Run pops and dispatches events until ctx is cancelled. Events are
// handled strictly in arrival order; the loop never waits for handlers.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		ev, ok := d.queue.Pop(ctx)
		if !ok {
			return
		}
		d.dispatch(ctx, ev)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev protocol.Event) {
	d.mu.Lock()
	d.counts[ev.Kind]++
	handlers := make([]Handler, len(d.handlers[ev.Kind]))
	copy(handlers, d.handlers[ev.Kind])
	d.mu.Unlock()

	if d.recorder != nil {
		_ = d.recorder.Record(ctx, ev)
	}

	for i, fn := range handlers {
		select {
		case d.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		d.mu.Lock()
		d.inflight++
		d.mu.Unlock()

		go d.invoke(ctx, i, fn, ev)
	}
}

// invoke runs one handler, isolating its panics and errors from the
// dispatch loop and from sibling handlers.
func (d *Dispatcher) invoke(ctx context.Context, idx int, fn Handler, ev protocol.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.fault(ev, idx, fmt.Errorf("handler panic: %v", r))
		}
		d.mu.Lock()
		d.inflight--
		d.mu.Unlock()
		<-d.sem
	}()

	if err := fn(ctx, ev); err != nil {
		d.fault(ev, idx, err)
	}
}

// fault files a handler failure, identified by its registration slot. It
// uses a background context because the dispatch context is often
// already cancelled when handlers fail.
func (d *Dispatcher) fault(ev protocol.Event, idx int, cause error) {
	if d.recorder == nil {
		return
	}
	ferr := &protocol.HandlerFaultError{
		Kind:    ev.Kind,
		Handler: strconv.Itoa(idx),
		Cause:   cause,
	}
	note := fmt.Sprintf("%s (event %s)", ferr.Error(), ev.ID)
	_ = d.recorder.RecordNote(context.Background(), protocol.KindHandlerFault, "dispatcher", note)
}

// Inflight returns the number of handler goroutines currently running.
func (d *Dispatcher) Inflight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inflight
}

// Counts returns a copy of the per-kind dispatch counters.
func (d *Dispatcher) Counts() map[protocol.EventKind]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[protocol.EventKind]int, len(d.counts))
	for k, v := range d.counts {
		out[k] = v
	}
	return out
}

// Drain waits for outstanding handler goroutines to finish, returning
// false if the timeout expires first.
func (d *Dispatcher) Drain(timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline.C:
			return false
		case <-ticker.C:
			if d.Inflight() == 0 {
				return true
			}
		}
	}
}
