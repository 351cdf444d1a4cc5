// Package bridge routes notification events through the reasoning planner.
// Planned steps run through the policy-gated executor; anything the planner
// could not confidently auto-action is relayed to the operator instead.
// The bridge keeps no state between notifications.
package bridge

import (
	"context"
	"fmt"

	"otto/pkg/action"
	"otto/pkg/protocol"
	"otto/pkg/reason"
	"otto/pkg/watch"
)

// StepRunner executes planned steps through the policy gate. Satisfied by
// *action.Executor.
type StepRunner interface {
	ExecutePlan(ctx context.Context, reqs []action.Request, approved bool) []action.Result
}

// Notifier pushes a note to the operator. Satisfied by the operator
// package's notifiers.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Bridge reacts to notification events. Notification-triggered plans run
// without standing approval: the operator never consented to them, so
// high-risk steps are refused by policy and surface as a fallback note.
type Bridge struct {
	planner  reason.Planner
	exec     StepRunner
	notifier Notifier
}

// New creates a Bridge over a planner, an executor, and a notifier.
func New(planner reason.Planner, exec StepRunner, notifier Notifier) *Bridge {
	return &Bridge{planner: planner, exec: exec, notifier: notifier}
}

// Register wires the bridge into the dispatcher.
func (b *Bridge) Register(d *watch.Dispatcher) {
	d.Register(protocol.KindNotification, b.Handle)
}

// Handle processes one notification event: plan, act, and relay whatever
// was not auto-actioned.
func (b *Bridge) Handle(ctx context.Context, ev protocol.Event) error {
	req := reason.Request{
		Type:  reason.RequestNotification,
		App:   ev.PayloadString("package"),
		Title: ev.PayloadString("title"),
		Text:  ev.PayloadString("content"),
	}

	plan, err := b.planner.Plan(ctx, req)
	if err != nil {
		// Planners degrade to fallback-only plans themselves; an error here
		// means something unexpected, so tell the operator what arrived.
		return b.relay(ctx, ev, fmt.Sprintf("New notification from %s: %s", req.App, req.Title))
	}

	if len(plan.Steps) > 0 {
		results := b.exec.ExecutePlan(ctx, plan.Steps, false)
		if last := results[len(results)-1]; !last.Success {
			return b.relay(ctx, ev, fmt.Sprintf("I couldn't handle a notification from %s myself (%s failed). %s",
				req.App, last.Tool, plan.Fallback))
		}
	}

	if plan.Fallback != "" && len(plan.Steps) == 0 {
		return b.relay(ctx, ev, plan.Fallback)
	}
	return nil
}

// relay forwards text to the operator as a notification note.
func (b *Bridge) relay(ctx context.Context, ev protocol.Event, text string) error {
	if b.notifier == nil {
		return nil
	}
	note := protocol.FormatOperatorNote(protocol.NoteNotification,
		fmt.Sprintf("from %s", ev.PayloadString("package")), text)
	if err := b.notifier.Notify(ctx, note); err != nil {
		return fmt.Errorf("relay notification: %w", err)
	}
	return nil
}
