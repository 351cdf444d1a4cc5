package reason

import (
	"context"
	"fmt"
	"strings"

	"otto/pkg/action"
)

// thinkingFallback is the canned reply for a broken planning path.
const thinkingFallback = "I'm having trouble thinking right now. Please try again in a moment."

// StepRunner executes planned steps through the policy gate. Satisfied
// by *action.Executor.
type StepRunner interface {
	ExecutePlan(ctx context.Context, reqs []action.Request, approved bool) []action.Result
}

// Responder answers free-text operator requests: it plans, acts on the
// plan, and phrases the outcome. Operator-initiated plans run with
// standing approval; the request itself is the consent.
type Responder struct {
	planner Planner
	exec    StepRunner
}

// NewResponder creates a Responder over a planner and an executor.
func NewResponder(planner Planner, exec StepRunner) *Responder {
	return &Responder{planner: planner, exec: exec}
}

// HandleUserRequest turns one operator message into actions and a reply.
func (r *Responder) HandleUserRequest(ctx context.Context, text string) (string, error) {
	plan, err := r.planner.Plan(ctx, Request{Type: RequestUser, Text: text})
	if err != nil {
		return thinkingFallback, nil
	}

	if plan.Clarification != "" {
		return plan.Clarification, nil
	}

	if len(plan.Steps) == 0 {
		if plan.Fallback != "" {
			return plan.Fallback, nil
		}
		return "I understood, but there was nothing I could safely do. Could you rephrase?", nil
	}

	results := r.exec.ExecutePlan(ctx, plan.Steps, true)

	var performed []string
	for _, res := range results {
		if !res.Success {
			return fmt.Sprintf("I tried but hit an issue with: %s. Can you help?", res.Tool), nil
		}
		performed = append(performed, res.Tool)
	}
	return fmt.Sprintf("Done! I performed: %s. Let me know if you need anything else.", strings.Join(performed, ", ")), nil
}
