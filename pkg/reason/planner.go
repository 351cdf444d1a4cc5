// Package reason turns phone events and operator requests into action
// plans. The LLM-backed planner degrades to operator-facing fallback text
// whenever the backend is unreachable or replies with something that is
// not a plan; planning never surfaces transport errors.
package reason

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"otto/pkg/action"
	"otto/pkg/memory"
)

// Request types the planner distinguishes.
const (
	RequestNotification = "notification"
	RequestUser         = "user"
)

const (
	planTokens      = 256
	planTemperature = 0.2
)

// Request is the compact event description handed to the planner.
type Request struct {
	Type  string // RequestNotification or RequestUser
	App   string // posting app package, notifications only
	Title string
	Text  string
}

// Plan is a planning outcome. Steps run through the policy-gated
// executor in order; Fallback carries text for the operator when nothing
// was confidently auto-actioned; Clarification is a question back to the
// operator when the request was ambiguous.
type Plan struct {
	Steps         []action.Request
	Fallback      string
	Clarification string
}

// Planner decides what to do about a request.
type Planner interface {
	Plan(ctx context.Context, req Request) (Plan, error)
}

// LLM is the completion surface the planner phrases with. Satisfied by
// *llm.Client.
type LLM interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// LLMPlanner plans with the on-device language model.
type LLMPlanner struct {
	assistant string
	llm       LLM
	mem       *memory.Store // optional prompt context
}

// NewLLMPlanner creates a planner speaking as the named assistant. The
// memory store may be nil; plans are then made without remembered context.
func NewLLMPlanner(assistant string, llmClient LLM, mem *memory.Store) *LLMPlanner {
	if assistant == "" {
		assistant = "Otto"
	}
	return &LLMPlanner{assistant: assistant, llm: llmClient, mem: mem}
}

// Plan asks the model for a strict-JSON plan. A backend failure or a
// reply that does not contain a plan degrades to a fallback-only plan;
// the error return stays nil so callers never see raw transport faults.
func (p *LLMPlanner) Plan(ctx context.Context, req Request) (Plan, error) {
	reply, err := p.llm.Generate(ctx, p.prompt(ctx, req), planTokens, planTemperature)
	if err != nil {
		return Plan{Fallback: fallbackText(req)}, nil
	}

	plan, err := parsePlan(reply)
	if err != nil {
		return Plan{Fallback: fallbackText(req)}, nil
	}
	return plan, nil
}

func (p *LLMPlanner) prompt(ctx context.Context, req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, an on-device assistant deciding what to do about an event on the operator's phone.\n\n", p.assistant)
	fmt.Fprintf(&b, "EVENT TYPE: %s\n", req.Type)
	if req.App != "" {
		fmt.Fprintf(&b, "APP: %s\n", req.App)
	}
	if req.Title != "" {
		fmt.Fprintf(&b, "TITLE: %s\n", req.Title)
	}
	if req.Text != "" {
		fmt.Fprintf(&b, "TEXT: %s\n", req.Text)
	}

	if p.mem != nil {
		if block, err := memory.ForPrompt(ctx, p.mem, memoryQuery(req), 200); err == nil && block != "" {
			b.WriteString("\n" + block + "\n")
		}
	}

	fmt.Fprintf(&b, "\nTools you may use: %s\n\n", strings.Join(action.Names(), ", "))
	b.WriteString(`Reply with exactly one JSON object and nothing else, in this form:
{"steps": [{"tool": "<tool name>", "params": {}}], "fallback": "<text to relay to the operator when you take no action>", "clarification": "<question for the operator when the request is ambiguous>"}

Use only the tools listed. Prefer an empty steps list plus a fallback over guessing.`)
	return b.String()
}

// memoryQuery picks the recall terms for a request: the free text for
// operator messages, the sender and body for notifications.
func memoryQuery(req Request) string {
	if req.Type == RequestUser {
		return req.Text
	}
	return strings.TrimSpace(req.Title + " " + req.Text)
}

// fallbackText is what the operator hears when planning itself failed.
func fallbackText(req Request) string {
	if req.Type == RequestNotification {
		if req.Title != "" {
			return fmt.Sprintf("New notification from %s: %s", req.App, req.Title)
		}
		return fmt.Sprintf("New notification from %s", req.App)
	}
	return thinkingFallback
}

// planDoc is the wire shape the model is instructed to produce.
type planDoc struct {
	Steps []struct {
		Tool   string         `json:"tool"`
		Params map[string]any `json:"params"`
	} `json:"steps"`
	Fallback      string `json:"fallback"`
	Clarification string `json:"clarification"`
}

// parsePlan extracts the first JSON object from a model reply. Models
// wrap plans in prose more often than not; everything before the first
// brace and after the object is ignored.
func parsePlan(reply string) (Plan, error) {
	start := strings.IndexByte(reply, '{')
	if start < 0 {
		return Plan{}, errors.New("parse plan: no JSON object in reply")
	}

	var doc planDoc
	dec := json.NewDecoder(strings.NewReader(reply[start:]))
	if err := dec.Decode(&doc); err != nil {
		return Plan{}, fmt.Errorf("parse plan: %w", err)
	}

	plan := Plan{Fallback: doc.Fallback, Clarification: doc.Clarification}
	for _, s := range doc.Steps {
		if s.Tool == "" {
			continue
		}
		plan.Steps = append(plan.Steps, action.Request{Tool: s.Tool, Params: s.Params})
	}
	return plan, nil
}
