// Package policy implements the risk policy engine: a pure, total decision
// function that classifies tool calls by risk and approval requirement.
// The deny-list always wins, unlisted tools never execute, and unclassified
// risk reads as Critical so lookups fail closed.
package policy

import "otto/pkg/protocol"

// Risk orders how dangerous a tool is. Higher is more dangerous.
type Risk int

// Risk levels, totally ordered.
const (
	Low Risk = iota + 1
	Medium
	High
	Critical
)

// String returns the lowercase risk name.
func (r Risk) String() string {
	switch r {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Decision is the derived outcome of one policy check. It is never stored.
type Decision struct {
	Allowed          bool
	Risk             Risk
	RequiresApproval bool
	Reason           protocol.PolicyReason // set only on refusals
}

// Engine holds the allow-map and deny-set. Both are fixed at construction;
// Decide performs no I/O and no mutation.
type Engine struct {
	allow map[string]Risk
	deny  map[string]struct{}
}

// DefaultAllow maps every executable tool to its risk class.
func DefaultAllow() map[string]Risk {
	return map[string]Risk{
		"read_notifications":    Low,
		"get_current_app":       Low,
		"take_screenshot":       Low,
		"press_back":            Low,
		"press_home":            Low,
		"wait":                  Low,
		"speak_text":            Low,
		"read_sms":              Low,
		"read_whatsapp":         Low,
		"tap_screen":            Medium,
		"swipe_screen":          Medium,
		"type_text":             Medium,
		"open_app":              Medium,
		"send_whatsapp_message": Medium,
		"send_sms":              Medium,
		"calendar_create":       Medium,
		"make_phone_call":       High,
		"answer_call":           High,
		"end_call":              High,
	}
}

// DefaultDeny lists tool names that never execute, regardless of the
// allow-map or any approval flag.
func DefaultDeny() []string {
	return []string{
		"exec_shell",
		"execute_shell",
		"browse_web",
		"open_url",
		"access_bank",
		"access_bank_apps",
		"network_scan",
		"modify_system_files",
		"install_unknown_apps",
		"share_passwords",
		"transfer_money",
		"request_root",
	}
}

// New builds an engine from the default allow-map and deny-set plus any
// extra denied names. The extra entries extend the deny-set; nothing can
// shrink it.
func New(extraDeny []string) *Engine {
	e := &Engine{
		allow: DefaultAllow(),
		deny:  make(map[string]struct{}),
	}
	for _, name := range DefaultDeny() {
		e.deny[name] = struct{}{}
	}
	for _, name := range extraDeny {
		e.deny[name] = struct{}{}
	}
	return e
}

// Decide evaluates one (tool, approval) pair. Check order: deny-set, then
// allow-map membership, then the approval gate for High and Critical risk.
func (e *Engine) Decide(tool string, userApproved bool) Decision {
	if _, denied := e.deny[tool]; denied {
		return Decision{Allowed: false, Risk: Critical, Reason: protocol.ReasonDenied}
	}

	risk, listed := e.allow[tool]
	if !listed {
		return Decision{Allowed: false, Risk: Critical, Reason: protocol.ReasonUnknownTool}
	}

	if risk >= High && !userApproved {
		return Decision{
			Allowed:          false,
			Risk:             risk,
			RequiresApproval: true,
			Reason:           protocol.ReasonNeedsApproval,
		}
	}

	return Decision{Allowed: true, Risk: risk}
}

// RiskOf returns the allow-map risk for tool, or Critical when the tool is
// unclassified.
func (e *Engine) RiskOf(tool string) Risk {
	if risk, ok := e.allow[tool]; ok {
		return risk
	}
	return Critical
}

// Denied reports whether tool is on the deny-set.
func (e *Engine) Denied(tool string) bool {
	_, ok := e.deny[tool]
	return ok
}

// AllowedTools returns a copy of the allow-map for capability listings.
func (e *Engine) AllowedTools() map[string]Risk {
	out := make(map[string]Risk, len(e.allow))
	for name, risk := range e.allow {
		out[name] = risk
	}
	return out
}
