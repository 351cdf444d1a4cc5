package protocol

import "fmt"

// PolicyReason identifies why the policy engine refused a tool.
type PolicyReason string

// Policy refusal reasons.
const (
	ReasonUnknownTool   PolicyReason = "unknown_tool"
	ReasonDenied        PolicyReason = "denied"
	ReasonNeedsApproval PolicyReason = "needs_approval"
)

// PolicyViolationError reports a tool call refused by the policy engine.
// The actuator is never invoked for a refused tool. It enables typed error
// discrimination via errors.As.
type PolicyViolationError struct {
	Tool   string
	Reason PolicyReason
}

func (e *PolicyViolationError) Error() string {
	switch e.Reason {
	case ReasonUnknownTool:
		return fmt.Sprintf("policy refused %s: tool is not in the allow-list", e.Tool)
	case ReasonDenied:
		return fmt.Sprintf("policy refused %s: tool is explicitly denied", e.Tool)
	case ReasonNeedsApproval:
		return fmt.Sprintf("policy refused %s: high-risk tool requires operator approval", e.Tool)
	default:
		return fmt.Sprintf("policy refused %s", e.Tool)
	}
}

// ActuatorFailureError reports a device action that failed or timed out
// after passing policy. Plans halt at the first such failure.
type ActuatorFailureError struct {
	Tool  string
	Cause error
}

func (e *ActuatorFailureError) Error() string {
	return fmt.Sprintf("actuator failed for %s: %v", e.Tool, e.Cause)
}

func (e *ActuatorFailureError) Unwrap() error { return e.Cause }

// BackendUnavailableError reports an unreachable collaborator (LLM server,
// operator webhook). Callers substitute canned text instead of surfacing it.
type BackendUnavailableError struct {
	Backend string
	Cause   error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("%s backend unavailable: %v", e.Backend, e.Cause)
}

func (e *BackendUnavailableError) Unwrap() error { return e.Cause }

// HandlerFaultError reports a recovered panic or returned error inside one
// dispatched handler. The fault is isolated: sibling handlers and the
// dispatch loop continue.
type HandlerFaultError struct {
	Kind    EventKind
	Handler string
	Cause   error
}

func (e *HandlerFaultError) Error() string {
	return fmt.Sprintf("handler %s faulted on %s event: %v", e.Handler, e.Kind, e.Cause)
}

func (e *HandlerFaultError) Unwrap() error { return e.Cause }
