package action

import (
	"context"
	"fmt"
	"time"

	"otto/pkg/memory"
	"otto/pkg/policy"
	"otto/pkg/protocol"
)

// Request asks for one tool invocation.
type Request struct {
	Tool   string
	Params map[string]any
}

// Result reports one invocation outcome. Policy refusals and actuator
// failures both come back as failed Results; the raw fault never escapes.
type Result struct {
	Tool      string
	Success   bool
	Output    string
	Error     string
	Timestamp time.Time
}

// MemoryWriter is the slice of the memory store the executor needs.
type MemoryWriter interface {
	Insert(ctx context.Context, m memory.InsertParams) (int64, error)
}

// EventRecorder is the slice of the event log the executor needs.
type EventRecorder interface {
	RecordNote(ctx context.Context, kind protocol.EventKind, source, note string) error
}

// Executor runs tool requests through the policy gate, bounds each
// invocation with a timeout, and records outcomes to memory and the
// event log.
type Executor struct {
	policy  *policy.Engine
	reg     *Registry
	mem     MemoryWriter  // optional
	events  EventRecorder // optional
	timeout time.Duration

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// ExecutorConfig wires an Executor.
type ExecutorConfig struct {
	Policy  *policy.Engine
	Reg     *Registry
	Mem     MemoryWriter
	Events  EventRecorder
	Timeout time.Duration // per-invocation bound, default 30s
}

// NewExecutor creates an Executor. Policy and registry are mandatory.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Policy == nil {
		return nil, fmt.Errorf("new executor: nil policy")
	}
	if cfg.Reg == nil {
		return nil, fmt.Errorf("new executor: nil registry")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{
		policy:  cfg.Policy,
		reg:     cfg.Reg,
		mem:     cfg.Mem,
		events:  cfg.Events,
		timeout: timeout,
		nowFunc: time.Now,
	}, nil
}

// Execute runs one request. The policy decides first; the device is only
// touched for allowed requests, and then under the invocation timeout.
func (e *Executor) Execute(ctx context.Context, req Request, approved bool) Result {
	now := e.nowFunc()

	dec := e.policy.Decide(req.Tool, approved)
	if !dec.Allowed {
		verr := &protocol.PolicyViolationError{Tool: req.Tool, Reason: dec.Reason}
		e.note(ctx, protocol.KindActionRefused, verr.Error())
		return Result{Tool: req.Tool, Success: false, Error: verr.Error(), Timestamp: now}
	}

	fn, ok := e.reg.lookup(req.Tool)
	if !ok {
		// Allow-listed but not bound on this device.
		aerr := &protocol.ActuatorFailureError{
			Tool:  req.Tool,
			Cause: fmt.Errorf("not available on this device"),
		}
		e.note(ctx, protocol.KindActionRefused, aerr.Error())
		return Result{Tool: req.Tool, Success: false, Error: aerr.Error(), Timestamp: now}
	}

	invokeCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	output, err := fn(invokeCtx, req.Params)
	res := Result{Tool: req.Tool, Timestamp: now}
	if err != nil {
		aerr := &protocol.ActuatorFailureError{Tool: req.Tool, Cause: err}
		res.Error = aerr.Error()
	} else {
		res.Success = true
		res.Output = output
	}

	e.remember(ctx, req.Tool, res)
	e.note(ctx, protocol.KindActionExecuted, fmt.Sprintf("%s success=%t", req.Tool, res.Success))
	return res
}

// ExecutePlan runs requests strictly in order and halts at the first
// failure, returning only the results produced so far.
func (e *Executor) ExecutePlan(ctx context.Context, reqs []Request, approved bool) []Result {
	results := make([]Result, 0, len(reqs))
	for _, req := range reqs {
		res := e.Execute(ctx, req, approved)
		results = append(results, res)
		if !res.Success {
			break
		}
	}
	return results
}

// remember stores an executed (post-policy) result. High risk tools leave
// a stronger trace.
func (e *Executor) remember(ctx context.Context, tool string, res Result) {
	if e.mem == nil {
		return
	}

	importance := 0.4
	if e.policy.RiskOf(tool) >= policy.High {
		importance = 0.7
	}

	content := fmt.Sprintf("Performed %s: %s", tool, res.Output)
	if !res.Success {
		content = fmt.Sprintf("Attempted %s but it failed: %s", tool, res.Error)
	}

	// Best effort: memory being down must not fail the action path.
	_, _ = e.mem.Insert(ctx, memory.InsertParams{
		Content:    content,
		Type:       "action_result",
		Importance: importance,
	})
}

func (e *Executor) note(ctx context.Context, kind protocol.EventKind, text string) {
	if e.events == nil {
		return
	}
	_ = e.events.RecordNote(ctx, kind, "executor", text)
}
