package action //nolint:testpackage // white-box tests exercising the policy gate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"otto/pkg/memory"
	"otto/pkg/policy"
	"otto/pkg/protocol"
)

type fakeMem struct {
	inserts []memory.InsertParams
}

func (m *fakeMem) Insert(_ context.Context, p memory.InsertParams) (int64, error) {
	m.inserts = append(m.inserts, p)
	return int64(len(m.inserts)), nil
}

type fakeEvents struct {
	notes []string
}

func (f *fakeEvents) RecordNote(_ context.Context, kind protocol.EventKind, _, note string) error {
	f.notes = append(f.notes, string(kind)+": "+note)
	return nil
}

func newTestExecutor(t *testing.T, reg *Registry, mem MemoryWriter, events EventRecorder) *Executor {
	t.Helper()
	ex, err := NewExecutor(ExecutorConfig{
		Policy:  policy.New(nil),
		Reg:     reg,
		Mem:     mem,
		Events:  events,
		Timeout: time.Second,
	})
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	return ex
}

func TestExecute_PolicyRefusalNeverTouchesDevice(t *testing.T) {
	invoked := false
	reg := NewRegistry()
	if err := reg.Register(ToolAnswerCall, func(context.Context, map[string]any) (string, error) {
		invoked = true
		return "answered", nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	mem := &fakeMem{}
	events := &fakeEvents{}
	ex := newTestExecutor(t, reg, mem, events)

	// High risk without approval.
	res := ex.Execute(context.Background(), Request{Tool: ToolAnswerCall}, false)
	if res.Success {
		t.Error("expected refusal")
	}
	if invoked {
		t.Error("device invoked despite refusal")
	}
	if !strings.Contains(res.Error, "approval") {
		t.Errorf("expected approval refusal text, got %q", res.Error)
	}
	// Refusals are event-logged, never remembered.
	if len(mem.inserts) != 0 {
		t.Errorf("refusal stored to memory: %+v", mem.inserts)
	}
	if len(events.notes) != 1 || !strings.HasPrefix(events.notes[0], "action_refused") {
		t.Errorf("expected one action_refused note, got %v", events.notes)
	}
}

func TestExecute_UnknownToolRefused(t *testing.T) {
	ex := newTestExecutor(t, NewRegistry(), nil, nil)

	res := ex.Execute(context.Background(), Request{Tool: "fly_drone"}, true)
	if res.Success {
		t.Error("unknown tool executed")
	}
	if !strings.Contains(res.Error, "allow-list") {
		t.Errorf("expected allow-list refusal, got %q", res.Error)
	}
}

func TestExecute_AllowedToolRuns(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(ToolSpeakText, func(_ context.Context, params map[string]any) (string, error) {
		text, _ := params["text"].(string)
		return "spoke: " + text, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	mem := &fakeMem{}
	ex := newTestExecutor(t, reg, mem, nil)

	res := ex.Execute(context.Background(), Request{
		Tool:   ToolSpeakText,
		Params: map[string]any{"text": "hello"},
	}, false)

	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	if res.Output != "spoke: hello" {
		t.Errorf("unexpected output: %q", res.Output)
	}
	if len(mem.inserts) != 1 {
		t.Fatalf("expected one memory record, got %d", len(mem.inserts))
	}
	if mem.inserts[0].Type != "action_result" || mem.inserts[0].Importance != 0.4 {
		t.Errorf("unexpected memory record: %+v", mem.inserts[0])
	}
}

func TestExecute_HighRiskLeavesStrongerTrace(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(ToolEndCall, func(context.Context, map[string]any) (string, error) {
		return "call ended", nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	mem := &fakeMem{}
	ex := newTestExecutor(t, reg, mem, nil)

	res := ex.Execute(context.Background(), Request{Tool: ToolEndCall}, true)
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	if mem.inserts[0].Importance != 0.7 {
		t.Errorf("expected importance 0.7 for high risk, got %f", mem.inserts[0].Importance)
	}
}

func TestExecute_ActuatorFailureWrapped(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(ToolTapScreen, func(context.Context, map[string]any) (string, error) {
		return "", errors.New("input: device offline")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	mem := &fakeMem{}
	ex := newTestExecutor(t, reg, mem, nil)

	res := ex.Execute(context.Background(), Request{Tool: ToolTapScreen}, false)
	if res.Success {
		t.Error("expected failure")
	}
	if !strings.Contains(res.Error, "tap_screen") || !strings.Contains(res.Error, "device offline") {
		t.Errorf("expected wrapped actuator failure, got %q", res.Error)
	}
	// Executed failures are remembered.
	if len(mem.inserts) != 1 || !strings.Contains(mem.inserts[0].Content, "failed") {
		t.Errorf("expected failure memory record, got %+v", mem.inserts)
	}
}

func TestExecute_InvocationTimeout(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(ToolWait, func(ctx context.Context, _ map[string]any) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	ex := newTestExecutor(t, reg, nil, nil)
	ex.timeout = 10 * time.Millisecond

	start := time.Now()
	res := ex.Execute(context.Background(), Request{Tool: ToolWait}, false)
	if res.Success {
		t.Error("expected timeout failure")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout not enforced, took %v", elapsed)
	}
	if !strings.Contains(res.Error, "deadline") {
		t.Errorf("expected deadline error, got %q", res.Error)
	}
}

func TestExecute_UnboundAllowedTool(t *testing.T) {
	ex := newTestExecutor(t, NewRegistry(), nil, nil)

	res := ex.Execute(context.Background(), Request{Tool: ToolSpeakText}, false)
	if res.Success {
		t.Error("unbound tool executed")
	}
	if !strings.Contains(res.Error, "not available") {
		t.Errorf("expected unavailable error, got %q", res.Error)
	}
}

func TestExecutePlan_FailFast(t *testing.T) {
	var order []string
	reg := NewRegistry()
	mustRegister := func(tool string, fail bool) {
		t.Helper()
		if err := reg.Register(tool, func(context.Context, map[string]any) (string, error) {
			order = append(order, tool)
			if fail {
				return "", errors.New("boom")
			}
			return "ok", nil
		}); err != nil {
			t.Fatalf("register %s: %v", tool, err)
		}
	}
	mustRegister(ToolPressHome, false)
	mustRegister(ToolTapScreen, true)
	mustRegister(ToolTypeText, false)

	ex := newTestExecutor(t, reg, nil, nil)

	results := ex.ExecutePlan(context.Background(), []Request{
		{Tool: ToolPressHome},
		{Tool: ToolTapScreen},
		{Tool: ToolTypeText},
	}, false)

	if len(results) != 2 {
		t.Fatalf("expected exactly 2 results, got %d", len(results))
	}
	if !results[0].Success || results[1].Success {
		t.Errorf("unexpected outcomes: %+v", results)
	}
	if len(order) != 2 || order[0] != ToolPressHome || order[1] != ToolTapScreen {
		t.Errorf("unexpected invocation order: %v", order)
	}
}

func TestExecutePlan_PolicyRefusalAlsoHalts(t *testing.T) {
	reg := NewRegistry()
	invoked := false
	if err := reg.Register(ToolPressHome, func(context.Context, map[string]any) (string, error) {
		invoked = true
		return "ok", nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	ex := newTestExecutor(t, reg, nil, nil)

	results := ex.ExecutePlan(context.Background(), []Request{
		{Tool: ToolAnswerCall}, // high risk, unapproved
		{Tool: ToolPressHome},
	}, false)

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if invoked {
		t.Error("step after refusal still ran")
	}
}
