package session //nolint:testpackage // internal white-box tests need access to unexported fields

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"otto/pkg/action"
	"otto/pkg/memory"
	"otto/pkg/protocol"
)

// --- fakes ---

type llmCall struct {
	prompt      string
	maxTokens   int
	temperature float64
}

type fakeLLM struct {
	mu    sync.Mutex
	calls []llmCall
	reply string
	err   error
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, llmCall{prompt: prompt, maxTokens: maxTokens, temperature: temperature})
	if f.err != nil {
		return "", f.err
	}
	if f.reply == "" {
		return "canned reply", nil
	}
	return f.reply, nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeLLM) call(t *testing.T, i int) llmCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.calls) {
		t.Fatalf("llm call %d not made (have %d)", i, len(f.calls))
	}
	return f.calls[i]
}

type executedAction struct {
	req      action.Request
	approved bool
}

type fakeActions struct {
	mu    sync.Mutex
	execs []executedAction
	fail  map[string]string // tool -> error text
}

func (f *fakeActions) Execute(_ context.Context, req action.Request, approved bool) action.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, executedAction{req: req, approved: approved})
	if msg, ok := f.fail[req.Tool]; ok {
		return action.Result{Tool: req.Tool, Success: false, Error: msg, Timestamp: time.Now()}
	}
	return action.Result{Tool: req.Tool, Success: true, Output: "ok", Timestamp: time.Now()}
}

func (f *fakeActions) tools() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.execs))
	for i, e := range f.execs {
		out[i] = e.req.Tool
	}
	return out
}

type fakeMemoryStore struct {
	mu      sync.Mutex
	inserts []memory.InsertParams
	recall  []memory.Record
	count   int
}

func (f *fakeMemoryStore) Insert(_ context.Context, p memory.InsertParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts = append(f.inserts, p)
	return int64(len(f.inserts)), nil
}

func (f *fakeMemoryStore) Recall(_ context.Context, query string, _ int) ([]memory.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	return f.recall, nil
}

func (f *fakeMemoryStore) CountByCaller(_ context.Context, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, nil
}

func (f *fakeMemoryStore) insertAt(t *testing.T, i int) memory.InsertParams {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.inserts) {
		t.Fatalf("memory insert %d not made (have %d)", i, len(f.inserts))
	}
	return f.inserts[i]
}

func (f *fakeMemoryStore) insertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserts)
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []string
}

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, text)
	return nil
}

type stateNote struct {
	kind protocol.EventKind
	note string
}

type fakeNoteRecorder struct {
	mu    sync.Mutex
	notes []stateNote
}

func (f *fakeNoteRecorder) RecordNote(_ context.Context, kind protocol.EventKind, _ string, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, stateNote{kind: kind, note: note})
	return nil
}

// --- harness ---

type handlerFixture struct {
	handler  *Handler
	tracker  *Tracker
	llm      *fakeLLM
	actions  *fakeActions
	mem      *fakeMemoryStore
	notifier *fakeNotifier
	recorder *fakeNoteRecorder
	now      time.Time
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := &handlerFixture{
		tracker:  NewTracker(20 * time.Second),
		llm:      &fakeLLM{},
		actions:  &fakeActions{},
		mem:      &fakeMemoryStore{},
		notifier: &fakeNotifier{},
		recorder: &fakeNoteRecorder{},
		now:      trackerEpoch.Add(25 * time.Second),
	}
	f.handler = NewHandler(HandlerConfig{}, f.tracker, f.llm, f.actions, f.mem, f.notifier, f.recorder)
	f.handler.nowFunc = func() time.Time { return f.now }
	return f
}

// ring opens a session for the sighting at the tracker epoch.
func (f *handlerFixture) ring(t *testing.T, s protocol.CallSighting) {
	t.Helper()
	evs := f.tracker.Observe(trackerEpoch, []protocol.CallSighting{s})
	if len(evs) != 1 {
		t.Fatalf("ring produced %d events, want 1", len(evs))
	}
}

// activate walks a session to Active with a spoken greeting, bypassing
// the LLM so its call log stays clean for the test body.
func (f *handlerFixture) activate(t *testing.T, callerID string) {
	t.Helper()
	if !f.tracker.Transition(callerID, protocol.CallRinging, protocol.CallEvaluating) {
		t.Fatal("activate: transition to evaluating failed")
	}
	f.tracker.Transition(callerID, protocol.CallEvaluating, protocol.CallAutoAnswered)
	f.tracker.Transition(callerID, protocol.CallAutoAnswered, protocol.CallActive)
	f.tracker.AppendTranscript(callerID, "OTTO: Hello, this is Otto.")
}

// --- tests ---

func TestEvaluateCallAnswersUrgentFamily(t *testing.T) {
	f := newHandlerFixture(t)
	f.ring(t, protocol.CallSighting{Number: "+15550001", Name: "Papa", State: "RINGING", Contact: true})
	f.llm.reply = "Hello Papa! This is Otto. How can I help?"

	if err := f.handler.EvaluateCall(context.Background(), "+15550001"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	tools := f.actions.tools()
	if len(tools) != 2 || tools[0] != action.ToolAnswerCall || tools[1] != action.ToolSpeakText {
		t.Fatalf("executed %v, want [answer_call speak_text]", tools)
	}
	for _, e := range f.actions.execs {
		if !e.approved {
			t.Errorf("%s executed without standing approval", e.req.Tool)
		}
	}

	call := f.llm.call(t, 0)
	if call.maxTokens != 150 || call.temperature != 0.8 {
		t.Errorf("greeting generated with tokens=%d temp=%v, want 150/0.8", call.maxTokens, call.temperature)
	}
	if !strings.Contains(call.prompt, "CALLER: Papa") || !strings.Contains(call.prompt, "RELATIONSHIP: family") {
		t.Errorf("greeting prompt missing caller context:\n%s", call.prompt)
	}

	ins := f.mem.insertAt(t, 0)
	if ins.Type != "call_answered" || ins.Importance != 0.9 || ins.Caller != "Papa" {
		t.Errorf("memory record = %+v", ins)
	}
	if !strings.Contains(ins.Content, f.llm.reply) {
		t.Errorf("record %q should quote the greeting", ins.Content)
	}

	sess, _ := f.tracker.Snapshot("+15550001")
	if sess.State != protocol.CallActive {
		t.Errorf("state = %s, want active", sess.State)
	}
	if len(sess.Transcript) != 1 || !strings.HasPrefix(sess.Transcript[0], "OTTO: ") {
		t.Errorf("transcript = %v", sess.Transcript)
	}
}

func TestEvaluateCallDeclinesSpam(t *testing.T) {
	f := newHandlerFixture(t)
	f.ring(t, protocol.CallSighting{Number: "+15550002", State: "RINGING", Spam: true})

	if err := f.handler.EvaluateCall(context.Background(), "+15550002"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	tools := f.actions.tools()
	if len(tools) != 1 || tools[0] != action.ToolEndCall {
		t.Fatalf("executed %v, want [end_call]", tools)
	}
	if f.llm.callCount() != 0 {
		t.Error("declined call should never reach the LLM")
	}

	ins := f.mem.insertAt(t, 0)
	if ins.Type != "call_declined" || ins.Importance != 0.5 {
		t.Errorf("memory record = %+v", ins)
	}
	if !strings.Contains(ins.Content, "spam") {
		t.Errorf("record %q should carry the decline reason", ins.Content)
	}

	sess, _ := f.tracker.Snapshot("+15550002")
	if sess.State != protocol.CallDeclined {
		t.Errorf("state = %s, want declined", sess.State)
	}
}

func TestEvaluateCallAnswersOnRememberedNeed(t *testing.T) {
	f := newHandlerFixture(t)
	f.ring(t, protocol.CallSighting{Number: "+15550003", State: "RINGING"})
	f.mem.recall = []memory.Record{{Content: "He said he needs the invoice today"}}

	if err := f.handler.EvaluateCall(context.Background(), "+15550003"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	tools := f.actions.tools()
	if len(tools) == 0 || tools[0] != action.ToolAnswerCall {
		t.Fatalf("executed %v, want answer_call first", tools)
	}
}

func TestEvaluateCallReclassifiesFrequentCaller(t *testing.T) {
	f := newHandlerFixture(t)
	f.ring(t, protocol.CallSighting{Number: "+15550004", Name: "Raj", State: "RINGING", Contact: true})
	f.mem.count = 6

	if err := f.handler.EvaluateCall(context.Background(), "+15550004"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	sess, _ := f.tracker.Snapshot("+15550004")
	if sess.Relationship != protocol.RelFriend {
		t.Errorf("relationship = %s, want friend after 6 remembered interactions", sess.Relationship)
	}
	// Friend at base urgency still declines without a need hint.
	if sess.State != protocol.CallDeclined {
		t.Errorf("state = %s, want declined", sess.State)
	}
}

func TestEvaluateCallGreetingFallback(t *testing.T) {
	f := newHandlerFixture(t)
	f.ring(t, protocol.CallSighting{Number: "+15550001", Name: "Mama", State: "RINGING", Contact: true})
	f.llm.err = errors.New("backend down")

	if err := f.handler.EvaluateCall(context.Background(), "+15550001"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	spoken := ""
	for _, e := range f.actions.execs {
		if e.req.Tool == action.ToolSpeakText {
			spoken, _ = e.req.Params["text"].(string)
		}
	}
	if !strings.Contains(spoken, "Otto") || !strings.Contains(spoken, "the boss") {
		t.Errorf("fallback greeting = %q, want the canned persona phrase", spoken)
	}

	sess, _ := f.tracker.Snapshot("+15550001")
	if sess.State != protocol.CallActive {
		t.Errorf("state = %s, want active despite LLM failure", sess.State)
	}
}

func TestEvaluateCallAnswerActionFailure(t *testing.T) {
	f := newHandlerFixture(t)
	f.ring(t, protocol.CallSighting{Number: "+15550001", Name: "Papa", State: "RINGING", Contact: true})
	f.actions.fail = map[string]string{action.ToolAnswerCall: "input keyevent failed"}

	err := f.handler.EvaluateCall(context.Background(), "+15550001")
	if err == nil || !strings.Contains(err.Error(), "input keyevent failed") {
		t.Fatalf("err = %v, want the actuator failure", err)
	}

	if f.mem.insertCount() != 0 {
		t.Error("failed answer should not be remembered as answered")
	}
	sess, _ := f.tracker.Snapshot("+15550001")
	if sess.State != protocol.CallEvaluating {
		t.Errorf("state = %s, want evaluating (hangup sweep files it as missed)", sess.State)
	}
}

func TestEvaluateCallSecondTriggerIsNoop(t *testing.T) {
	f := newHandlerFixture(t)
	f.ring(t, protocol.CallSighting{Number: "+15550001", Name: "Papa", State: "RINGING", Contact: true})

	if err := f.handler.EvaluateCall(context.Background(), "+15550001"); err != nil {
		t.Fatalf("first evaluate: %v", err)
	}
	before := len(f.actions.tools())

	if err := f.handler.EvaluateCall(context.Background(), "+15550001"); err != nil {
		t.Fatalf("second evaluate: %v", err)
	}
	if got := len(f.actions.tools()); got != before {
		t.Errorf("second trigger executed %d more actions", got-before)
	}
}

func TestHandleUtteranceActiveCall(t *testing.T) {
	f := newHandlerFixture(t)
	f.ring(t, protocol.CallSighting{Number: "+15550001", Name: "Bob", State: "RINGING", Contact: true})
	f.activate(t, "+15550001")
	f.llm.reply = "Of course, I'll let him know about the meeting."

	reply, err := f.handler.HandleUtterance(context.Background(), "+15550001", "Tell him the meeting moved to 4pm")
	if err != nil {
		t.Fatalf("utterance: %v", err)
	}
	if reply != f.llm.reply {
		t.Errorf("reply = %q", reply)
	}

	call := f.llm.call(t, 0)
	if call.maxTokens != 150 || call.temperature != 0.7 {
		t.Errorf("response generated with tokens=%d temp=%v, want 150/0.7", call.maxTokens, call.temperature)
	}
	if !strings.Contains(call.prompt, "CALLER (Bob): Tell him the meeting moved to 4pm") {
		t.Errorf("prompt missing utterance:\n%s", call.prompt)
	}
	if !strings.Contains(call.prompt, "Recent conversation:") {
		t.Errorf("prompt missing transcript window:\n%s", call.prompt)
	}

	sess, _ := f.tracker.Snapshot("+15550001")
	last := sess.Transcript[len(sess.Transcript)-1]
	if !strings.HasPrefix(last, "OTTO: ") {
		t.Errorf("transcript tail = %q", last)
	}
	if sess.Transcript[len(sess.Transcript)-2] != "CALLER: Tell him the meeting moved to 4pm" {
		t.Errorf("caller line missing: %v", sess.Transcript)
	}

	ins := f.mem.insertAt(t, 0)
	if ins.Type != "call_transcript" || ins.Importance != 0.8 {
		t.Errorf("memory record = %+v", ins)
	}
}

func TestHandleUtteranceWindowsTranscript(t *testing.T) {
	f := newHandlerFixture(t)
	f.ring(t, protocol.CallSighting{Number: "+15550001", Name: "Bob", State: "RINGING", Contact: true})
	f.activate(t, "+15550001")
	for i := 0; i < 8; i++ {
		f.tracker.AppendTranscript("+15550001", "CALLER: filler line")
	}

	if _, err := f.handler.HandleUtterance(context.Background(), "+15550001", "last words"); err != nil {
		t.Fatalf("utterance: %v", err)
	}

	prompt := f.llm.call(t, 0).prompt
	if strings.Contains(prompt, "OTTO: Hello, this is Otto.") {
		t.Errorf("prompt should only carry the last five transcript lines:\n%s", prompt)
	}
	if !strings.Contains(prompt, "CALLER: last words") {
		t.Errorf("prompt missing the newest line:\n%s", prompt)
	}
}

func TestHandleUtteranceIgnoredUnlessActive(t *testing.T) {
	f := newHandlerFixture(t)
	f.ring(t, protocol.CallSighting{Number: "+15550001", Name: "Bob", State: "RINGING", Contact: true})

	reply, err := f.handler.HandleUtterance(context.Background(), "+15550001", "hello?")
	if err != nil || reply != "" {
		t.Fatalf("got (%q, %v), want quiet drop", reply, err)
	}
	if f.llm.callCount() != 0 {
		t.Error("stray utterance reached the LLM")
	}
}

func TestHandleUtteranceFallbackOnLLMFailure(t *testing.T) {
	f := newHandlerFixture(t)
	f.ring(t, protocol.CallSighting{Number: "+15550001", Name: "Bob", State: "RINGING", Contact: true})
	f.activate(t, "+15550001")
	f.llm.err = errors.New("timeout")

	reply, err := f.handler.HandleUtterance(context.Background(), "+15550001", "can you hear me?")
	if err != nil {
		t.Fatalf("utterance: %v", err)
	}
	if reply != responseFallback {
		t.Errorf("reply = %q, want the fallback phrase", reply)
	}
}

func TestFinishCallSummarizesAnsweredCall(t *testing.T) {
	f := newHandlerFixture(t)
	f.ring(t, protocol.CallSighting{Number: "+15550001", Name: "Bob", State: "RINGING", Contact: true})
	f.activate(t, "+15550001")
	f.tracker.AppendTranscript("+15550001", "CALLER: the meeting moved to 4pm")
	f.llm.reply = "Bob called to move the meeting to 4pm."
	f.now = trackerEpoch.Add(65 * time.Second)

	if err := f.handler.FinishCall(context.Background(), "+15550001"); err != nil {
		t.Fatalf("finish: %v", err)
	}

	call := f.llm.call(t, 0)
	if call.maxTokens != 100 {
		t.Errorf("summary tokens = %d, want 100", call.maxTokens)
	}
	if !strings.Contains(call.prompt, "CALLER: the meeting moved to 4pm") {
		t.Errorf("summary prompt missing transcript:\n%s", call.prompt)
	}

	ins := f.mem.insertAt(t, 0)
	if ins.Type != "call_summary" || ins.Importance != 0.9 || ins.Caller != "Bob" {
		t.Errorf("memory record = %+v", ins)
	}
	if !strings.Contains(ins.Content, "65s") || !strings.Contains(ins.Content, f.llm.reply) {
		t.Errorf("record %q should carry duration and summary", ins.Content)
	}

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	if len(f.notifier.notes) != 1 {
		t.Fatalf("operator notes = %d, want 1", len(f.notifier.notes))
	}
	note := f.notifier.notes[0]
	if !strings.Contains(note, "CALL_SUMMARY") || !strings.Contains(note, "Call from Bob (65s)") {
		t.Errorf("note = %q", note)
	}

	if f.tracker.Len() != 0 {
		t.Error("session not removed after finish")
	}
}

func TestFinishCallFilesMissedCall(t *testing.T) {
	f := newHandlerFixture(t)
	f.ring(t, protocol.CallSighting{Number: "+15550009", State: "RINGING"})

	if err := f.handler.FinishCall(context.Background(), "+15550009"); err != nil {
		t.Fatalf("finish: %v", err)
	}

	ins := f.mem.insertAt(t, 0)
	if ins.Type != "call_missed" || ins.Importance != 0.4 {
		t.Errorf("memory record = %+v", ins)
	}

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	if len(f.notifier.notes) != 1 || !strings.Contains(f.notifier.notes[0], "MISSED_CALL") {
		t.Errorf("notes = %v", f.notifier.notes)
	}
	if f.llm.callCount() != 0 {
		t.Error("missed call should not reach the LLM")
	}
	if f.tracker.Len() != 0 {
		t.Error("session not removed")
	}
}

func TestFinishCallDeclinedIsSilent(t *testing.T) {
	f := newHandlerFixture(t)
	f.ring(t, protocol.CallSighting{Number: "+15550002", State: "RINGING", Spam: true})
	if err := f.handler.EvaluateCall(context.Background(), "+15550002"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	declineInserts := f.mem.insertCount()

	if err := f.handler.FinishCall(context.Background(), "+15550002"); err != nil {
		t.Fatalf("finish: %v", err)
	}

	if got := f.mem.insertCount(); got != declineInserts {
		t.Errorf("finish added %d records for a declined call", got-declineInserts)
	}
	if f.tracker.Len() != 0 {
		t.Error("declined session not removed")
	}
}

func TestFinishCallSummaryFallback(t *testing.T) {
	f := newHandlerFixture(t)
	f.ring(t, protocol.CallSighting{Number: "+15550001", Name: "Bob", State: "RINGING", Contact: true})
	f.activate(t, "+15550001")
	f.llm.err = errors.New("backend gone")

	if err := f.handler.FinishCall(context.Background(), "+15550001"); err != nil {
		t.Fatalf("finish: %v", err)
	}

	ins := f.mem.insertAt(t, 0)
	if !strings.Contains(ins.Content, summaryFallback) {
		t.Errorf("record %q should carry the fallback summary", ins.Content)
	}
}

func TestFinishCallUnknownCallerIsNoop(t *testing.T) {
	f := newHandlerFixture(t)

	if err := f.handler.FinishCall(context.Background(), "+15550042"); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if f.mem.insertCount() != 0 || f.llm.callCount() != 0 {
		t.Error("unknown caller produced side effects")
	}
}

func TestHandlerStateNotesRecorded(t *testing.T) {
	f := newHandlerFixture(t)
	f.ring(t, protocol.CallSighting{Number: "+15550001", Name: "Papa", State: "RINGING", Contact: true})

	if err := f.handler.EvaluateCall(context.Background(), "+15550001"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	f.recorder.mu.Lock()
	defer f.recorder.mu.Unlock()
	if len(f.recorder.notes) < 3 {
		t.Fatalf("state notes = %d, want evaluating/auto_answered/active", len(f.recorder.notes))
	}
	for _, n := range f.recorder.notes {
		if n.kind != protocol.KindCallState {
			t.Errorf("note kind = %s, want call_state", n.kind)
		}
	}
	if !strings.Contains(f.recorder.notes[0].note, string(protocol.CallEvaluating)) {
		t.Errorf("first note = %q", f.recorder.notes[0].note)
	}
}
