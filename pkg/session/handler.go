package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"otto/pkg/action"
	"otto/pkg/memory"
	"otto/pkg/protocol"
	"otto/pkg/watch"
)

// Fallback phrases keep the conversation moving when the language model
// is unreachable or returns nothing.
const (
	responseFallback = "Sorry, I didn't catch that. Could you say it again?"
	summaryFallback  = "The conversation could not be summarized; the transcript was kept."
)

// LLM is the completion surface the handler phrases with. Satisfied by
// *llm.Client.
type LLM interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// Actions executes policy-gated device actions. Satisfied by
// *action.Executor.
type Actions interface {
	Execute(ctx context.Context, req action.Request, approved bool) action.Result
}

// MemoryStore is the slice of the memory store the handler touches.
// Satisfied by *memory.Store.
type MemoryStore interface {
	Insert(ctx context.Context, p memory.InsertParams) (int64, error)
	Recall(ctx context.Context, query string, limit int) ([]memory.Record, error)
	CountByCaller(ctx context.Context, caller string) (int, error)
}

// Notifier pushes a note to the operator. Satisfied by the operator
// package's notifiers.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Recorder logs call state transitions to the event log.
type Recorder interface {
	RecordNote(ctx context.Context, kind protocol.EventKind, source, note string) error
}

// HandlerConfig carries the persona and the answer-rule knobs.
type HandlerConfig struct {
	AssistantName string // persona in prompts (default "Otto")
	OwnerName     string // how the caller hears about the operator (default "the boss")
	WorkHoursStart int   // first work hour, inclusive
	WorkHoursEnd   int   // last work hour, inclusive
}

func (c *HandlerConfig) withDefaults() HandlerConfig {
	out := *c
	if out.AssistantName == "" {
		out.AssistantName = "Otto"
	}
	if out.OwnerName == "" {
		out.OwnerName = "the boss"
	}
	if out.WorkHoursStart == 0 && out.WorkHoursEnd == 0 {
		out.WorkHoursStart = 9
		out.WorkHoursEnd = 18
	}
	return out
}

// Handler reacts to call lifecycle events: it decides whether to pick up,
// speaks for the operator during the call, and files the paper trail when
// the call ends. Enabling auto-answer constitutes standing operator
// approval for the high-risk call controls, so executions pass approved.
type Handler struct {
	cfg      HandlerConfig
	tracker  *Tracker
	llm      LLM
	actions  Actions
	mem      MemoryStore
	notifier Notifier
	recorder Recorder

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// NewHandler creates a Handler around the tracker and its collaborators.
func NewHandler(cfg HandlerConfig, tracker *Tracker, llmClient LLM, actions Actions, mem MemoryStore, notifier Notifier, recorder Recorder) *Handler {
	return &Handler{
		cfg:      cfg.withDefaults(),
		tracker:  tracker,
		llm:      llmClient,
		actions:  actions,
		mem:      mem,
		notifier: notifier,
		recorder: recorder,
		nowFunc:  time.Now,
	}
}

// Register wires the handler into the dispatcher.
func (h *Handler) Register(d *watch.Dispatcher) {
	d.Register(protocol.KindCallAutoAnswer, h.handleAutoAnswerEvent)
	d.Register(protocol.KindCallUtterance, h.handleUtteranceEvent)
	d.Register(protocol.KindCallEnded, h.handleEndedEvent)
}

func (h *Handler) handleAutoAnswerEvent(ctx context.Context, ev protocol.Event) error {
	return h.EvaluateCall(ctx, ev.PayloadString("caller"))
}

func (h *Handler) handleUtteranceEvent(ctx context.Context, ev protocol.Event) error {
	_, err := h.HandleUtterance(ctx, ev.PayloadString("caller"), ev.PayloadString("text"))
	return err
}

func (h *Handler) handleEndedEvent(ctx context.Context, ev protocol.Event) error {
	return h.FinishCall(ctx, ev.PayloadString("caller"))
}

// EvaluateCall runs the should-answer decision for a call that rang past
// the auto-answer mark, then either picks it up and greets the caller or
// declines it.
func (h *Handler) EvaluateCall(ctx context.Context, callerID string) error {
	if !h.tracker.Transition(callerID, protocol.CallRinging, protocol.CallEvaluating) {
		// Already handled, or the call ended while the trigger was queued.
		return nil
	}
	h.noteState(ctx, callerID, protocol.CallEvaluating)

	sess, ok := h.tracker.Snapshot(callerID)
	if !ok {
		return fmt.Errorf("evaluate call: no session for %s", callerID)
	}

	// A caller with enough remembered history is a friend even when the
	// contact name says nothing.
	if sess.Relationship == protocol.RelAcquaintance {
		if n, err := h.mem.CountByCaller(ctx, callerKey(sess)); err == nil {
			if rel := Classify(sess.CallerName, n); rel != sess.Relationship {
				h.tracker.Reclassify(callerID, rel)
				sess.Relationship = rel
				sess.Urgency = BaseUrgency(rel)
			}
		}
	}

	recalled, err := h.mem.Recall(ctx, callerKey(sess), 5)
	if err != nil {
		recalled = nil
	}
	contents := make([]string, 0, len(recalled))
	for _, r := range recalled {
		contents = append(contents, r.Content)
	}

	answer, reason := ShouldAnswer(AnswerInputs{
		Session:   sess,
		Now:       h.nowFunc(),
		WorkStart: h.cfg.WorkHoursStart,
		WorkEnd:   h.cfg.WorkHoursEnd,
		NeedHint:  HasNeedIndicator(contents),
	})
	if !answer {
		return h.decline(ctx, sess, reason)
	}
	return h.answer(ctx, sess, recalled)
}

func (h *Handler) answer(ctx context.Context, sess CallSession, recalled []memory.Record) error {
	callerID := sess.CallerID

	res := h.actions.Execute(ctx, action.Request{Tool: action.ToolAnswerCall}, true)
	if !res.Success {
		// Leave the session where it is; the hangup sweep files it as missed.
		return fmt.Errorf("answer call from %s: %s", callerKey(sess), res.Error)
	}

	h.tracker.Transition(callerID, protocol.CallEvaluating, protocol.CallAutoAnswered)
	h.noteState(ctx, callerID, protocol.CallAutoAnswered)

	greeting := h.greet(ctx, sess, recalled)
	h.speak(ctx, greeting)
	h.tracker.AppendTranscript(callerID, fmt.Sprintf("%s: %s", h.transcriptName(), greeting))

	_, _ = h.mem.Insert(ctx, memory.InsertParams{
		Content:    fmt.Sprintf("Answered call from %s. Said: %s", callerKey(sess), greeting),
		Type:       "call_answered",
		Caller:     callerKey(sess),
		Importance: 0.9,
	})

	h.tracker.Transition(callerID, protocol.CallAutoAnswered, protocol.CallActive)
	h.noteState(ctx, callerID, protocol.CallActive)
	return nil
}

func (h *Handler) decline(ctx context.Context, sess CallSession, reason string) error {
	callerID := sess.CallerID

	res := h.actions.Execute(ctx, action.Request{Tool: action.ToolEndCall}, true)
	if !res.Success {
		return fmt.Errorf("decline call from %s: %s", callerKey(sess), res.Error)
	}

	h.tracker.Transition(callerID, protocol.CallEvaluating, protocol.CallDeclined)
	h.noteState(ctx, callerID, protocol.CallDeclined)

	_, _ = h.mem.Insert(ctx, memory.InsertParams{
		Content:    fmt.Sprintf("Declined call from %s: %s", callerKey(sess), reason),
		Type:       "call_declined",
		Caller:     callerKey(sess),
		Importance: 0.5,
	})
	return nil
}

// HandleUtterance feeds one caller utterance into an active call and
// returns what was said back. Utterances for calls that are not active
// are stray speech-to-text fragments and are dropped.
func (h *Handler) HandleUtterance(ctx context.Context, callerID, text string) (string, error) {
	sess, ok := h.tracker.Snapshot(callerID)
	if !ok || sess.State != protocol.CallActive || strings.TrimSpace(text) == "" {
		return "", nil
	}

	h.tracker.AppendTranscript(callerID, "CALLER: "+text)
	sess, _ = h.tracker.Snapshot(callerID)

	reply, err := h.llm.Generate(ctx, h.responsePrompt(sess, text), 150, 0.7)
	if err != nil || strings.TrimSpace(reply) == "" {
		reply = responseFallback
	}

	h.speak(ctx, reply)
	h.tracker.AppendTranscript(callerID, fmt.Sprintf("%s: %s", h.transcriptName(), reply))

	_, _ = h.mem.Insert(ctx, memory.InsertParams{
		Content:    fmt.Sprintf("Call with %s: %s -> %s", callerKey(sess), text, reply),
		Type:       "call_transcript",
		Caller:     callerKey(sess),
		Importance: 0.8,
	})
	return reply, nil
}

// FinishCall closes out a session whose call left the telephony snapshot.
// Answered calls get a summary and an operator note; calls that never got
// picked up are filed as missed.
func (h *Handler) FinishCall(ctx context.Context, callerID string) error {
	sess, ok := h.tracker.Snapshot(callerID)
	if !ok {
		return nil
	}
	defer h.tracker.Remove(callerID)

	switch sess.State {
	case protocol.CallActive, protocol.CallAutoAnswered:
		h.tracker.Transition(callerID, sess.State, protocol.CallEnded)
		h.noteState(ctx, callerID, protocol.CallEnded)
		return h.summarize(ctx, sess)
	case protocol.CallDeclined:
		// Already recorded when the decline happened.
		return nil
	default:
		// Ringing or Evaluating: nobody picked up.
		_, _ = h.mem.Insert(ctx, memory.InsertParams{
			Content:    fmt.Sprintf("Missed call from %s", callerKey(sess)),
			Type:       "call_missed",
			Caller:     callerKey(sess),
			Importance: 0.4,
		})
		h.notify(ctx, protocol.FormatOperatorNote(protocol.NoteMissedCall,
			fmt.Sprintf("Missed call from %s", callerKey(sess)), ""))
		return nil
	}
}

func (h *Handler) summarize(ctx context.Context, sess CallSession) error {
	duration := int(h.nowFunc().Sub(sess.StartedAt).Seconds())

	summary, err := h.llm.Generate(ctx, h.summaryPrompt(sess), 100, 0.7)
	if err != nil || strings.TrimSpace(summary) == "" {
		summary = summaryFallback
	}

	_, _ = h.mem.Insert(ctx, memory.InsertParams{
		Content:    fmt.Sprintf("Call summary with %s (%ds): %s", callerKey(sess), duration, summary),
		Type:       "call_summary",
		Caller:     callerKey(sess),
		Importance: 0.9,
	})

	h.notify(ctx, protocol.FormatOperatorNote(protocol.NoteCallSummary,
		fmt.Sprintf("Call from %s (%ds)", callerKey(sess), duration), summary))
	return nil
}

// greet produces the opening line for an answered call.
func (h *Handler) greet(ctx context.Context, sess CallSession, recalled []memory.Record) string {
	greeting, err := h.llm.Generate(ctx, h.greetingPrompt(sess, recalled), 150, 0.8)
	if err != nil || strings.TrimSpace(greeting) == "" {
		return fmt.Sprintf("Hello! This is %s, %s's assistant. %s isn't available right now, but I can take a message.",
			h.cfg.AssistantName, h.cfg.OwnerName, h.cfg.OwnerName)
	}
	return greeting
}

func (h *Handler) greetingPrompt(sess CallSession, recalled []memory.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, an AI assistant answering a phone call for %s.\n\n", h.cfg.AssistantName, h.cfg.OwnerName)
	fmt.Fprintf(&b, "CALLER: %s\n", callerKey(sess))
	fmt.Fprintf(&b, "RELATIONSHIP: %s\n", sess.Relationship)
	if block := recentContext(recalled); block != "" {
		fmt.Fprintf(&b, "CONTEXT:\n%s\n", block)
	}
	fmt.Fprintf(&b, "\nGenerate a natural, friendly greeting (2-3 sentences) that:\n")
	fmt.Fprintf(&b, "1. Introduces yourself as %s's assistant\n", h.cfg.OwnerName)
	fmt.Fprintf(&b, "2. Explains that %s is not available right now\n", h.cfg.OwnerName)
	fmt.Fprintf(&b, "3. Asks how you can help, in a tone fitting the relationship\n\nYour greeting:")
	return b.String()
}

func (h *Handler) responsePrompt(sess CallSession, text string) string {
	lines := sess.Transcript
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s on a phone call. Generate a response.\n\n", h.cfg.AssistantName)
	fmt.Fprintf(&b, "CALLER (%s): %s\n\n", callerKey(sess), text)
	fmt.Fprintf(&b, "Recent conversation:\n%s\n\n", strings.Join(lines, "\n"))
	b.WriteString("Respond naturally and helpfully. Be concise (1-2 sentences). If you need to take a message or relay info, offer to do so.")
	return b.String()
}

func (h *Handler) summaryPrompt(sess CallSession) string {
	return fmt.Sprintf("Summarize this phone call transcript in 2-3 sentences:\n\n%s\n\nSummary:",
		strings.Join(sess.Transcript, "\n"))
}

// recentContext renders up to three remembered interactions as a bullet
// block for the greeting prompt.
func recentContext(recalled []memory.Record) string {
	if len(recalled) == 0 {
		return ""
	}
	if len(recalled) > 3 {
		recalled = recalled[:3]
	}
	var b strings.Builder
	b.WriteString("Recent interactions:")
	for _, r := range recalled {
		b.WriteString("\n- " + r.Content)
	}
	return b.String()
}

// speak voices a line through the device TTS. Failures are swallowed; a
// silent assistant is better than an aborted call flow.
func (h *Handler) speak(ctx context.Context, text string) {
	_ = h.actions.Execute(ctx, action.Request{
		Tool:   action.ToolSpeakText,
		Params: map[string]any{"text": text},
	}, true)
}

func (h *Handler) notify(ctx context.Context, text string) {
	if h.notifier == nil {
		return
	}
	_ = h.notifier.Notify(ctx, text)
}

func (h *Handler) noteState(ctx context.Context, callerID string, state protocol.CallState) {
	if h.recorder == nil {
		return
	}
	_ = h.recorder.RecordNote(ctx, protocol.KindCallState, "session",
		fmt.Sprintf("%s -> %s", callerID, state))
}

func (h *Handler) transcriptName() string {
	return strings.ToUpper(h.cfg.AssistantName)
}

// callerKey is the name used to file and recall memories about a caller:
// the contact name when known, the bare number otherwise.
func callerKey(sess CallSession) string {
	if sess.CallerName != "" {
		return sess.CallerName
	}
	return sess.CallerID
}
