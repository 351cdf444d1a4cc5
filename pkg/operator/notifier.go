// Package operator is the messaging front-end: a localhost HTTP console
// the human operator talks to, and an outbound notifier that pushes
// assistant-initiated notes (call summaries, unhandled notifications) the
// other way.
package operator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"otto/pkg/protocol"
)

// Notifier pushes one note to the operator.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// WebhookNotifier POSTs notes as JSON to a configured URL. Any chat glue
// (a Telegram relay, ntfy, a home-automation hook) terminates the webhook.
type WebhookNotifier struct {
	url   string
	token string
	http  *http.Client
}

// NewWebhookNotifier creates a WebhookNotifier. Token is optional; when
// set it is sent as a bearer token.
func NewWebhookNotifier(url, token string) *WebhookNotifier {
	return &WebhookNotifier{
		url:   url,
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify delivers one note. Non-2xx responses and transport failures come
// back as *protocol.BackendUnavailableError.
func (n *WebhookNotifier) Notify(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("marshal note: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build note request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.http.Do(req)
	if err != nil {
		return &protocol.BackendUnavailableError{Backend: "webhook", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &protocol.BackendUnavailableError{
			Backend: "webhook",
			Cause:   fmt.Errorf("webhook status %d", resp.StatusCode),
		}
	}
	return nil
}

// NoteRecorder is the slice of the event log the LogNotifier writes to.
type NoteRecorder interface {
	RecordNote(ctx context.Context, kind protocol.EventKind, source, note string) error
}

// LogNotifier files notes in the event log when no webhook is configured.
// The operator reads them later via `otto logs` or the dashboard.
type LogNotifier struct {
	rec NoteRecorder
}

// NewLogNotifier creates a LogNotifier over the event log.
func NewLogNotifier(rec NoteRecorder) *LogNotifier {
	return &LogNotifier{rec: rec}
}

// Notify records the note.
func (n *LogNotifier) Notify(ctx context.Context, text string) error {
	if n.rec == nil {
		return nil
	}
	if err := n.rec.RecordNote(ctx, protocol.KindOperatorNote, "operator", text); err != nil {
		return fmt.Errorf("log note: %w", err)
	}
	return nil
}
