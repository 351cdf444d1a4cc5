// Package llm talks to a local llama.cpp server: a thin completion client
// and a lifecycle manager that spawns and health-checks the subprocess.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"otto/pkg/protocol"
)

// DefaultTimeout bounds a Generate call when the caller's context has no
// deadline of its own.
const DefaultTimeout = 60 * time.Second

// Client is a completion client for a llama-server endpoint.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

// NewClient creates a Client for the given base URL (no trailing slash).
// A zero timeout falls back to DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    &http.Client{},
	}
}

// completionRequest is the llama-server /completion payload.
type completionRequest struct {
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature float64  `json:"temperature"`
	Stop        []string `json:"stop"`
}

// completionResponse carries the reply field we care about.
type completionResponse struct {
	Content string `json:"content"`
}

// Generate sends a prompt and returns the trimmed completion text.
// Transport failures, non-200 statuses, and error-marked replies all come
// back as *protocol.BackendUnavailableError so callers can fall back.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(completionRequest{
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Stop:        []string{"User:", "System:"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &protocol.BackendUnavailableError{Backend: "llm", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &protocol.BackendUnavailableError{
			Backend: "llm",
			Cause:   fmt.Errorf("completion status %d", resp.StatusCode),
		}
	}

	var parsed completionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return "", &protocol.BackendUnavailableError{
			Backend: "llm",
			Cause:   fmt.Errorf("decode completion: %w", err),
		}
	}

	reply := strings.TrimSpace(parsed.Content)
	if strings.HasPrefix(reply, protocol.ErrorReplyMarker) {
		return "", &protocol.BackendUnavailableError{
			Backend: "llm",
			Cause:   fmt.Errorf("error reply: %s", reply),
		}
	}

	return reply, nil
}

// Healthy reports whether the server answers its health endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
