package operator

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Status is the live state snapshot the console exposes.
type Status struct {
	Brain          string         `json:"brain"`   // online | offline
	Watcher        string         `json:"watcher"` // active | stopped
	ToolCount      int            `json:"tool_count"`
	EventCounts    map[string]int `json:"event_counts"`
	ActiveSessions int            `json:"active_sessions"`
	Version        string         `json:"version"`
}

// ToolInfo describes one catalog tool for the capabilities listing.
type ToolInfo struct {
	Name  string `json:"name"`
	Risk  string `json:"risk"`
	Bound bool   `json:"bound"` // has a device binding on this profile
}

// Capabilities lists what the assistant can do on this device.
type Capabilities struct {
	Tools       []ToolInfo `json:"tools"`
	Limitations []string   `json:"limitations,omitempty"`
	AutoAnswer  bool       `json:"auto_answer"`
}

// Core is the engine surface the console talks to. Satisfied by
// *engine.Engine.
type Core interface {
	HandleUserMessage(ctx context.Context, text string) (string, error)
	Status(ctx context.Context) Status
	Capabilities() Capabilities
	RequestShutdown()
}

// ServerConfig configures the inbound console.
type ServerConfig struct {
	Listen string // host:port, default 127.0.0.1:8765
	Token  string // bearer token; empty disables auth
}

func (c *ServerConfig) withDefaults() ServerConfig {
	out := *c
	if out.Listen == "" {
		out.Listen = "127.0.0.1:8765"
	}
	return out
}

// Server is the operator HTTP console.
type Server struct {
	cfg  ServerConfig
	core Core
	srv  *http.Server
}

// NewServer creates a Server for the given core. It does not listen
// until Start() is called.
func NewServer(cfg ServerConfig, core Core) *Server {
	s := &Server{cfg: cfg.withDefaults(), core: core}
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler builds the route tree. Exposed for httptest.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.cfg.Token != "" {
		r.Use(s.requireToken)
	}

	r.Post("/message", s.handleMessage)
	r.Get("/status", s.handleStatus)
	r.Get("/capabilities", s.handleCapabilities)
	r.Post("/shutdown", s.handleShutdown)
	return r
}

// Start begins serving. It returns once the listener is bound; serve
// errors after that surface through the returned channel.
func (s *Server) Start() (<-chan error, error) {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("operator listen %s: %w", s.cfg.Listen, err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh, nil
}

// Shutdown drains the console with a bounded context.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("operator shutdown: %w", err)
	}
	return nil
}

// requireToken enforces the bearer token on every route.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth != "Bearer "+s.cfg.Token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type messageRequest struct {
	Text string `json:"text"`
}

type messageReply struct {
	Reply string `json:"reply"`
}

// handleMessage is the conversational path. Leading-slash commands are
// console built-ins; everything else goes through reasoning.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		http.Error(w, "empty message", http.StatusBadRequest)
		return
	}

	if reply, handled := s.command(r.Context(), text); handled {
		writeJSON(w, messageReply{Reply: reply})
		return
	}

	reply, err := s.core.HandleUserMessage(r.Context(), text)
	if err != nil {
		// The reasoning path degrades to canned text itself; an error here
		// is unexpected, but the operator still gets a sentence.
		reply = "Something went wrong handling that. Please try again."
	}
	writeJSON(w, messageReply{Reply: reply})
}

// command resolves console built-ins: /start, /status, /stop.
func (s *Server) command(ctx context.Context, text string) (string, bool) {
	switch strings.Fields(text)[0] {
	case "/start":
		return s.capabilitiesText(), true
	case "/status":
		return s.statusText(ctx), true
	case "/stop":
		s.core.RequestShutdown()
		return "Shutting down. Goodbye!", true
	default:
		return "", false
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.core.Status(r.Context()))
}

func (s *Server) handleCapabilities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.core.Capabilities())
}

func (s *Server) handleShutdown(w http.ResponseWriter, _ *http.Request) {
	s.core.RequestShutdown()
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte("shutting down\n"))
}

// statusText renders the /status command reply.
func (s *Server) statusText(ctx context.Context) string {
	st := s.core.Status(ctx)

	var b strings.Builder
	fmt.Fprintf(&b, "brain: %s\n", st.Brain)
	fmt.Fprintf(&b, "watcher: %s\n", st.Watcher)
	fmt.Fprintf(&b, "tools: %d\n", st.ToolCount)
	fmt.Fprintf(&b, "active calls: %d\n", st.ActiveSessions)

	if len(st.EventCounts) > 0 {
		kinds := make([]string, 0, len(st.EventCounts))
		for k := range st.EventCounts {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		b.WriteString("events:")
		for _, k := range kinds {
			fmt.Fprintf(&b, " %s=%d", k, st.EventCounts[k])
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "version: %s", st.Version)
	return b.String()
}

// capabilitiesText renders the /start command reply.
func (s *Server) capabilitiesText() string {
	caps := s.core.Capabilities()

	var b strings.Builder
	b.WriteString("Hello! I watch your phone and can act on it within policy.\n\nTools:\n")
	for _, tool := range caps.Tools {
		marker := " "
		if !tool.Bound {
			marker = "!"
		}
		fmt.Fprintf(&b, "%s %s (%s)\n", marker, tool.Name, tool.Risk)
	}
	if len(caps.Limitations) > 0 {
		fmt.Fprintf(&b, "\nDevice limitations: %s\n", strings.Join(caps.Limitations, ", "))
	}
	if caps.AutoAnswer {
		b.WriteString("\nAuto-answer for sustained calls is on.")
	} else {
		b.WriteString("\nAuto-answer is off.")
	}
	return b.String()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
