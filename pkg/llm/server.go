package llm

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"otto/pkg/protocol"
)

// Process is a started llama-server subprocess.
type Process interface {
	Wait() error
	Kill() error
}

// Spawner starts llama-server subprocesses.
type Spawner interface {
	Spawn(ctx context.Context, bin string, args []string) (Process, error)
}

// ExecSpawner implements Spawner using os/exec.
type ExecSpawner struct{}

// Spawn starts the binary detached from our stdio.
func (ExecSpawner) Spawn(ctx context.Context, bin string, args []string) (Process, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn llama-server: %w", err)
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Wait() error {
	if err := p.cmd.Wait(); err != nil {
		return fmt.Errorf("wait: %w", err)
	}
	return nil
}

func (p *execProcess) Kill() error {
	if err := p.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("kill: %w", err)
	}
	return nil
}

// ServerConfig holds llama-server launch parameters.
type ServerConfig struct {
	Bin       string // llama-server binary path
	ModelPath string
	Host      string
	Port      int
}

// Server manages the llama-server subprocess lifecycle. If a server is
// already answering on the configured port it is reused and never killed.
type Server struct {
	cfg     ServerConfig
	spawner Spawner
	client  *Client
	proc    Process
	adopted bool // true when a pre-existing server was found

	// health polling knobs, shortened in tests
	healthAttempts int
	healthInterval time.Duration
}

// NewServer creates a Server manager. The client must point at the same
// host:port the server will listen on.
func NewServer(cfg ServerConfig, sp Spawner, client *Client) *Server {
	return &Server{
		cfg:            cfg,
		spawner:        sp,
		client:         client,
		healthAttempts: 30,
		healthInterval: time.Second,
	}
}

// Start launches llama-server and waits for it to become healthy.
// An already-healthy endpoint is adopted instead of spawned over.
func (s *Server) Start(ctx context.Context) error {
	if s.client.Healthy(ctx) {
		s.adopted = true
		return nil
	}

	if s.cfg.ModelPath == "" {
		return &protocol.BackendUnavailableError{
			Backend: "llm",
			Cause:   fmt.Errorf("no model_path configured and no server running on %s", s.cfg.Host),
		}
	}

	args := []string{
		"-m", s.cfg.ModelPath,
		"--host", s.cfg.Host,
		"--port", strconv.Itoa(s.cfg.Port),
		"-c", "2048",
		"-n", "512",
		"--timeout", "300",
	}

	proc, err := s.spawner.Spawn(ctx, s.cfg.Bin, args)
	if err != nil {
		return &protocol.BackendUnavailableError{Backend: "llm", Cause: err}
	}
	s.proc = proc

	for i := 0; i < s.healthAttempts; i++ {
		if s.client.Healthy(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			_ = proc.Kill()
			return fmt.Errorf("llm start: %w", ctx.Err())
		case <-time.After(s.healthInterval):
		}
	}

	_ = proc.Kill()
	return &protocol.BackendUnavailableError{
		Backend: "llm",
		Cause:   fmt.Errorf("server not healthy after %d attempts", s.healthAttempts),
	}
}

// Stop terminates the subprocess if Start spawned one. Adopted servers
// are left running.
func (s *Server) Stop() error {
	if s.adopted || s.proc == nil {
		return nil
	}
	if err := s.proc.Kill(); err != nil {
		return fmt.Errorf("llm stop: %w", err)
	}
	_ = s.proc.Wait()
	s.proc = nil
	return nil
}
