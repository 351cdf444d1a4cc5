package config //nolint:testpackage // white-box tests for applyEnv and withDefaults

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Assistant.Name != "Otto" {
		t.Errorf("expected default assistant name, got %q", cfg.Assistant.Name)
	}
	if cfg.LLM.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.LLM.Port)
	}
	if !cfg.Call.AutoAnswerEnabled {
		t.Error("expected auto answer enabled by default")
	}
	if cfg.Watcher.QueueSize != 256 {
		t.Errorf("expected default queue size 256, got %d", cfg.Watcher.QueueSize)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	doc := `
[assistant]
name = "Jeeves"

[llm]
port = 9090

[call]
auto_answer_enabled = false
auto_answer_delay_seconds = 10

[policy]
deny = ["send_sms"]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Assistant.Name != "Jeeves" {
		t.Errorf("expected name from file, got %q", cfg.Assistant.Name)
	}
	if cfg.LLM.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.LLM.Port)
	}
	// File can switch a default-true flag off.
	if cfg.Call.AutoAnswerEnabled {
		t.Error("expected auto answer disabled by file")
	}
	if cfg.AutoAnswerDelay() != 10*time.Second {
		t.Errorf("expected 10s delay, got %v", cfg.AutoAnswerDelay())
	}
	if len(cfg.Policy.Deny) != 1 || cfg.Policy.Deny[0] != "send_sms" {
		t.Errorf("expected deny extension, got %v", cfg.Policy.Deny)
	}
	// Untouched sections keep defaults.
	if cfg.Frontend.Listen != "127.0.0.1:8765" {
		t.Errorf("expected default listen, got %q", cfg.Frontend.Listen)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[llm\nport ="), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	doc := `
[llm]
host = "10.0.0.1"
port = 9090
model_path = "/models/file.gguf"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("OTTO_LLM_URL", "127.0.0.1:8088")
	t.Setenv("OTTO_MODEL_PATH", "/models/env.gguf")
	t.Setenv("OTTO_FRONTEND_TOKEN", "sekrit")
	t.Setenv("OTTO_AUTO_ANSWER_DELAY", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LLM.Host != "127.0.0.1" || cfg.LLM.Port != 8088 {
		t.Errorf("expected env host:port, got %s:%d", cfg.LLM.Host, cfg.LLM.Port)
	}
	if cfg.LLM.ModelPath != "/models/env.gguf" {
		t.Errorf("expected env model path, got %q", cfg.LLM.ModelPath)
	}
	if cfg.Frontend.Token != "sekrit" {
		t.Errorf("expected env token, got %q", cfg.Frontend.Token)
	}
	if cfg.Call.AutoAnswerDelaySeconds != 7 {
		t.Errorf("expected env delay 7, got %d", cfg.Call.AutoAnswerDelaySeconds)
	}
}

func TestApplyEnv_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("OTTO_LLM_URL", "not-a-hostport")
	t.Setenv("OTTO_AUTO_ANSWER_DELAY", "soon")

	cfg := Default()
	cfg.applyEnv()

	if cfg.LLM.Host != "127.0.0.1" || cfg.LLM.Port != 8080 {
		t.Errorf("malformed OTTO_LLM_URL must be ignored, got %s:%d", cfg.LLM.Host, cfg.LLM.Port)
	}
	if cfg.Call.AutoAnswerDelaySeconds != 20 {
		t.Errorf("malformed delay must be ignored, got %d", cfg.Call.AutoAnswerDelaySeconds)
	}
}

func TestWithDefaults_FillsZeroValues(t *testing.T) {
	cfg := (&Config{}).withDefaults()

	if cfg.Watcher.MaxInflightHandlers != 32 {
		t.Errorf("expected inflight default, got %d", cfg.Watcher.MaxInflightHandlers)
	}
	if cfg.Call.WorkHoursStart != 9 || cfg.Call.WorkHoursEnd != 18 {
		t.Errorf("expected work hours 9..18, got %d..%d", cfg.Call.WorkHoursStart, cfg.Call.WorkHoursEnd)
	}
	if cfg.ActionTimeout() != 30*time.Second {
		t.Errorf("expected 30s action timeout, got %v", cfg.ActionTimeout())
	}
}

func TestWithDefaults_KeepsExplicitWorkHours(t *testing.T) {
	cfg := (&Config{Call: CallConfig{WorkHoursStart: 0, WorkHoursEnd: 23}}).withDefaults()

	// An explicit end hour means the pair was set; start 0 is midnight.
	if cfg.Call.WorkHoursStart != 0 || cfg.Call.WorkHoursEnd != 23 {
		t.Errorf("expected explicit hours kept, got %d..%d", cfg.Call.WorkHoursStart, cfg.Call.WorkHoursEnd)
	}
}

func TestLLMBaseURL(t *testing.T) {
	cfg := Default()
	if got := cfg.LLMBaseURL(); got != "http://127.0.0.1:8080" {
		t.Errorf("unexpected base url: %s", got)
	}
}

func TestCalendarWindows(t *testing.T) {
	cfg := Default()
	if got := cfg.CalendarWarningWindow(); got != 5*time.Minute {
		t.Errorf("warning window = %s, want 5m", got)
	}
	if got := cfg.CalendarUrgentWindow(); got != 2*time.Minute {
		t.Errorf("urgent window = %s, want 2m", got)
	}

	cfg.Calendar.WarningWindowMinutes = 10
	cfg.Calendar.UrgentWindowMinutes = 4
	if got := cfg.CalendarWarningWindow(); got != 10*time.Minute {
		t.Errorf("warning window = %s, want 10m", got)
	}
	if got := cfg.CalendarUrgentWindow(); got != 4*time.Minute {
		t.Errorf("urgent window = %s, want 4m", got)
	}
}
