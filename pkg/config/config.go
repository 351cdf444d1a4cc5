// Package config loads the otto configuration document. Precedence:
// environment overrides > the TOML file > built-in defaults. A missing
// file is not an error; the defaults describe a working local setup.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full configuration document.
type Config struct {
	Assistant AssistantConfig `toml:"assistant"`
	LLM       LLMConfig       `toml:"llm"`
	Watcher   WatcherConfig   `toml:"watcher"`
	Call      CallConfig      `toml:"call"`
	Calendar  CalendarConfig  `toml:"calendar"`
	Action    ActionConfig    `toml:"action"`
	Frontend  FrontendConfig  `toml:"frontend"`
	Policy    PolicyConfig    `toml:"policy"`
}

// AssistantConfig names the persona used in prompts and operator notes.
type AssistantConfig struct {
	Name  string `toml:"name"`
	Owner string `toml:"owner"`
}

// LLMConfig locates the model and the llama-server binary.
type LLMConfig struct {
	ModelPath      string `toml:"model_path"`
	ServerBin      string `toml:"server_bin"`
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// WatcherConfig tunes producer poll intervals and dispatcher bounds.
type WatcherConfig struct {
	CallIntervalMS         int `toml:"call_interval_ms"`
	NotificationIntervalMS int `toml:"notification_interval_ms"`
	CalendarIntervalMS     int `toml:"calendar_interval_ms"`
	QueueSize              int `toml:"queue_size"`
	MaxInflightHandlers    int `toml:"max_inflight_handlers"`
}

// CallConfig tunes the call session state machine.
type CallConfig struct {
	AutoAnswerDelaySeconds int  `toml:"auto_answer_delay_seconds"`
	AutoAnswerEnabled      bool `toml:"auto_answer_enabled"`
	WorkHoursStart         int  `toml:"work_hours_start"`
	WorkHoursEnd           int  `toml:"work_hours_end"`
}

// CalendarConfig defines the reminder windows in minutes before an event.
type CalendarConfig struct {
	WarningWindowMinutes int `toml:"warning_window_minutes"`
	UrgentWindowMinutes  int `toml:"urgent_window_minutes"`
}

// ActionConfig bounds individual tool invocations.
type ActionConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// FrontendConfig configures the operator HTTP console and outbound webhook.
type FrontendConfig struct {
	Listen     string `toml:"listen"`
	Token      string `toml:"token"`
	WebhookURL string `toml:"webhook_url"`
}

// PolicyConfig extends the built-in deny-set. Entries here can only add
// denials, never remove them.
type PolicyConfig struct {
	Deny []string `toml:"deny"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Assistant: AssistantConfig{
			Name:  "Otto",
			Owner: "the boss",
		},
		LLM: LLMConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			TimeoutSeconds: 60,
		},
		Watcher: WatcherConfig{
			CallIntervalMS:         1000,
			NotificationIntervalMS: 2000,
			CalendarIntervalMS:     30000,
			QueueSize:              256,
			MaxInflightHandlers:    32,
		},
		Call: CallConfig{
			AutoAnswerDelaySeconds: 20,
			AutoAnswerEnabled:      true,
			WorkHoursStart:         9,
			WorkHoursEnd:           18,
		},
		Calendar: CalendarConfig{
			WarningWindowMinutes: 5,
			UrgentWindowMinutes:  2,
		},
		Action: ActionConfig{
			TimeoutSeconds: 30,
		},
		Frontend: FrontendConfig{
			Listen: "127.0.0.1:8765",
		},
	}
}

// Load reads the TOML document at path, layered over Default(), then applies
// environment overrides. A missing file yields defaults plus overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) //nolint:gosec // path comes from ResolvePaths
	switch {
	case errors.Is(err, os.ErrNotExist):
		// fine, defaults apply
	case err != nil:
		return Config{}, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg.withDefaults(), nil
}

// applyEnv overlays the supported OTTO_* environment variables.
// Malformed numeric values are ignored rather than fatal.
func (c *Config) applyEnv() {
	if v := os.Getenv("OTTO_MODEL_PATH"); v != "" {
		c.LLM.ModelPath = v
	}
	if v := os.Getenv("OTTO_LLM_URL"); v != "" {
		if host, port, err := net.SplitHostPort(v); err == nil {
			if p, err := strconv.Atoi(port); err == nil {
				c.LLM.Host = host
				c.LLM.Port = p
			}
		}
	}
	if v := os.Getenv("OTTO_LISTEN"); v != "" {
		c.Frontend.Listen = v
	}
	if v := os.Getenv("OTTO_FRONTEND_TOKEN"); v != "" {
		c.Frontend.Token = v
	}
	if v := os.Getenv("OTTO_WEBHOOK_URL"); v != "" {
		c.Frontend.WebhookURL = v
	}
	if v := os.Getenv("OTTO_AUTO_ANSWER_DELAY"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Call.AutoAnswerDelaySeconds = secs
		}
	}
}

// withDefaults fills zero values so that partially constructed Configs
// (tests, programmatic use) behave like Default().
func (c *Config) withDefaults() Config {
	out := *c
	def := Default()

	if out.Assistant.Name == "" {
		out.Assistant.Name = def.Assistant.Name
	}
	if out.Assistant.Owner == "" {
		out.Assistant.Owner = def.Assistant.Owner
	}
	if out.LLM.Host == "" {
		out.LLM.Host = def.LLM.Host
	}
	if out.LLM.Port == 0 {
		out.LLM.Port = def.LLM.Port
	}
	if out.LLM.TimeoutSeconds == 0 {
		out.LLM.TimeoutSeconds = def.LLM.TimeoutSeconds
	}
	if out.Watcher.CallIntervalMS == 0 {
		out.Watcher.CallIntervalMS = def.Watcher.CallIntervalMS
	}
	if out.Watcher.NotificationIntervalMS == 0 {
		out.Watcher.NotificationIntervalMS = def.Watcher.NotificationIntervalMS
	}
	if out.Watcher.CalendarIntervalMS == 0 {
		out.Watcher.CalendarIntervalMS = def.Watcher.CalendarIntervalMS
	}
	if out.Watcher.QueueSize == 0 {
		out.Watcher.QueueSize = def.Watcher.QueueSize
	}
	if out.Watcher.MaxInflightHandlers == 0 {
		out.Watcher.MaxInflightHandlers = def.Watcher.MaxInflightHandlers
	}
	if out.Call.AutoAnswerDelaySeconds == 0 {
		out.Call.AutoAnswerDelaySeconds = def.Call.AutoAnswerDelaySeconds
	}
	if out.Call.WorkHoursStart == 0 && out.Call.WorkHoursEnd == 0 {
		out.Call.WorkHoursStart = def.Call.WorkHoursStart
		out.Call.WorkHoursEnd = def.Call.WorkHoursEnd
	}
	if out.Calendar.WarningWindowMinutes == 0 {
		out.Calendar.WarningWindowMinutes = def.Calendar.WarningWindowMinutes
	}
	if out.Calendar.UrgentWindowMinutes == 0 {
		out.Calendar.UrgentWindowMinutes = def.Calendar.UrgentWindowMinutes
	}
	if out.Action.TimeoutSeconds == 0 {
		out.Action.TimeoutSeconds = def.Action.TimeoutSeconds
	}
	if out.Frontend.Listen == "" {
		out.Frontend.Listen = def.Frontend.Listen
	}
	return out
}

// Resolve fills zero values in a programmatically built Config, matching
// what Load would produce for the same document.
func Resolve(c Config) Config {
	return c.withDefaults()
}

// LLMBaseURL returns the llama-server base URL.
func (c Config) LLMBaseURL() string {
	return fmt.Sprintf("http://%s", net.JoinHostPort(c.LLM.Host, strconv.Itoa(c.LLM.Port)))
}

// LLMTimeout returns the per-request LLM deadline.
func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// CallInterval returns the call producer poll interval.
func (c Config) CallInterval() time.Duration {
	return time.Duration(c.Watcher.CallIntervalMS) * time.Millisecond
}

// NotificationInterval returns the notification producer poll interval.
func (c Config) NotificationInterval() time.Duration {
	return time.Duration(c.Watcher.NotificationIntervalMS) * time.Millisecond
}

// CalendarInterval returns the calendar producer poll interval.
func (c Config) CalendarInterval() time.Duration {
	return time.Duration(c.Watcher.CalendarIntervalMS) * time.Millisecond
}

// CalendarWarningWindow returns how far ahead of an appointment the
// first reminder fires.
func (c Config) CalendarWarningWindow() time.Duration {
	return time.Duration(c.Calendar.WarningWindowMinutes) * time.Minute
}

// CalendarUrgentWindow returns how far ahead of an appointment the
// last-call reminder fires.
func (c Config) CalendarUrgentWindow() time.Duration {
	return time.Duration(c.Calendar.UrgentWindowMinutes) * time.Minute
}

// AutoAnswerDelay returns how long a call may ring before the session
// tracker arms the auto-answer decision.
func (c Config) AutoAnswerDelay() time.Duration {
	return time.Duration(c.Call.AutoAnswerDelaySeconds) * time.Second
}

// ActionTimeout returns the per-invocation tool deadline.
func (c Config) ActionTimeout() time.Duration {
	return time.Duration(c.Action.TimeoutSeconds) * time.Second
}
