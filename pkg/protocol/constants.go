package protocol

// Directory and file name constants used throughout otto.
const (
	// OttoDir is the user-level state directory (e.g., ~/.otto).
	OttoDir = ".otto"

	// ConfigFile is the TOML configuration document inside OttoDir.
	ConfigFile = "config.toml"

	// DeviceProfileFile is the YAML device profile inside OttoDir.
	DeviceProfileFile = "device.yaml"

	// StateDBFile holds the runtime event log.
	StateDBFile = "state.db"

	// MemoryDBFile holds long-lived assistant memory.
	MemoryDBFile = "memories.db"

	// PIDFile is the daemon lock file.
	PIDFile = "otto.pid"

	// StopFile requests a graceful daemon shutdown when it appears.
	StopFile = "otto.stop"

	// HeartbeatFile carries the daemon's last-alive timestamp.
	HeartbeatFile = "otto.heartbeat"
)

// ErrorReplyMarker prefixes error-shaped strings returned by the LLM
// backend in place of generated text. Any reply starting with this marker
// must be treated as a failure, not as output.
const ErrorReplyMarker = "Error:"
