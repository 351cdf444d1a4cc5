package main

import (
	"fmt"
	"os"
	"path/filepath"

	"otto/pkg/protocol"
)

// Paths holds all resolved otto state file paths.
// Use ResolvePaths() to populate this struct with defaults + env overrides.
type Paths struct {
	OttoHome          string // ~/.otto or OTTO_HOME
	ConfigPath        string // config.toml or OTTO_CONFIG
	DeviceProfilePath string // device.yaml or OTTO_DEVICE_PROFILE
	PIDPath           string // otto.pid or OTTO_PID_PATH
	StateDBPath       string // state.db or OTTO_DB_PATH
	MemoryDBPath      string // memories.db or OTTO_MEMORY_DB
	StopPath          string // otto.stop or OTTO_STOP_PATH
	HeartbeatPath     string // otto.heartbeat (respects OTTO_HOME)
}

// ResolvePaths returns all otto paths, respecting env var overrides.
// Environment variables:
//   - OTTO_HOME: base directory for all otto state (default: ~/.otto)
//   - OTTO_CONFIG: configuration document (default: $OTTO_HOME/config.toml)
//   - OTTO_DEVICE_PROFILE: device profile (default: $OTTO_HOME/device.yaml)
//   - OTTO_PID_PATH: daemon lock file (default: $OTTO_HOME/otto.pid)
//   - OTTO_DB_PATH: event log database (default: $OTTO_HOME/state.db)
//   - OTTO_MEMORY_DB: memory store database (default: $OTTO_HOME/memories.db)
//   - OTTO_STOP_PATH: stop file (default: $OTTO_HOME/otto.stop)
//
// If OTTO_HOME is set, it becomes the base for all default paths.
// Specific env vars (OTTO_DB_PATH, etc.) override both the default and
// the OTTO_HOME base.
func ResolvePaths() (*Paths, error) {
	home, err := resolveOttoHome()
	if err != nil {
		return nil, err
	}

	return &Paths{
		OttoHome:          home,
		ConfigPath:        resolvePathWithEnv("OTTO_CONFIG", home, protocol.ConfigFile),
		DeviceProfilePath: resolvePathWithEnv("OTTO_DEVICE_PROFILE", home, protocol.DeviceProfileFile),
		PIDPath:           resolvePathWithEnv("OTTO_PID_PATH", home, protocol.PIDFile),
		StateDBPath:       resolvePathWithEnv("OTTO_DB_PATH", home, protocol.StateDBFile),
		MemoryDBPath:      resolvePathWithEnv("OTTO_MEMORY_DB", home, protocol.MemoryDBFile),
		StopPath:          resolvePathWithEnv("OTTO_STOP_PATH", home, protocol.StopFile),
		HeartbeatPath:     filepath.Join(home, protocol.HeartbeatFile),
	}, nil
}

// resolveOttoHome returns the otto home directory from OTTO_HOME or ~/.otto.
func resolveOttoHome() (string, error) {
	if v := os.Getenv("OTTO_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, protocol.OttoDir), nil
}

// resolvePathWithEnv returns the path from envKey if set, otherwise joins base + suffix.
func resolvePathWithEnv(envKey, base, suffix string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return filepath.Join(base, suffix)
}
