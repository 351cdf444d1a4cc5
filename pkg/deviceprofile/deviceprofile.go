// Package deviceprofile loads the device capability document. The profile
// is produced outside this process (a one-time probe script writes it);
// otto only consumes it to decide which tools to bind.
package deviceprofile

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Screen holds the display geometry used by tap/swipe coordinate checks.
type Screen struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	DPI    int `yaml:"dpi"`
}

// Profile describes one device: identity, geometry, and the feature flags
// that gate tool binding.
type Profile struct {
	Manufacturer   string   `yaml:"manufacturer"`
	Model          string   `yaml:"model"`
	AndroidVersion string   `yaml:"android_version"`
	APILevel       int      `yaml:"api_level"`
	Screen         Screen   `yaml:"screen"`
	Rooted         bool     `yaml:"rooted"`
	Features       []string `yaml:"features"`
	Limitations    []string `yaml:"limitations"`

	// Defaulted marks a profile synthesized because no document existed.
	Defaulted bool `yaml:"-"`
}

// Feature flags the engine checks before binding device-dependent tools.
const (
	FeatureTelephony  = "telephony"
	FeatureTermuxAPI  = "termux_api"
	FeatureScreencap  = "screencap"
	FeatureInputShell = "input_shell"
)

// Default returns a permissive profile used when no document exists.
// Every feature is assumed present; status output notes the assumption.
func Default() Profile {
	return Profile{
		Manufacturer: "unknown",
		Model:        "unknown",
		Screen:       Screen{Width: 1080, Height: 2400, DPI: 420},
		Features: []string{
			FeatureTelephony,
			FeatureTermuxAPI,
			FeatureScreencap,
			FeatureInputShell,
		},
		Limitations: []string{"profile not probed, assuming full capability"},
		Defaulted:   true,
	}
}

// Load reads the YAML profile at path. A missing file returns Default().
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from ResolvePaths
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("read device profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse device profile: %w", err)
	}
	return p, nil
}

// Has reports whether the profile declares the named feature.
func (p Profile) Has(feature string) bool {
	for _, f := range p.Features {
		if f == feature {
			return true
		}
	}
	return false
}
