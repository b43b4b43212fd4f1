// Package settings manages persistent user settings for the routecheck CLI.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Settings holds persistent user preferences
type Settings struct {
	// Testbed is the testbed file used when --testbed is not given
	Testbed string `json:"testbed,omitempty"`

	// ReportDir is where the markdown report is written
	ReportDir string `json:"report_dir,omitempty"`

	// JUnitPath is the default --junit output
	JUnitPath string `json:"junit_path,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "routecheck_settings.json"
	}
	return filepath.Join(home, ".routecheck", "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path. A missing file yields empty
// settings.
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// GetReportDir returns the report directory (with fallback)
func (s *Settings) GetReportDir() string {
	if s.ReportDir != "" {
		return s.ReportDir
	}
	return "routecheck-reports"
}

// Set assigns the setting named key. It reports false for unknown keys.
func (s *Settings) Set(key, value string) bool {
	switch key {
	case "testbed":
		s.Testbed = value
	case "report_dir":
		s.ReportDir = value
	case "junit_path":
		s.JUnitPath = value
	default:
		return false
	}
	return true
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
