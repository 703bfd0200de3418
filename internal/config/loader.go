package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"fleetsync/pkg/logging"
)

const (
	userConfigDir  = ".config/fleetsync"
	configFileName = "config.yaml"
)

// DefaultConfigDir returns ~/.config/fleetsync, or .fleetsync in the working
// directory when the home directory cannot be determined.
func DefaultConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".fleetsync"
	}
	return filepath.Join(homeDir, userConfigDir)
}

// LoadSettings loads config.yaml from configDir on top of DefaultSettings.
// A missing file yields the defaults. Parse and validation failures are
// returned as ConfigurationError.
func LoadSettings(configDir string) (Settings, error) {
	configFilePath := filepath.Join(configDir, configFileName)
	settings := DefaultSettings(configDir)

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("ConfigLoader", "No %s found at %s, using defaults", configFileName, configFilePath)
			return settings, nil
		}
		return Settings{}, NewConfigurationError(configFilePath, ErrorTypeIO, fmt.Sprintf("failed to read: %v", err))
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		ce := NewConfigurationError(configFilePath, ErrorTypeParse, err.Error())
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			ce.Suggestions = []string{"durations are written like 5s, 2m or 1h"}
		}
		return Settings{}, ce
	}

	if err := settings.Validate(); err != nil {
		ce := NewConfigurationError(configFilePath, ErrorTypeValidation, err.Error())
		var verr *ValidationError
		if errors.As(err, &verr) {
			ce.Details = fmt.Sprintf("%d invalid settings", len(verr.Problems))
			ce.Suggestions = verr.Problems
		}
		return Settings{}, ce
	}

	logging.Info("ConfigLoader", "Loaded settings from %s", configFilePath)
	return settings, nil
}
