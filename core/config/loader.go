package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/apidelta"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// ProjectConfigFiles are the project-level config file names, in lookup order
var ProjectConfigFiles = []string{"apidelta.yaml", "apidelta.yml", "apidelta.toml", "apidelta.json"}

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/apidelta/config.yaml)
// 3. Project config (apidelta.yaml and friends in current or parent directories)
// 4. The explicit file, if any
//
// An explicit file that cannot be loaded is an error; the other layers are
// optional and only logged.
func (l *Loader) Load(explicit string) (*Config, error) {
	config := DefaultConfig()

	userConfigPath := l.userConfigPath()
	if userConfigPath != "" {
		if userConfig, err := LoadFromFile(userConfigPath); err == nil {
			l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
			config.Merge(userConfig)
		} else if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
		}
	}

	if projectConfigPath := l.findProjectConfig(); projectConfigPath != "" {
		if projectConfig, err := LoadFromFile(projectConfigPath); err == nil {
			l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
			config.Merge(projectConfig)
		} else {
			l.logger.Warn("Failed to load project config", slog.String("path", projectConfigPath), slog.String("error", err.Error()))
		}
	} else {
		l.logger.Debug("No project config found")
	}

	if explicit != "" {
		explicitConfig, err := LoadFromFile(explicit)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded config", slog.String("path", explicit))
		config.Merge(explicitConfig)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for a project config in current and parent directories
func (l *Loader) findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		for _, name := range ProjectConfigFiles {
			configPath := filepath.Join(dir, name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
