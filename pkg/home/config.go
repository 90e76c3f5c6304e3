package home

import (
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Sessions SessionsConfig `yaml:"sessions"`
	Projects ProjectsConfig `yaml:"projects"`
	Limits   LimitsConfig   `yaml:"limits"`
	Bash     BashConfig     `yaml:"bash"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SessionsConfig contains session log settings
type SessionsConfig struct {
	TTLHours int    `yaml:"ttlHours"`
	IDPrefix string `yaml:"idPrefix"`
	IDLength int    `yaml:"idLength"`
}

// TTL returns the session expiry window
func (c SessionsConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// ProjectsConfig contains project discovery settings
type ProjectsConfig struct {
	BaseDir string `yaml:"baseDir"`
}

// LimitsConfig bounds what file and tree tools will return
type LimitsConfig struct {
	MaxFileSizeBytes int64 `yaml:"maxFileSizeBytes"`
	MaxTreeDepth     int   `yaml:"maxTreeDepth"`
	MaxTreeEntries   int   `yaml:"maxTreeEntries"`
	MaxOutputBytes   int   `yaml:"maxOutputBytes"`
}

// BashConfig contains bash_run settings
type BashConfig struct {
	DefaultTimeoutSeconds int `yaml:"defaultTimeoutSeconds"`
	MaxTimeoutSeconds     int `yaml:"maxTimeoutSeconds"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// LoadConfig loads configuration from config.yaml. Fields missing from the
// file keep their defaults.
func (m *Manager) LoadConfig() (*Config, error) {
	configPath := m.ConfigPath()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := mergo.Merge(&config, *DefaultConfig()); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	return &config, nil
}

// LoadConfigOrDefault returns the on-disk config, or the defaults when no
// config file exists yet.
func (m *Manager) LoadConfigOrDefault() (*Config, error) {
	if _, err := os.Stat(m.ConfigPath()); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return m.LoadConfig()
}

// SaveConfig saves configuration to config.yaml
func (m *Manager) SaveConfig(config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := m.ConfigPath()
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Sessions: SessionsConfig{
			TTLHours: 24,
			IDPrefix: "sess_",
			IDLength: 8,
		},
		Projects: ProjectsConfig{
			BaseDir: "~/projects",
		},
		Limits: LimitsConfig{
			MaxFileSizeBytes: 10 * 1024 * 1024,
			MaxTreeDepth:     10,
			MaxTreeEntries:   1000,
			MaxOutputBytes:   1024 * 1024,
		},
		Bash: BashConfig{
			DefaultTimeoutSeconds: 60,
			MaxTimeoutSeconds:     300,
		},
		Logging: LoggingConfig{
			Level: "warn",
			File:  "logs/vps-agent.log",
		},
	}
}
