package home

import (
	"fmt"
	"os"
	"path/filepath"
)

// Manager handles the application home directory
type Manager struct {
	path string
}

// Subdirectories within home
const (
	SessionsDir = "sessions"
	LogsDir     = "logs"
)

// Files within home
const (
	ConfigFile = "config.yaml"
)

// NewManager creates a new home directory manager
func NewManager(path string) (*Manager, error) {
	if path == "" {
		path = DefaultHomePath()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid home path: %w", err)
	}

	return &Manager{path: absPath}, nil
}

// DefaultHomePath returns the default home directory path
func DefaultHomePath() string {
	if path := os.Getenv("VPS_AGENT_HOME"); path != "" {
		return path
	}

	// Default to ~/.vps-agent
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vps-agent"
	}
	return filepath.Join(home, ".vps-agent")
}

// Path returns the home directory path
func (m *Manager) Path() string {
	return m.path
}

// Initialize creates the home directory structure
func (m *Manager) Initialize() error {
	dirs := []string{
		"", // Home directory itself
		SessionsDir,
		LogsDir,
	}

	for _, dir := range dirs {
		path := m.JoinPath(dir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", path, err)
		}
	}

	if err := m.initializeConfig(); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	return nil
}

// Exists checks if the home directory exists
func (m *Manager) Exists() bool {
	info, err := os.Stat(m.path)
	return err == nil && info.IsDir()
}

// JoinPath joins path elements relative to home directory
func (m *Manager) JoinPath(elem ...string) string {
	parts := append([]string{m.path}, elem...)
	return filepath.Join(parts...)
}

// ConfigPath returns the path to config.yaml
func (m *Manager) ConfigPath() string {
	return m.JoinPath(ConfigFile)
}

// SessionsPath returns the directory holding session logs
func (m *Manager) SessionsPath() string {
	return m.JoinPath(SessionsDir)
}

// LogsPath returns the path to logs directory
func (m *Manager) LogsPath() string {
	return m.JoinPath(LogsDir)
}

// ResolvePath makes a config-relative path absolute against home.
// Absolute paths and "~" paths are returned expanded but otherwise unchanged.
func (m *Manager) ResolvePath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" || len(path) > 1 && path[:2] == "~/" {
		if userHome, err := os.UserHomeDir(); err == nil {
			return filepath.Join(userHome, path[1:])
		}
	}
	if filepath.IsAbs(path) {
		return path
	}
	return m.JoinPath(path)
}

// initializeConfig creates a default config.yaml if it doesn't exist
func (m *Manager) initializeConfig() error {
	configPath := m.ConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return nil // Config exists, don't overwrite
	}

	defaultConfig := `# vps-agent configuration

# Session log settings
sessions:
  ttlHours: 24           # Sessions idle longer than this are expired
  idPrefix: sess_
  idLength: 8

# Project discovery
projects:
  baseDir: ~/projects    # Default directory scanned by project_list

# Tool limits
limits:
  maxFileSizeBytes: 10485760   # 10 MB, file_read refuses larger files
  maxTreeDepth: 10
  maxTreeEntries: 1000
  maxOutputBytes: 1048576      # 1 MB, bash_run output is truncated past this

# bash_run settings
bash:
  defaultTimeoutSeconds: 60
  maxTimeoutSeconds: 300

# Logging settings (stderr plus optional file)
logging:
  level: warn            # trace, debug, info, warn, error, silent
  file: logs/vps-agent.log
`

	return os.WriteFile(configPath, []byte(defaultConfig), 0644)
}
