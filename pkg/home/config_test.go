package home

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	mgr, err := NewManager(tmpDir)
	require.NoError(t, err)

	// Initialize to create default config
	err = mgr.Initialize()
	require.NoError(t, err)

	config, err := mgr.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 24, config.Sessions.TTLHours)
	assert.Equal(t, "sess_", config.Sessions.IDPrefix)
	assert.Equal(t, 8, config.Sessions.IDLength)
	assert.Equal(t, "~/projects", config.Projects.BaseDir)
	assert.Equal(t, int64(10485760), config.Limits.MaxFileSizeBytes)
	assert.Equal(t, 10, config.Limits.MaxTreeDepth)
	assert.Equal(t, 1000, config.Limits.MaxTreeEntries)
	assert.Equal(t, 1048576, config.Limits.MaxOutputBytes)
	assert.Equal(t, 60, config.Bash.DefaultTimeoutSeconds)
	assert.Equal(t, 300, config.Bash.MaxTimeoutSeconds)
	assert.Equal(t, "warn", config.Logging.Level)
	assert.Equal(t, "logs/vps-agent.log", config.Logging.File)
}

func TestLoadConfigFillsMissingFields(t *testing.T) {
	tmpDir := t.TempDir()
	mgr, err := NewManager(tmpDir)
	require.NoError(t, err)

	partial := "sessions:\n  ttlHours: 2\nbash:\n  maxTimeoutSeconds: 30\n"
	require.NoError(t, os.WriteFile(mgr.ConfigPath(), []byte(partial), 0644))

	config, err := mgr.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 2, config.Sessions.TTLHours)
	assert.Equal(t, 2*time.Hour, config.Sessions.TTL())
	assert.Equal(t, 30, config.Bash.MaxTimeoutSeconds)

	// Untouched fields come from the defaults
	assert.Equal(t, "sess_", config.Sessions.IDPrefix)
	assert.Equal(t, 60, config.Bash.DefaultTimeoutSeconds)
	assert.Equal(t, 1000, config.Limits.MaxTreeEntries)
	assert.Equal(t, "warn", config.Logging.Level)
}

func TestLoadConfigOrDefault(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	config, err := mgr.LoadConfigOrDefault()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestSaveConfig(t *testing.T) {
	tmpDir := t.TempDir()
	mgr, err := NewManager(tmpDir)
	require.NoError(t, err)

	config := &Config{
		Sessions: SessionsConfig{
			TTLHours: 48,
			IDPrefix: "s_",
			IDLength: 12,
		},
		Projects: ProjectsConfig{
			BaseDir: "/srv",
		},
		Limits: LimitsConfig{
			MaxFileSizeBytes: 1024,
			MaxTreeDepth:     4,
			MaxTreeEntries:   50,
			MaxOutputBytes:   2048,
		},
		Bash: BashConfig{
			DefaultTimeoutSeconds: 10,
			MaxTimeoutSeconds:     20,
		},
		Logging: LoggingConfig{
			Level: "debug",
			File:  "custom.log",
		},
	}

	err = mgr.SaveConfig(config)
	require.NoError(t, err)

	_, err = os.Stat(mgr.ConfigPath())
	assert.NoError(t, err)

	loaded, err := mgr.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, config, loaded)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 24*time.Hour, config.Sessions.TTL())
	assert.Equal(t, "sess_", config.Sessions.IDPrefix)
	assert.Equal(t, 8, config.Sessions.IDLength)
	assert.Equal(t, int64(10*1024*1024), config.Limits.MaxFileSizeBytes)
	assert.Equal(t, 60, config.Bash.DefaultTimeoutSeconds)
	assert.Equal(t, 300, config.Bash.MaxTimeoutSeconds)
	assert.Equal(t, "warn", config.Logging.Level)
}

func TestLoadConfigErrorHandling(t *testing.T) {
	tmpDir := t.TempDir()
	mgr, err := NewManager(tmpDir)
	require.NoError(t, err)

	t.Run("returns error when config file doesn't exist", func(t *testing.T) {
		_, err := mgr.LoadConfig()
		assert.Error(t, err)
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		invalidYAML := "invalid: yaml: content: :"
		err := os.WriteFile(mgr.ConfigPath(), []byte(invalidYAML), 0644)
		require.NoError(t, err)

		_, err = mgr.LoadConfig()
		assert.Error(t, err)
	})
}
