package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFileAndEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SAWLAH_LOG_LEVEL", "debug")

	path := filepath.Join(home, "sawlah.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"server_url: https://panel.lab:8443\npoll_interval: 500ms\nnotification_limit: 20\n"), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://panel.lab:8443", cfg.ServerURL)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 20, cfg.NotificationLimit)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3*time.Second, cfg.PipelinePollInterval)
	assert.Equal(t, filepath.Join(home, ".sawlah"), cfg.DataDir)
	assert.Equal(t, filepath.Join(home, ".sawlah", "sawlah.db"), cfg.DBPath())
	assert.DirExists(t, cfg.DataDir)
}

func TestLoadConfigRejectsBadFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_url: [unclosed"), 0600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"empty url", func(c *Config) { c.ServerURL = "" }, false},
		{"no scheme", func(c *Config) { c.ServerURL = "localhost:8000" }, false},
		{"ws scheme", func(c *Config) { c.ServerURL = "ws://localhost:8000" }, false},
		{"zero poll", func(c *Config) { c.PollInterval = 0 }, false},
		{"https", func(c *Config) { c.ServerURL = "https://panel.lab" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateFillsPollIntervals(t *testing.T) {
	c := DefaultConfig()
	c.PollInterval = time.Second
	c.PipelinePollInterval = 0
	c.RegistryPollInterval = -1

	require.NoError(t, c.Validate())
	assert.Equal(t, time.Second, c.PipelinePollInterval)
	assert.Equal(t, time.Second, c.RegistryPollInterval)
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0600))

	assert.True(t, FileExists(file))
	assert.False(t, FileExists(dir))
	assert.False(t, FileExists(filepath.Join(dir, "missing")))
}
