// Package util provides common utilities for sawlah.
package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	ServerURL string `mapstructure:"server_url"`
	DataDir   string `mapstructure:"data_dir"`
	LogLevel  string `mapstructure:"log_level"`
	LogFile   string `mapstructure:"log_file"`

	// Polling intervals
	PollInterval         time.Duration `mapstructure:"poll_interval"`
	PipelinePollInterval time.Duration `mapstructure:"pipeline_poll_interval"`
	RegistryPollInterval time.Duration `mapstructure:"registry_poll_interval"`

	// HTTP client
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`

	// Notifications
	NotificationLimit int `mapstructure:"notification_limit"`

	// Report settings
	ReportOutputDir string `mapstructure:"report_output_dir"`

	// Development backend
	DevServerPort int `mapstructure:"devserver_port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".sawlah")

	return &Config{
		ServerURL: "http://localhost:8000",
		DataDir:   dataDir,
		LogLevel:  "info",
		LogFile:   filepath.Join(dataDir, "sawlah.log"),

		PollInterval:         2 * time.Second,
		PipelinePollInterval: 3 * time.Second,
		RegistryPollInterval: 5 * time.Second,

		RequestTimeout:    30 * time.Second,
		RequestsPerSecond: 10,

		NotificationLimit: 50,

		ReportOutputDir: filepath.Join(dataDir, "reports"),
		DevServerPort:   8000,
	}
}

// LoadConfig loads configuration from file, .env and environment.
func LoadConfig(cfgFile string) (*Config, error) {
	cfg := DefaultConfig()

	// A missing .env is the common case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(cfg.DataDir)
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("SAWLAH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server_url", cfg.ServerURL)
	viper.SetDefault("data_dir", cfg.DataDir)
	viper.SetDefault("log_level", cfg.LogLevel)
	viper.SetDefault("log_file", cfg.LogFile)
	viper.SetDefault("poll_interval", cfg.PollInterval)
	viper.SetDefault("pipeline_poll_interval", cfg.PipelinePollInterval)
	viper.SetDefault("registry_poll_interval", cfg.RegistryPollInterval)
	viper.SetDefault("request_timeout", cfg.RequestTimeout)
	viper.SetDefault("requests_per_second", cfg.RequestsPerSecond)
	viper.SetDefault("notification_limit", cfg.NotificationLimit)
	viper.SetDefault("report_output_dir", cfg.ReportOutputDir)
	viper.SetDefault("devserver_port", cfg.DevServerPort)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail later in confusing ways.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url must not be empty")
	}
	if !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		return fmt.Errorf("server_url must start with http:// or https://, got %q", c.ServerURL)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.PipelinePollInterval <= 0 {
		c.PipelinePollInterval = c.PollInterval
	}
	if c.RegistryPollInterval <= 0 {
		c.RegistryPollInterval = c.PollInterval
	}
	return nil
}

// DBPath returns the location of the local state database.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "sawlah.db")
}

// EnsureDir ensures a directory exists.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return !info.IsDir()
}
