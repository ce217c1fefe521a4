// Package config provides configuration management for personad.
// Configuration is loaded from ~/.personad/config.yaml and can be
// overridden by PERSONAD_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/normanking/personad/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig contains configuration for the HTTP API.
type ServerConfig struct {
	// Host is the listen address
	Host string `mapstructure:"host" yaml:"host"`
	// Port is the listen port
	Port int `mapstructure:"port" yaml:"port"`
	// CORSOrigins lists the origins allowed to call the API
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	// ShutdownTimeoutSec bounds graceful shutdown (default: 5)
	ShutdownTimeoutSec int `mapstructure:"shutdown_timeout_sec" yaml:"shutdown_timeout_sec"`
}

// ShutdownTimeout returns the graceful shutdown bound as a duration.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig contains configuration for persona storage.
type StorageConfig struct {
	// OutputRoot is the root directory for delivery packs
	OutputRoot string `mapstructure:"output_root" yaml:"output_root"`
	// DataDir is the directory holding the SQLite database
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
}

// LoggingConfig contains configuration for application logging.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is the directory for log files
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Console mirrors log output to the terminal
	Console bool `mapstructure:"console" yaml:"console"`
}

// ToLoggerConfig converts LoggingConfig for use by the logging package.
func (c LoggingConfig) ToLoggerConfig() *logging.Config {
	return &logging.Config{
		LogDir:  c.Dir,
		Level:   logging.ParseLevel(c.Level),
		Console: c.Console,
	}
}

// Default returns a Config with sensible default values.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	appDir := filepath.Join(homeDir, ".personad")

	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
			CORSOrigins: []string{
				"https://internal.manageai.io",
				"http://localhost:8080",
				"http://localhost:5173",
			},
			ShutdownTimeoutSec: 5,
		},
		Storage: StorageConfig{
			OutputRoot: "output",
			DataDir:    appDir,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Dir:     filepath.Join(appDir, "logs"),
			Console: true,
		},
	}
}

// DefaultConfigPath returns the default config file location
// (~/.personad/config.yaml).
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".personad", "config.yaml")
}

// Load reads configuration from the default location and merges with
// environment variables. If no config file exists, it creates one with
// default values.
func Load() (*Config, error) {
	return LoadFromPath(DefaultConfigPath())
}

// LoadFromPath reads configuration from a specific file path and merges
// with environment variables. If the file doesn't exist, it creates one
// with default values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example: PERSONAD_SERVER_PORT, PERSONAD_STORAGE_OUTPUT_ROOT
	v.SetEnvPrefix("PERSONAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Storage.OutputRoot = expandPath(cfg.Storage.OutputRoot)
	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir)
	cfg.Logging.Dir = expandPath(cfg.Logging.Dir)

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in missing values with sensible defaults. This
// handles hand-edited config files that drop keys entirely.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Server.Host == "" {
		c.Server.Host = defaults.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaults.Server.Port
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if c.Server.ShutdownTimeoutSec == 0 {
		c.Server.ShutdownTimeoutSec = defaults.Server.ShutdownTimeoutSec
	}
	if c.Storage.OutputRoot == "" {
		c.Storage.OutputRoot = defaults.Storage.OutputRoot
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = defaults.Storage.DataDir
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = defaults.Logging.Dir
	}
}

// Save writes the current configuration to the default config file
// location.
func (c *Config) Save() error {
	return c.SaveToPath(DefaultConfigPath())
}

// SaveToPath writes the current configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return writeConfigFile(path, c)
}

// EnsureDirectories creates all directories the application writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Storage.OutputRoot,
		c.Storage.DataDir,
		c.Logging.Dir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Validate checks the configuration for common errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ShutdownTimeoutSec < 0 {
		return fmt.Errorf("server.shutdown_timeout_sec cannot be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}

	if c.Storage.OutputRoot == "" {
		return fmt.Errorf("storage.output_root cannot be empty")
	}

	return nil
}

// writeConfigFile writes a Config struct to a YAML file. Uses
// gopkg.in/yaml.v3 directly to ensure proper tag-based serialization.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// expandPath expands ~ to the user's home directory in a path string.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
