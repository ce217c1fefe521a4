package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/normanking/personad/internal/logging"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host '0.0.0.0', got '%s'", cfg.Server.Host)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected default port 8000, got %d", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 3 {
		t.Errorf("expected 3 default CORS origins, got %d", len(cfg.Server.CORSOrigins))
	}
	if cfg.Server.ShutdownTimeout() != 5*time.Second {
		t.Errorf("expected 5s shutdown timeout, got %v", cfg.Server.ShutdownTimeout())
	}
	if cfg.Storage.OutputRoot != "output" {
		t.Errorf("expected default output root 'output', got '%s'", cfg.Storage.OutputRoot)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got '%s'", cfg.Logging.Level)
	}
	if !cfg.Logging.Console {
		t.Error("expected console logging enabled by default")
	}
}

func TestAddr(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 9000}
	if got := cfg.Addr(); got != "127.0.0.1:9000" {
		t.Errorf("expected '127.0.0.1:9000', got '%s'", got)
	}
}

func TestLoadFromPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, ".personad", "config.yaml")

	// Load config (should create default)
	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("expected default port 8000, got %d", cfg.Server.Port)
	}

	// Load again to test reading existing file
	cfg2, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("failed to load existing config: %v", err)
	}

	if cfg2.Server.Port != cfg.Server.Port {
		t.Error("config values changed on reload")
	}
}

func TestSaveToPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, ".personad", "config.yaml")

	cfg := Default()
	cfg.Server.Port = 9090
	cfg.Storage.OutputRoot = filepath.Join(tempDir, "packs")
	cfg.Logging.Level = "debug"

	if err := cfg.SaveToPath(configPath); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	loaded, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}

	if loaded.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", loaded.Server.Port)
	}
	if loaded.Storage.OutputRoot != filepath.Join(tempDir, "packs") {
		t.Errorf("unexpected output root '%s'", loaded.Storage.OutputRoot)
	}
	if loaded.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got '%s'", loaded.Logging.Level)
	}
}

func TestLoadFillsMissingKeys(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	// A hand-trimmed file keeping only the port.
	partial := "server:\n  port: 9999\n"
	if err := os.WriteFile(configPath, []byte(partial), 0o644); err != nil {
		t.Fatalf("failed to write partial config: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("failed to load partial config: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host == "" {
		t.Error("expected host filled from defaults")
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		t.Error("expected CORS origins filled from defaults")
	}
	if cfg.Storage.OutputRoot != "output" {
		t.Errorf("expected default output root, got '%s'", cfg.Storage.OutputRoot)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level, got '%s'", cfg.Logging.Level)
	}
}

func TestEnsureDirectories(t *testing.T) {
	tempDir := t.TempDir()

	cfg := &Config{
		Server: Default().Server,
		Storage: StorageConfig{
			OutputRoot: filepath.Join(tempDir, "output"),
			DataDir:    filepath.Join(tempDir, ".personad"),
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   filepath.Join(tempDir, ".personad", "logs"),
		},
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("failed to ensure directories: %v", err)
	}

	dirs := []string{
		filepath.Join(tempDir, "output"),
		filepath.Join(tempDir, ".personad"),
		filepath.Join(tempDir, ".personad", "logs"),
	}

	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			t.Errorf("directory '%s' was not created", dir)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func(mutate func(*Config)) *Config {
		cfg := Default()
		mutate(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{
			name:    "valid default config",
			cfg:     Default(),
			wantErr: false,
		},
		{
			name:    "port zero",
			cfg:     valid(func(c *Config) { c.Server.Port = 0 }),
			wantErr: true,
		},
		{
			name:    "port out of range",
			cfg:     valid(func(c *Config) { c.Server.Port = 70000 }),
			wantErr: true,
		},
		{
			name:    "negative shutdown timeout",
			cfg:     valid(func(c *Config) { c.Server.ShutdownTimeoutSec = -1 }),
			wantErr: true,
		},
		{
			name:    "invalid log level",
			cfg:     valid(func(c *Config) { c.Logging.Level = "verbose" }),
			wantErr: true,
		},
		{
			name:    "empty output root",
			cfg:     valid(func(c *Config) { c.Storage.OutputRoot = "" }),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	homeDir, _ := os.UserHomeDir()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "path with tilde",
			input:    "~/.personad/config.yaml",
			expected: filepath.Join(homeDir, ".personad", "config.yaml"),
		},
		{
			name:     "absolute path",
			input:    "/var/lib/personad",
			expected: "/var/lib/personad",
		},
		{
			name:     "relative path",
			input:    "./output",
			expected: "./output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandPath(tt.input)
			if result != tt.expected {
				t.Errorf("expandPath(%s) = %s, expected %s", tt.input, result, tt.expected)
			}
		})
	}
}

func TestToLoggerConfig(t *testing.T) {
	lc := LoggingConfig{Level: "warn", Dir: "/tmp/logs", Console: false}

	got := lc.ToLoggerConfig()
	if got.Level != logging.LevelWarn {
		t.Errorf("expected level warn, got %s", got.Level)
	}
	if got.LogDir != "/tmp/logs" {
		t.Errorf("expected log dir '/tmp/logs', got '%s'", got.LogDir)
	}
	if got.Console {
		t.Error("expected console disabled")
	}

	// Unknown levels fall back to info.
	if got := (LoggingConfig{Level: "chatty"}).ToLoggerConfig(); got.Level != logging.LevelInfo {
		t.Errorf("expected fallback level info, got %s", got.Level)
	}
}

func TestEnvironmentVariableOverride(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	cfg := Default()
	if err := cfg.SaveToPath(configPath); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	t.Setenv("PERSONAD_SERVER_PORT", "8123")

	loaded, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if loaded.Server.Port != 8123 {
		t.Errorf("expected env override port 8123, got %d", loaded.Server.Port)
	}
}
