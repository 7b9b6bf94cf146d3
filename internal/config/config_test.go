// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/afroash/env-monitor/internal/models"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
database:
  path: "/var/lib/env-monitor/readings.db"
  op_timeout: 2s
  retention_days: 14
  cleanup_period: 30m

sampling:
  auto: true
  interval: 5s
  batch_delay: 1s
  base_temperature_f: 72
  base_humidity: 50

limits:
  temp_min: 40
  temp_max: 85
  humid_min: 20
  humid_max: 60

server:
  port: 9090
  host: "0.0.0.0"
  allowed_origins:
    - "http://localhost:3000"

logging:
  level: "debug"
  format: "console"
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Database.Path != "/var/lib/env-monitor/readings.db" {
		t.Errorf("Database.Path = %v", cfg.Database.Path)
	}
	if cfg.Database.OpTimeout != 2*time.Second {
		t.Errorf("Database.OpTimeout = %v, want 2s", cfg.Database.OpTimeout)
	}
	if cfg.Database.RetentionDays != 14 {
		t.Errorf("Database.RetentionDays = %v, want 14", cfg.Database.RetentionDays)
	}
	if !cfg.Sampling.Auto {
		t.Error("Sampling.Auto = false, want true")
	}
	if cfg.Sampling.Interval != 5*time.Second {
		t.Errorf("Sampling.Interval = %v, want 5s", cfg.Sampling.Interval)
	}
	want := models.Limits{TempMin: 40, TempMax: 85, HumidMin: 20, HumidMax: 60}
	if cfg.Limits != want {
		t.Errorf("Limits = %+v, want %+v", cfg.Limits, want)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %v, want 9090", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Logging.Format = %v, want console", cfg.Logging.Format)
	}
	// Defaults still fill the gaps
	if cfg.Sampling.TemperatureStep != 2 {
		t.Errorf("Sampling.TemperatureStep = %v, want default 2", cfg.Sampling.TemperatureStep)
	}
	if cfg.Server.MaxBatch != 100 {
		t.Errorf("Server.MaxBatch = %v, want default 100", cfg.Server.MaxBatch)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(configPath, []byte("server: [port: 1"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	if _, err := LoadConfig(configPath); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestLoadConfig_InvertedLimits(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "inverted.yaml")
	content := `
limits:
  temp_min: 90
  temp_max: 40
  humid_min: 30
  humid_max: 70
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadConfig(configPath)
	if err == nil {
		t.Fatal("Expected error for inverted limits")
	}
	if !strings.Contains(err.Error(), "temp_min") {
		t.Errorf("error %q should name the limit", err)
	}
}

func TestLoadConfig_PartialLimits(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(configPath, []byte("limits:\n  temp_max: 90\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	want := models.DefaultLimits()
	want.TempMax = 90
	if cfg.Limits != want {
		t.Errorf("Limits = %+v, want %+v", cfg.Limits, want)
	}
}

func TestLoadConfig_NoLimitsBlock(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nolimits.yaml")
	if err := os.WriteFile(configPath, []byte("server:\n  port: 9000\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Limits != models.DefaultLimits() {
		t.Errorf("Limits = %+v, want defaults", cfg.Limits)
	}
}

func TestAppConfig_ApplyDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Database.Path != "./data/env-monitor.db" {
		t.Errorf("Default Database.Path = %v", cfg.Database.Path)
	}
	if cfg.Database.OpTimeout != 5*time.Second {
		t.Errorf("Default OpTimeout = %v, want 5s", cfg.Database.OpTimeout)
	}
	if cfg.Sampling.Interval != time.Second {
		t.Errorf("Default Sampling.Interval = %v, want 1s", cfg.Sampling.Interval)
	}
	if cfg.Limits != models.DefaultLimits() {
		t.Errorf("Default Limits = %+v", cfg.Limits)
	}
	if cfg.Server.Port != 8081 {
		t.Errorf("Default Server.Port = %v, want 8081", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Default Logging.Level = %v, want info", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestAppConfig_OverrideFromEnv(t *testing.T) {
	t.Setenv("MONITOR_DB_PATH", "/tmp/env.db")
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("SERVER_HOST", "0.0.0.0")
	t.Setenv("SAMPLING_INTERVAL", "250ms")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Default()
	if err := cfg.OverrideFromEnv(); err != nil {
		t.Fatalf("OverrideFromEnv failed: %v", err)
	}

	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("Database.Path = %v", cfg.Database.Path)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %v, want 9999", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %v", cfg.Server.Host)
	}
	if cfg.Sampling.Interval != 250*time.Millisecond {
		t.Errorf("Sampling.Interval = %v, want 250ms", cfg.Sampling.Interval)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %v, want debug", cfg.Logging.Level)
	}
}

func TestAppConfig_OverrideFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad port", "SERVER_PORT", "eighty"},
		{"bad interval", "SAMPLING_INTERVAL", "often"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg := Default()
			if err := cfg.OverrideFromEnv(); err == nil {
				t.Errorf("Expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestAppConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *AppConfig)
		wantError bool
	}{
		{"valid config", func(c *AppConfig) {}, false},
		{"missing db path", func(c *AppConfig) { c.Database.Path = "" }, true},
		{"negative retention", func(c *AppConfig) { c.Database.RetentionDays = -1 }, true},
		{"interval too short", func(c *AppConfig) { c.Sampling.Interval = 10 * time.Millisecond }, true},
		{"negative batch delay", func(c *AppConfig) { c.Sampling.BatchDelay = -time.Second }, true},
		{"port too high", func(c *AppConfig) { c.Server.Port = 70000 }, true},
		{"humidity limit over 100", func(c *AppConfig) { c.Limits.HumidMax = 120 }, true},
		{"inverted humidity", func(c *AppConfig) { c.Limits.HumidMin, c.Limits.HumidMax = 60, 40 }, true},
		{"bad log level", func(c *AppConfig) { c.Logging.Level = "loud" }, true},
		{"bad log format", func(c *AppConfig) { c.Logging.Format = "xml" }, true},
		{"zero max batch", func(c *AppConfig) { c.Server.MaxBatch = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestAppConfig_SessionConfig(t *testing.T) {
	cfg := Default()
	cfg.Sampling.BatchDelay = 2 * time.Second
	cfg.Limits.TempMax = 95

	sc := cfg.SessionConfig()
	if sc.DBPath != cfg.Database.Path {
		t.Errorf("DBPath = %v", sc.DBPath)
	}
	if sc.SampleInterval != 2*time.Second {
		t.Errorf("SampleInterval = %v, want 2s", sc.SampleInterval)
	}
	if sc.Limits.TempMax != 95 {
		t.Errorf("Limits.TempMax = %v, want 95", sc.Limits.TempMax)
	}
	if sc.Source.BaseTemperatureF != 68 {
		t.Errorf("Source.BaseTemperatureF = %v, want 68", sc.Source.BaseTemperatureF)
	}
}

func TestNewLogger(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "monitor.log")

	logger, closeFn, err := NewLogger(LoggingConfig{Level: "info", Format: "json", FilePath: logPath})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	logger.Info().Msg("hello from test")
	logger.Debug().Msg("filtered out")
	if err := closeFn(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Errorf("log file missing info line: %s", data)
	}
	if strings.Contains(string(data), "filtered out") {
		t.Errorf("log file contains debug line at info level: %s", data)
	}

	if _, _, err := NewLogger(LoggingConfig{Level: "shout"}); err == nil {
		t.Error("Expected error for invalid level")
	}
}
