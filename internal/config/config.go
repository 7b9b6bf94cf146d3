package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/afroash/env-monitor/internal/models"
	"github.com/afroash/env-monitor/internal/monitor"
	"github.com/afroash/env-monitor/internal/sensor"
)

// AppConfig holds all configuration for the monitor process
type AppConfig struct {
	Database DatabaseConfig `yaml:"database"`
	Sampling SamplingConfig `yaml:"sampling"`
	Limits   models.Limits  `yaml:"limits"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig contains persistence settings
type DatabaseConfig struct {
	Path          string        `yaml:"path"`
	OpTimeout     time.Duration `yaml:"op_timeout"`
	RetentionDays int           `yaml:"retention_days"` // 0 keeps everything
	CleanupPeriod time.Duration `yaml:"cleanup_period"`
}

// SamplingConfig contains simulated sensor and cadence settings
type SamplingConfig struct {
	Auto             bool          `yaml:"auto"`           // sample on Interval in the background
	Interval         time.Duration `yaml:"interval"`       // periodic sampling cadence
	BatchDelay       time.Duration `yaml:"batch_delay"`    // pause between samples of one batch
	BaseTemperatureF float64       `yaml:"base_temperature_f"`
	BaseHumidity     float64       `yaml:"base_humidity"`
	TemperatureStep  float64       `yaml:"temperature_step"`
	HumidityStep     float64       `yaml:"humidity_step"`
}

// ServerConfig contains HTTP display server settings
type ServerConfig struct {
	Port           int           `yaml:"port"`
	Host           string        `yaml:"host"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	MaxBatch       int           `yaml:"max_batch"` // largest n accepted by POST /api/sample
	RecentSize     int           `yaml:"recent_size"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level    string `yaml:"level"`     // "debug", "info", "warn", "error"
	Format   string `yaml:"format"`    // "json" or "console"
	FilePath string `yaml:"file_path"` // empty = stdout only
}

// LoadConfig loads configuration from a YAML file, applies defaults and
// environment overrides, then validates the result.
func LoadConfig(path string) (*AppConfig, error) {
	yamlData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Limits left out of the file keep their built-in values
	config := AppConfig{Limits: models.DefaultLimits()}
	if err := yaml.Unmarshal(yamlData, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	if err := config.OverrideFromEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// Default returns a configuration with every default applied
func Default() *AppConfig {
	config := AppConfig{Limits: models.DefaultLimits()}
	config.ApplyDefaults()
	return &config
}

// ApplyDefaults sets default values for any unset fields
func (c *AppConfig) ApplyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "./data/env-monitor.db"
	}
	if c.Database.OpTimeout == 0 {
		c.Database.OpTimeout = 5 * time.Second
	}
	if c.Database.CleanupPeriod == 0 {
		c.Database.CleanupPeriod = 1 * time.Hour
	}

	if c.Sampling.Interval == 0 {
		c.Sampling.Interval = 1 * time.Second
	}
	if c.Sampling.BaseTemperatureF == 0 && c.Sampling.BaseHumidity == 0 {
		src := sensor.DefaultPseudoSensorConfig()
		c.Sampling.BaseTemperatureF = src.BaseTemperatureF
		c.Sampling.BaseHumidity = src.BaseHumidity
	}
	if c.Sampling.TemperatureStep == 0 {
		c.Sampling.TemperatureStep = sensor.DefaultPseudoSensorConfig().TemperatureStep
	}
	if c.Sampling.HumidityStep == 0 {
		c.Sampling.HumidityStep = sensor.DefaultPseudoSensorConfig().HumidityStep
	}

	if c.Server.Port == 0 {
		c.Server.Port = 8081
	}
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 60 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.MaxBatch == 0 {
		c.Server.MaxBatch = 100
	}
	if c.Server.RecentSize == 0 {
		c.Server.RecentSize = 100
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// OverrideFromEnv overrides config values from environment variables.
// Only non-empty variables are applied.
func (c *AppConfig) OverrideFromEnv() error {
	if v := os.Getenv("MONITOR_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SAMPLING_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SAMPLING_INTERVAL %q: %w", v, err)
		}
		c.Sampling.Interval = d
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *AppConfig) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Database.OpTimeout < 0 {
		return fmt.Errorf("database op timeout must not be negative")
	}
	if c.Database.RetentionDays < 0 {
		return fmt.Errorf("retention days must not be negative")
	}
	if c.Sampling.Interval < 100*time.Millisecond {
		return fmt.Errorf("sampling interval must be at least 100ms")
	}
	if c.Sampling.BatchDelay < 0 {
		return fmt.Errorf("batch delay must not be negative")
	}
	if c.Sampling.TemperatureStep < 0 || c.Sampling.HumidityStep < 0 {
		return fmt.Errorf("sensor step sizes must not be negative")
	}
	if err := monitor.ValidateLimits(c.Limits); err != nil {
		return err
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.Server.MaxBatch < 1 {
		return fmt.Errorf("max batch must be at least 1")
	}
	if c.Server.RecentSize < 1 {
		return fmt.Errorf("recent size must be at least 1")
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("log format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// SessionConfig derives the monitoring session settings
func (c *AppConfig) SessionConfig() monitor.Config {
	return monitor.Config{
		DBPath:         c.Database.Path,
		OpTimeout:      c.Database.OpTimeout,
		Limits:         c.Limits,
		SampleInterval: c.Sampling.BatchDelay,
		Source: sensor.PseudoSensorConfig{
			BaseTemperatureF: c.Sampling.BaseTemperatureF,
			BaseHumidity:     c.Sampling.BaseHumidity,
			TemperatureStep:  c.Sampling.TemperatureStep,
			HumidityStep:     c.Sampling.HumidityStep,
		},
	}
}

// String returns a readable representation for startup logs
func (c *AppConfig) String() string {
	return fmt.Sprintf("AppConfig{Database: %+v, Sampling: %+v, Limits: %+v, Server: %+v, Logging: %+v}",
		c.Database,
		c.Sampling,
		c.Limits,
		c.Server,
		c.Logging,
	)
}
