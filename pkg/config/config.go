// Package config provides configuration management for the room-compactor
// service.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	apperrors "github.com/room-compactor/room-compactor/pkg/errors"
)

// Config holds all configuration for the application.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Compressor CompressorConfig `mapstructure:"compressor"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// DatabaseConfig holds the backing-store connection configuration.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// CompressorConfig holds the compression-algorithm configuration.
type CompressorConfig struct {
	ChunkSize     int    `mapstructure:"chunk_size"`
	DefaultLevels string `mapstructure:"default_levels"`
}

// SchedulerConfig holds auto-scheduler configuration.
type SchedulerConfig struct {
	NumberOfRooms int `mapstructure:"number_of_rooms"`
	WatchInterval int `mapstructure:"watch_interval"` // seconds; 0 runs once unless --watch is set, which then uses 60
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// MetricsConfig holds the optional Prometheus exposition configuration.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the metrics server
}

// Load reads configuration from the specified file path, falling back to
// standard locations and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/room-compactor")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults")
		} else if os.IsNotExist(err) {
			fmt.Printf("Config file %s not found, using defaults\n", configPath)
		} else {
			return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to read config file", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to unmarshal config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from raw bytes (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to read config", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to unmarshal config", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Registered (empty) so that AutomaticEnv can supply it from DATABASE_URL.
	v.SetDefault("database.url", "")
	v.SetDefault("compressor.chunk_size", 500)
	v.SetDefault("compressor.default_levels", "100,50,25")
	v.SetDefault("scheduler.number_of_rooms", 5)
	v.SetDefault("scheduler.watch_interval", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.addr", "")
}

// Validate validates the configuration, returning a *errors.AppError tagged
// CodeConfigError describing the first violation found.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return apperrors.New(apperrors.CodeConfigError, "db_url is required")
	}
	if c.Compressor.ChunkSize <= 0 {
		return apperrors.New(apperrors.CodeConfigError, "chunk_size must be positive")
	}
	if c.Scheduler.NumberOfRooms <= 0 {
		return apperrors.New(apperrors.CodeConfigError, "number_of_rooms must be positive")
	}
	if _, err := ParseLevels(c.Compressor.DefaultLevels); err != nil {
		return apperrors.Wrap(apperrors.CodeConfigError, "invalid default_levels", err)
	}
	if c.Scheduler.WatchInterval < 0 {
		return apperrors.New(apperrors.CodeConfigError, "watch_interval must not be negative")
	}
	return nil
}

// ParseLevels parses a comma-separated list of positive integers, e.g.
// "100,50,25", into max-length values ordered from most granular upward.
func ParseLevels(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("default_levels must not be empty")
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer: %w", p, err)
		}
		if n <= 0 {
			return nil, fmt.Errorf("level max_length %d must be positive", n)
		}
		out = append(out, n)
	}
	return out, nil
}
