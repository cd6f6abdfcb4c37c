package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable overrides
const (
	EnvDBPath       = "PATTERNLOOP_DB_PATH"
	EnvLogLevel     = "PATTERNLOOP_LOG_LEVEL"
	EnvWorkers      = "PATTERNLOOP_WORKERS"
	EnvSamplingRate = "PATTERNLOOP_PROFILER_SAMPLING_RATE"
	EnvConfigPath   = "PATTERNLOOP_CONFIG"
)

// DefaultDBFile is the database file name under the data directory
const DefaultDBFile = "patternloop.db"

// Config represents the patternloop configuration.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Profiler ProfilerConfig `yaml:"profiler"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// StorageConfig holds key-value store settings.
type StorageConfig struct {
	Path          string        `yaml:"path"`           // SQLite file path, ":memory:" for an ephemeral store
	FlushInterval time.Duration `yaml:"flush_interval"` // How often stale statistics are saved, 0 disables
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// PipelineConfig holds pattern execution settings.
type PipelineConfig struct {
	Workers          int `yaml:"workers"`            // Concurrent file workers
	LearningWorkers  int `yaml:"learning_workers"`   // Concurrent learning refinements
	RegexCacheSize   int `yaml:"regex_cache_size"`   // Compiled regex fallback cache entries
	MaxErrorMessages int `yaml:"max_error_messages"` // Per-run errors kept for reporting
}

// ProfilerConfig holds compilation profiler settings.
type ProfilerConfig struct {
	Enabled      bool    `yaml:"enabled"`
	SamplingRate float64 `yaml:"sampling_rate"` // Fraction of compilations recorded, 0..1
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Register strategy and record collectors
	Address string `yaml:"address"` // Listen address for /metrics, empty to skip serving
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{Path: DefaultDBPath(), FlushInterval: 30 * time.Second},
		Log:     LogConfig{Level: "info"},
		Pipeline: PipelineConfig{
			Workers:          runtime.NumCPU(),
			LearningWorkers:  runtime.NumCPU(),
			RegexCacheSize:   256,
			MaxErrorMessages: 100,
		},
		Profiler: ProfilerConfig{Enabled: true, SamplingRate: 1.0},
		Metrics:  MetricsConfig{Enabled: true},
	}
}

// DefaultDBPath returns ~/.patternloop/patternloop.db, or the file name in
// the working directory when the home directory is unknown.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDBFile
	}
	return filepath.Join(home, ".patternloop", DefaultDBFile)
}

// LoadFromFile loads configuration from path. A missing file yields the
// defaults. Environment overrides are applied after the file.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load reads the file named by PATTERNLOOP_CONFIG, if set
func Load() (*Config, error) {
	return LoadFromFile(os.Getenv(EnvConfigPath))
}

// ApplyEnvOverrides applies environment variable overrides to the config.
// Unparseable values are ignored.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" && isValidLogLevel(v) {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pipeline.Workers = n
		}
	}
	if v := os.Getenv(EnvSamplingRate); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Profiler.SamplingRate = f
		}
	}
}

// Validate rejects out-of-range values.
func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return errors.New("storage.path must be set")
	}
	if c.Storage.FlushInterval < 0 {
		return errors.New("storage.flush_interval must be >= 0")
	}
	if !isValidLogLevel(c.Log.Level) {
		return fmt.Errorf("log.level must be debug, info, warn, or error (got: %s)", c.Log.Level)
	}
	if c.Pipeline.Workers < 1 {
		return errors.New("pipeline.workers must be >= 1")
	}
	if c.Pipeline.LearningWorkers < 1 {
		return errors.New("pipeline.learning_workers must be >= 1")
	}
	if c.Pipeline.RegexCacheSize < 1 {
		return errors.New("pipeline.regex_cache_size must be >= 1")
	}
	if c.Pipeline.MaxErrorMessages < 0 {
		return errors.New("pipeline.max_error_messages must be >= 0")
	}
	if c.Profiler.SamplingRate < 0 || c.Profiler.SamplingRate > 1 {
		return fmt.Errorf("profiler.sampling_rate must be between 0 and 1 (got: %g)", c.Profiler.SamplingRate)
	}
	return nil
}

// SlogLevel maps the configured level to a slog.Level
func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}
