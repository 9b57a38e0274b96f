// Package config loads glucosim settings from YAML files and environment
// variables. Order: defaults -> config file -> environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"glucosim/internal/dailysim"
)

// Environment variables recognized by Load.
const (
	EnvConfigPath = "GLUCOSIM_CONFIG"
	EnvLogLevel   = "GLUCOSIM_LOG_LEVEL"
	EnvLogFormat  = "GLUCOSIM_LOG_FORMAT"
	EnvStore      = "GLUCOSIM_STORE"
	EnvDBPath     = "GLUCOSIM_DB_PATH"
	EnvAddr       = "GLUCOSIM_ADDR"
	EnvSeed       = "GLUCOSIM_SEED"
)

type Config struct {
	Engine  EngineConfig  `json:"engine" yaml:"engine"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Rollout RolloutConfig `json:"rollout" yaml:"rollout"`
}

// EngineConfig mirrors dailysim.Config in file form.
type EngineConfig struct {
	DayLength     int     `json:"day_length" yaml:"day_length"`
	StepTarget    float64 `json:"step_target" yaml:"step_target"`
	MaxDailySteps float64 `json:"max_daily_steps" yaml:"max_daily_steps"`
	GlucoseTarget float64 `json:"glucose_target" yaml:"glucose_target"`
	GlucoseLow    float64 `json:"glucose_low" yaml:"glucose_low"`
	GlucoseHigh   float64 `json:"glucose_high" yaml:"glucose_high"`
	HeartRateLow  float64 `json:"heart_rate_low" yaml:"heart_rate_low"`
	HeartRateHigh float64 `json:"heart_rate_high" yaml:"heart_rate_high"`
	RestingHR     float64 `json:"resting_hr" yaml:"resting_hr"`

	// Meals maps hour to meal size in mg/dL. Omitted keeps the default
	// schedule; an explicit empty map disables meals.
	Meals map[int]float64 `json:"meals,omitempty" yaml:"meals,omitempty"`

	Tolerance float64 `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
	Seed      *int64  `json:"seed,omitempty" yaml:"seed,omitempty"`
}

type LoggingConfig struct {
	// Level is "info" (default), "debug", "trace", "warn" or "error".
	Level string `json:"level" yaml:"level"`

	// Format is "text" (default), "json" or "tint".
	Format string `json:"format" yaml:"format"`
}

type StorageConfig struct {
	// Backend is "memory" or "sqlite".
	Backend      string `json:"backend" yaml:"backend"`
	Path         string `json:"path,omitempty" yaml:"path,omitempty"`
	ArtifactsDir string `json:"artifacts_dir" yaml:"artifacts_dir"`
}

type ServerConfig struct {
	Addr        string        `json:"addr" yaml:"addr"`
	MaxSessions int           `json:"max_sessions" yaml:"max_sessions"`
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

type RolloutConfig struct {
	Policy   string `json:"policy" yaml:"policy"`
	Episodes int    `json:"episodes" yaml:"episodes"`
	Seed     int64  `json:"seed" yaml:"seed"`
	Workers  int    `json:"workers" yaml:"workers"`
}

// Default returns a Config with the engine defaults and an in-memory store.
func Default() *Config {
	engine := dailysim.DefaultConfig()
	return &Config{
		Engine: EngineConfig{
			DayLength:     engine.DayLength,
			StepTarget:    engine.StepTarget,
			MaxDailySteps: engine.MaxDailySteps,
			GlucoseTarget: engine.GlucoseTarget,
			GlucoseLow:    engine.GlucoseBounds.Low,
			GlucoseHigh:   engine.GlucoseBounds.High,
			HeartRateLow:  engine.HeartRateBounds.Low,
			HeartRateHigh: engine.HeartRateBounds.High,
			RestingHR:     engine.RestingHR,
			Tolerance:     engine.Tolerance,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Backend:      "memory",
			Path:         "glucosim.db",
			ArtifactsDir: "glucosim-runs",
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:7311",
			MaxSessions: 64,
			IdleTimeout: 30 * time.Minute,
		},
		Rollout: RolloutConfig{
			Policy:   "random",
			Episodes: 10,
			Seed:     1,
			Workers:  4,
		},
	}
}

// Load reads path when given, otherwise the file named by GLUCOSIM_CONFIG
// if set, then applies environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	cfg := Default()
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		cfg = fileConfig
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.Storage.Path = expandEnvVars(cfg.Storage.Path)
	cfg.Storage.ArtifactsDir = expandEnvVars(cfg.Storage.ArtifactsDir)
	return cfg, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// EngineConfig converts the engine section for dailysim.NewEngine.
func (c *Config) EngineConfig() dailysim.Config {
	e := c.Engine
	cfg := dailysim.Config{
		DayLength:       e.DayLength,
		StepTarget:      e.StepTarget,
		MaxDailySteps:   e.MaxDailySteps,
		GlucoseTarget:   e.GlucoseTarget,
		GlucoseBounds:   dailysim.Bounds{Low: e.GlucoseLow, High: e.GlucoseHigh},
		HeartRateBounds: dailysim.Bounds{Low: e.HeartRateLow, High: e.HeartRateHigh},
		RestingHR:       e.RestingHR,
		Tolerance:       e.Tolerance,
	}
	if e.Meals != nil {
		cfg.MealSchedule = dailysim.MealSchedule(e.Meals).Clone()
	}
	if e.Seed != nil {
		seed := *e.Seed
		cfg.Seed = &seed
	}
	return cfg
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := c.EngineConfig().Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true, "warn": true, "error": true}
	if c.Logging.Level != "" && !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, warn, error)", c.Logging.Level)
	}
	validFormats := map[string]bool{"text": true, "json": true, "tint": true}
	if c.Logging.Format != "" && !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (valid: text, json, tint)", c.Logging.Format)
	}

	switch strings.ToLower(c.Storage.Backend) {
	case "", "memory":
	case "sqlite":
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("sqlite backend requires storage.path")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (valid: memory, sqlite)", c.Storage.Backend)
	}

	if c.Server.MaxSessions < 0 {
		return fmt.Errorf("max_sessions must be non-negative, got %d", c.Server.MaxSessions)
	}
	if c.Server.IdleTimeout < 0 {
		return fmt.Errorf("idle_timeout must be non-negative, got %v", c.Server.IdleTimeout)
	}
	if c.Rollout.Episodes <= 0 {
		return fmt.Errorf("rollout episodes must be > 0, got %d", c.Rollout.Episodes)
	}
	if c.Rollout.Workers < 0 {
		return fmt.Errorf("rollout workers must be non-negative, got %d", c.Rollout.Workers)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv(EnvStore); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv(EnvSeed); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvSeed, err)
		}
		cfg.Engine.Seed = &seed
		cfg.Rollout.Seed = seed
	}
	return nil
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
