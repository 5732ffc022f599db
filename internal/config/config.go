package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the kfilter platform.
type Config struct {
	Storage  Storage       `yaml:"storage"`
	Server   Server        `yaml:"server"`
	Provider Provider      `yaml:"provider"`
	Refresh  RefreshConfig `yaml:"refresh"`
	Logging  Logging       `yaml:"logging"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Provider holds parameters for the upstream K-line API.
type Provider struct {
	BaseURL         string `yaml:"base_url"`
	TimeoutSec      int    `yaml:"timeout_sec"`
	RateLimitPerSec int    `yaml:"rate_limit_per_sec"`
	Adjust          string `yaml:"adjust"`
}

// RefreshConfig controls the batch refresh behaviour.
type RefreshConfig struct {
	StartDate  string `yaml:"start_date"`
	MaxWorkers int    `yaml:"max_workers"`
	PaceMs     int    `yaml:"pace_ms"`
	Schedule   string `yaml:"schedule"` // cron expression, empty disables
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/kfilter.db",
		},
		Server: Server{
			Host: "0.0.0.0",
			Port: 8090,
		},
		Refresh: RefreshConfig{
			StartDate:  "2020-01-01",
			MaxWorkers: 3,
			PaceMs:     500,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML configuration file at the given path, parses it over
// the defaults, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("KLINE_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}

	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}

	if v := os.Getenv("REFRESH_SCHEDULE"); v != "" {
		cfg.Refresh.Schedule = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
