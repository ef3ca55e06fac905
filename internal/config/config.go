package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/flowpack/internal/storage"
)

const (
	defaultPort             = "8080"
	defaultMaxItems         = 10_000
	defaultCacheSize        = 256
	defaultBatchConcurrency = 4
	defaultRateLimitRPS     = 25.0
	defaultRateLimitBurst   = 50
	defaultLogLevel         = "info"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string        `yaml:"port"`
	MaxWidth             float64       `yaml:"max_width"`
	Spacing              float64       `yaml:"spacing"`
	MaxItems             int           `yaml:"max_items"`
	CacheSize            int           `yaml:"cache_size"`
	BatchConcurrency     int           `yaml:"batch_concurrency"`
	ShutdownGracePeriod  time.Duration `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    time.Duration `yaml:"read_header_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	IdleTimeout          time.Duration `yaml:"idle_timeout"`
	EnableRequestLogging bool          `yaml:"enable_request_logging"`
	LogLevel             string        `yaml:"log_level"`
	RateLimitRPS         float64       `yaml:"-"`
	RateLimitBurst       int           `yaml:"-"`
}

// yamlConfig represents the YAML configuration file structure.
// Pointer fields distinguish "absent" from an explicit zero.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	MaxWidth             *float64      `yaml:"max_width"`
	Spacing              *float64      `yaml:"spacing"`
	MaxItems             *int          `yaml:"max_items"`
	CacheSize            *int          `yaml:"cache_size"`
	BatchConcurrency     *int          `yaml:"batch_concurrency"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	LogLevel             string        `yaml:"log_level"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	MaxWidth       *float64
	Spacing        *float64
	CacheSize      *int
	RateLimitRPS   *float64
	RateLimitBurst *int
	LogLevel       *string
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Apply environment variables first so YAML can override them.
	applyEnvConfig(&cfg)

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	defaults := storage.DefaultSettings()
	return Config{
		Port:                 defaultPort,
		MaxWidth:             defaults.MaxWidth,
		Spacing:              defaults.Spacing,
		MaxItems:             defaultMaxItems,
		CacheSize:            defaultCacheSize,
		BatchConcurrency:     defaultBatchConcurrency,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		LogLevel:             defaultLogLevel,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}
	if yamlCfg.MaxWidth != nil {
		cfg.MaxWidth = *yamlCfg.MaxWidth
	}
	if yamlCfg.Spacing != nil {
		cfg.Spacing = *yamlCfg.Spacing
	}
	if yamlCfg.MaxItems != nil {
		cfg.MaxItems = *yamlCfg.MaxItems
	}
	if yamlCfg.CacheSize != nil {
		cfg.CacheSize = *yamlCfg.CacheSize
	}
	if yamlCfg.BatchConcurrency != nil {
		cfg.BatchConcurrency = *yamlCfg.BatchConcurrency
	}

	durations := []struct {
		name   string
		raw    string
		target *time.Duration
	}{
		{"shutdown_grace_period", yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", yamlCfg.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", yamlCfg.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		value, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.target = value
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}
	return nil
}

// applyEnvConfig applies environment variable configuration.
// Malformed values are ignored and the previous value is kept.
func applyEnvConfig(cfg *Config) {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Port = port
	}

	if raw := strings.TrimSpace(os.Getenv("MAX_WIDTH")); raw != "" {
		if value, err := parseDimension(raw); err == nil {
			cfg.MaxWidth = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SPACING")); raw != "" {
		if value, err := parseDimension(raw); err == nil {
			cfg.Spacing = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CACHE_SIZE")); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.CacheSize = value
		}
	}

	if rps := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}
	if overrides.MaxWidth != nil {
		cfg.MaxWidth = *overrides.MaxWidth
	}
	if overrides.Spacing != nil {
		cfg.Spacing = *overrides.Spacing
	}
	if overrides.CacheSize != nil && *overrides.CacheSize >= 0 {
		cfg.CacheSize = *overrides.CacheSize
	}
	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}
	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.MaxItems <= 0 {
		return fmt.Errorf("max_items must be positive")
	}
	if cfg.CacheSize < 0 {
		return fmt.Errorf("cache_size must be >= 0")
	}
	if cfg.BatchConcurrency <= 0 {
		return fmt.Errorf("batch_concurrency must be positive")
	}
	settings := storage.DefaultSettings()
	settings.MaxWidth = cfg.MaxWidth
	settings.Spacing = cfg.Spacing
	if err := storage.Validate(settings); err != nil {
		return fmt.Errorf("layout defaults: %w", err)
	}
	return nil
}

// parseDimension parses a finite, non-negative layout length.
func parseDimension(raw string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", raw)
	}
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("dimension must be finite and non-negative, got %v", value)
	}
	return value, nil
}
