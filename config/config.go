// Package config provides unified configuration loading for hemascan:
// defaults, then a YAML file, then HEMASCAN_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meditech/hemascan/anemia"
	"github.com/meditech/hemascan/providers"
)

// Config is the full service configuration.
type Config struct {
	Server       ServerConfig                `yaml:"server"`
	Log          LogConfig                   `yaml:"log"`
	Database     DatabaseConfig              `yaml:"database"`
	Orchestrator anemia.OrchestratorConfig   `yaml:"orchestrator"`
	Gemini       providers.GeminiConfig      `yaml:"gemini"`
	Groq         providers.GroqConfig        `yaml:"groq"`
	HuggingFace  providers.HuggingFaceConfig `yaml:"huggingface"`
	// ProviderOrder is the cascade priority. Valid names: gemini, groq,
	// huggingface.
	ProviderOrder []string `yaml:"provider_order"`
}

// DefaultProviderOrder is the cascade priority when none is configured.
var DefaultProviderOrder = []string{"gemini", "groq", "huggingface"}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port"`
	MetricsPort     int           `yaml:"metrics_port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// Per-client request limiting.
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level       string `yaml:"level"`       // debug, info, warn, error
	Development bool   `yaml:"development"` // console encoder with colors
}

// DatabaseConfig configures the scan store.
type DatabaseConfig struct {
	// Path is the sqlite database file; ":memory:" for ephemeral runs.
	Path string `yaml:"path"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			MetricsPort:     9090,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    180 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimitRPS:    5,
			RateLimitBurst:  10,
		},
		Log:      LogConfig{Level: "info"},
		Database: DatabaseConfig{Path: "hemascan.db"},
		Orchestrator: anemia.OrchestratorConfig{
			MaxImageDim: anemia.DefaultMaxImageDim,
		},
		ProviderOrder: append([]string(nil), DefaultProviderOrder...),
	}
}

// Loader loads configuration with the precedence default -> YAML file ->
// environment.
type Loader struct {
	configPath string
}

// NewLoader creates a configuration loader.
func NewLoader() *Loader { return &Loader{} }

// WithConfigPath sets the YAML file to read. Without it only defaults and
// environment apply.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// Load resolves the effective configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides individual fields from HEMASCAN_* variables.
// Credentials are expected to arrive this way in production; the YAML
// file stays free of secrets.
func applyEnv(cfg *Config) {
	setString(&cfg.Gemini.APIKey, "HEMASCAN_GEMINI_API_KEY")
	setString(&cfg.Gemini.Model, "HEMASCAN_GEMINI_MODEL")
	setString(&cfg.Gemini.BaseURL, "HEMASCAN_GEMINI_BASE_URL")
	setString(&cfg.Groq.APIKey, "HEMASCAN_GROQ_API_KEY")
	setString(&cfg.Groq.Model, "HEMASCAN_GROQ_MODEL")
	setString(&cfg.Groq.BaseURL, "HEMASCAN_GROQ_BASE_URL")
	setString(&cfg.HuggingFace.APIKey, "HEMASCAN_HUGGINGFACE_API_KEY")
	setString(&cfg.HuggingFace.Model, "HEMASCAN_HUGGINGFACE_MODEL")
	setString(&cfg.HuggingFace.BaseURL, "HEMASCAN_HUGGINGFACE_BASE_URL")
	setString(&cfg.Database.Path, "HEMASCAN_DATABASE_PATH")
	setString(&cfg.Log.Level, "HEMASCAN_LOG_LEVEL")
	setInt(&cfg.Server.HTTPPort, "HEMASCAN_HTTP_PORT")
	setInt(&cfg.Server.MetricsPort, "HEMASCAN_METRICS_PORT")
	setInt(&cfg.Orchestrator.MaxImageDim, "HEMASCAN_MAX_IMAGE_DIM")
	if v, ok := os.LookupEnv("HEMASCAN_PROVIDER_ORDER"); ok && v != "" {
		cfg.ProviderOrder = splitList(v)
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics_port: %d", c.Server.MetricsPort)
	}
	if c.Server.MetricsPort != 0 && c.Server.MetricsPort == c.Server.HTTPPort {
		return fmt.Errorf("metrics_port must differ from http_port")
	}
	if c.Orchestrator.MaxImageDim < 0 {
		return fmt.Errorf("invalid max_image_dim: %d", c.Orchestrator.MaxImageDim)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Log.Level)
	}
	seen := make(map[string]bool, len(c.ProviderOrder))
	for _, name := range c.ProviderOrder {
		switch name {
		case "gemini", "groq", "huggingface":
		default:
			return fmt.Errorf("unknown provider in provider_order: %q", name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate provider in provider_order: %q", name)
		}
		seen[name] = true
	}
	return nil
}
