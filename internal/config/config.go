// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (CHATRELAY_* prefix, plus a .env file)
//  2. Config file (~/.chatrelay/config.yaml or ./config.yaml)
//  3. Default values
//
// Sensitive values (API keys, database passwords) are never logged.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation.
var (
	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidStoreBackend indicates an unknown store backend name.
	ErrInvalidStoreBackend = errors.New("invalid store backend")

	// ErrMissingDatabaseURL indicates the postgres backend was selected
	// without a database URL.
	ErrMissingDatabaseURL = errors.New("missing database URL")

	// ErrInvalidDatabaseURL indicates the database URL does not parse.
	ErrInvalidDatabaseURL = errors.New("invalid database URL")

	// ErrInvalidAddr indicates the listen address is malformed.
	ErrInvalidAddr = errors.New("invalid listen address")
)

// Store backend identifiers used in Config.StoreBackend.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// DefaultSystemPrompt is sent with every completion unless overridden.
const DefaultSystemPrompt = "You are a helpful, friendly assistant. Be concise and clear."

// Config stores application configuration.
type Config struct {
	// HTTP listen address, host:port.
	Addr string `mapstructure:"addr"`

	// Model configuration. ModelName is provider-qualified for Genkit
	// (e.g. "googleai/gemini-2.0-flash").
	ModelName    string `mapstructure:"model_name"`
	SystemPrompt string `mapstructure:"system_prompt"`

	// Store backend: "memory" (default) or "postgres".
	StoreBackend string `mapstructure:"store_backend"`

	// DatabaseURL is the postgres:// connection URL, required when
	// StoreBackend is "postgres". SENSITIVE: never logged.
	DatabaseURL string `mapstructure:"database_url"`

	// CORS origins allowed for the chat widget. Empty means allow all,
	// matching the demo deployment the widget ships with.
	CORSOrigins []string `mapstructure:"cors_origins"`

	// Rate limiting per client IP.
	RateLimit float64 `mapstructure:"rate_limit"` // tokens per second
	RateBurst int     `mapstructure:"rate_burst"`

	// TrustProxy trusts X-Real-IP/X-Forwarded-For headers.
	// Default false; set true behind a reverse proxy.
	TrustProxy bool `mapstructure:"trust_proxy"`

	// Logging.
	LogLevel string `mapstructure:"log_level"` // debug, info, warn, error
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
//
// A .env file in the working directory is loaded into the environment
// first, so GEMINI_API_KEY and CHATRELAY_* overrides can live beside the
// binary during development.
func Load() (*Config, error) {
	// Missing .env is the normal production case.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Debug("skipping .env", "error", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".chatrelay"))
	}
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("CHATRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL is the conventional deployment variable; it wins over
	// the file and the prefixed form.
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", "0.0.0.0:8001")
	v.SetDefault("model_name", "googleai/gemini-2.0-flash")
	v.SetDefault("system_prompt", DefaultSystemPrompt)
	v.SetDefault("store_backend", StoreMemory)
	v.SetDefault("cors_origins", []string{})
	v.SetDefault("rate_limit", 10.0)
	v.SetDefault("rate_burst", 30)
	v.SetDefault("trust_proxy", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// Validate checks the configuration, failing fast on startup rather than
// at first request.
func (c *Config) Validate() error {
	if c.ModelName == "" || !strings.Contains(c.ModelName, "/") {
		return fmt.Errorf("%w: %q (expected provider-qualified name like googleai/gemini-2.0-flash)", ErrInvalidModelName, c.ModelName)
	}

	if !strings.Contains(c.Addr, ":") {
		return fmt.Errorf("%w: %q", ErrInvalidAddr, c.Addr)
	}

	switch c.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: store_backend=postgres requires DATABASE_URL", ErrMissingDatabaseURL)
		}
		u, err := url.Parse(c.DatabaseURL)
		if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			return fmt.Errorf("%w: expected postgres:// URL", ErrInvalidDatabaseURL)
		}
	default:
		return fmt.Errorf("%w: %q (expected %q or %q)", ErrInvalidStoreBackend, c.StoreBackend, StoreMemory, StorePostgres)
	}

	return nil
}

// Level converts LogLevel to a slog.Level, defaulting to info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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
