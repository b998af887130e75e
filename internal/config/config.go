// Package config loads Mandor settings from an optional YAML file and the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mandor/internal/util"
)

// Config represents the complete server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	StaticDir   string   `yaml:"static_dir"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds token signing settings.
type AuthConfig struct {
	JWTSecret   string        `yaml:"jwt_secret"`
	TokenTTL    time.Duration `yaml:"-"`
	TokenTTLRaw string        `yaml:"token_ttl"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			StaticDir:   "web/dist",
			CORSOrigins: []string{"http://localhost:5173"},
		},
		Database: DatabaseConfig{Path: "data/mandor.db"},
		Auth:     AuthConfig{TokenTTLRaw: "168h"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any, with ${VAR} expansion), then MANDOR_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.Server.Addr = util.EnvOrDefault("MANDOR_ADDR", cfg.Server.Addr)
	cfg.Server.StaticDir = util.EnvOrDefault("MANDOR_STATIC_DIR", cfg.Server.StaticDir)
	cfg.Database.Path = util.EnvOrDefault("MANDOR_DB_PATH", cfg.Database.Path)
	cfg.Auth.JWTSecret = util.EnvOrDefault("MANDOR_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Logging.Level = util.EnvOrDefault("MANDOR_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = util.EnvOrDefault("MANDOR_LOG_FORMAT", cfg.Logging.Format)
	cfg.Server.CORSOrigins = util.EnvList("MANDOR_CORS_ORIGINS", cfg.Server.CORSOrigins)

	return cfg, nil
}

// Finalize parses derived fields and validates the result. Call it after
// command-line overrides have been applied.
func (c *Config) Finalize() error {
	if c.Auth.TokenTTLRaw != "" {
		ttl, err := time.ParseDuration(c.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_ttl %q: %w", c.Auth.TokenTTLRaw, err)
		}
		c.Auth.TokenTTL = ttl
	}
	return c.Validate()
}

// Validate checks that all required fields are present and sane.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("auth.jwt_secret must be at least 16 bytes")
	}
	if c.Auth.TokenTTL < 0 {
		return fmt.Errorf("auth.token_ttl must not be negative")
	}
	for _, origin := range c.Server.CORSOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("server.cors_origins: %q must be * or start with http:// or https://", origin)
		}
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// SlogLevel converts the configured level name.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// NewLogger builds the process logger for this configuration.
func (l LoggingConfig) NewLogger() *slog.Logger {
	level, err := l.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with environment values; unset
// variables expand to the empty string.
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envPattern.FindStringSubmatch(match)[1])
	})
}
