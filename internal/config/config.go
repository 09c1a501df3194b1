// Package config loads server configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mmynk/hogar/internal/identity"
)

// Config is the complete server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	Household HouseholdConfig `yaml:"household"`
	Feed      FeedConfig      `yaml:"feed"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// SessionIdleTimeout closes a user's ledger session after this long without RPCs.
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig configures session tokens.
type AuthConfig struct {
	// JWTSecret signs session tokens. Required.
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenDuration time.Duration `yaml:"token_duration"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// HouseholdConfig seeds the partner for users who have not picked one yet.
type HouseholdConfig struct {
	// DefaultPartner is used when no pair matches.
	DefaultPartner string `yaml:"default_partner"`
	// PartnerPairs maps a member email to their partner's identifier.
	PartnerPairs map[string]string `yaml:"partner_pairs"`
}

// FeedConfig configures change notification between server replicas.
type FeedConfig struct {
	// NATSURL enables NATS notifications when set; otherwise an in-process broker is used.
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// DefaultConfig returns a Config with defaults for local use.
func DefaultConfig() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080", SessionIdleTimeout: 15 * time.Minute},
		Database: DatabaseConfig{Path: "./data/hogar.db"},
		Auth:     AuthConfig{TokenDuration: 24 * time.Hour},
		Log:      LogConfig{Level: "info"},
		Feed:     FeedConfig{Subject: "hogar.households"},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped when path is
// empty) and environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// ApplyEnv overrides values from DB_PATH, LISTEN_ADDR, JWT_SECRET, LOG_LEVEL and NATS_URL.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set("DB_PATH", &c.Database.Path)
	set("LISTEN_ADDR", &c.Server.Addr)
	set("JWT_SECRET", &c.Auth.JWTSecret)
	set("LOG_LEVEL", &c.Log.Level)
	set("NATS_URL", &c.Feed.NATSURL)
}

// Validate checks that the configuration is usable by the server.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (or set JWT_SECRET)")
	}
	if c.Server.SessionIdleTimeout <= 0 {
		return fmt.Errorf("server.session_idle_timeout must be positive")
	}
	if c.Auth.TokenDuration <= 0 {
		return fmt.Errorf("auth.token_duration must be positive")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	return nil
}

// PartnerFor returns the configured partner for email: its pair entry if one exists,
// else the default partner. Emails are compared after key normalization.
func (c *Config) PartnerFor(email string) string {
	key := identity.NormalizeKey(email)
	if key != "" {
		for member, partner := range c.Household.PartnerPairs {
			if identity.NormalizeKey(member) == key {
				return partner
			}
		}
	}
	return c.Household.DefaultPartner
}
