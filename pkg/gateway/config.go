// Package gateway assembles the calendar gateway: configuration,
// component wiring, and the HTTP surface.
package gateway

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/txn2/mcp-calendar-gateway/pkg/cache"
	"github.com/txn2/mcp-calendar-gateway/pkg/session"
	"github.com/txn2/mcp-calendar-gateway/pkg/transport"
)

// Config holds the complete gateway configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Cache    CacheConfig    `yaml:"cache"`
	Backend  BackendConfig  `yaml:"backend"`
}

// ServerConfig configures the HTTP server and transport.
type ServerConfig struct {
	Name              string        `yaml:"name"`
	Version           string        `yaml:"version"`
	Transport         string        `yaml:"transport"` // "http", "stdio"
	Address           string        `yaml:"address"`
	KeepAliveInterval time.Duration `yaml:"keep_alive_interval"`
}

// AuthConfig configures bearer auth for the internal store endpoints.
type AuthConfig struct {
	APIKeyHash string `yaml:"api_key_hash"`
	JWTSecret  string `yaml:"jwt_secret"`
}

// DatabaseConfig configures the persistence substrate.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "memory", "sqlite", "postgres"
	DSN    string `yaml:"dsn"`
}

// SessionConfig configures the durable session store.
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// CacheConfig configures the durable result cache.
type CacheConfig struct {
	DefaultTTL time.Duration            `yaml:"default_ttl"`
	Categories map[string]time.Duration `yaml:"categories"`
}

// BackendConfig configures the upstream calendar client.
type BackendConfig struct {
	Kind string `yaml:"kind"` // "noop"
}

// LoadConfig reads, env-expands, parses, and defaults a config file.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Server.Name == "" {
		cfg.Server.Name = "mcp-calendar-gateway"
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = "1.0.0"
	}
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = "http"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.KeepAliveInterval == 0 {
		cfg.Server.KeepAliveInterval = transport.DefaultKeepAliveInterval
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "memory"
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = session.DefaultTTL
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = 5 * time.Minute
	}
	if cfg.Cache.DefaultTTL == 0 {
		cfg.Cache.DefaultTTL = cache.DefaultTTL
	}
	if cfg.Cache.Categories == nil {
		cfg.Cache.Categories = map[string]time.Duration{
			cache.CategoryPreferences: cache.PreferencesTTL,
		}
	}
	if cfg.Backend.Kind == "" {
		cfg.Backend.Kind = "noop"
	}
}

// ttlPolicy builds the cache TTL policy from config.
func (c *Config) ttlPolicy() cache.TTLPolicy {
	return cache.TTLPolicy{
		Default:    c.Cache.DefaultTTL,
		Categories: c.Cache.Categories,
	}
}
