// Package config loads the tilegen YAML configuration file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/tilegen/internal/database"
)

// Config holds every section of tilegen.yaml except logging, which the
// logger package reads from the same file.
type Config struct {
	Generation GenerationConfig `yaml:"generation"`

	// Rulesets maps a ruleset name to a YAML file. Built-in rulesets are
	// always available and may be overridden here.
	Rulesets map[string]string `yaml:"rulesets"`

	Database database.Config `yaml:"database"`
	Server   ServerConfig    `yaml:"server"`
}

// GenerationConfig holds defaults for a single map generation.
type GenerationConfig struct {
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	Seed    int64  `yaml:"seed"`
	Ruleset string `yaml:"ruleset"`

	// MaxAttempts is how many fresh grids are tried before giving up.
	MaxAttempts int `yaml:"max_attempts"`

	// MaxSteps bounds collapses per attempt. 0 means unlimited.
	MaxSteps int `yaml:"max_steps"`

	// TimeoutSeconds bounds a whole generation. 0 means no timeout.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the generation timeout, or 0 for none.
func (g GenerationConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// ServerConfig holds settings for the generation service.
type ServerConfig struct {
	Address     string            `yaml:"address"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	Connections ConnectionsConfig `yaml:"connections"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`

	// MaxCells caps width*height for a single request.
	MaxCells int `yaml:"max_cells"`

	// SaveMaps stores every served map in the database.
	SaveMaps bool `yaml:"save_maps"`
}

// ConnectionsConfig holds connection limit settings.
type ConnectionsConfig struct {
	// MaxPerIP is the maximum concurrent connections allowed from a single IP address.
	// 0 means unlimited (not recommended).
	MaxPerIP int `yaml:"max_per_ip"`

	// MaxTotal is the maximum total concurrent connections to the server.
	// 0 means unlimited.
	MaxTotal int `yaml:"max_total"`
}

// RateLimitConfig controls lockouts for clients whose requests keep failing.
type RateLimitConfig struct {
	// MaxFailures is how many rejected requests an IP may send before a lockout.
	MaxFailures int `yaml:"max_failures"`

	// LockoutSeconds is the first lockout; each further lockout doubles it.
	LockoutSeconds int `yaml:"lockout_seconds"`

	// MaxLockoutSeconds caps the doubling.
	MaxLockoutSeconds int `yaml:"max_lockout_seconds"`
}

// WebSocketConfig holds WebSocket-specific settings.
type WebSocketConfig struct {
	// AllowedOrigins is a list of origins allowed to connect via WebSocket.
	// Empty list enforces same-origin policy.
	// Use "*" to allow all origins (not recommended for production).
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxMessageSize is the maximum incoming WebSocket message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`
}

// DefaultConfig returns a Config with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		Generation: GenerationConfig{
			Width:          40,
			Height:         30,
			Seed:           0,
			Ruleset:        "dungeon",
			MaxAttempts:    50,
			MaxSteps:       0,
			TimeoutSeconds: 30,
		},
		Rulesets: map[string]string{},
		Database: database.DefaultConfig("data/tilegen.db"),
		Server: ServerConfig{
			Address: ":4000",
			WebSocket: WebSocketConfig{
				AllowedOrigins: []string{}, // Same-origin only by default
				MaxMessageSize: 4096,
			},
			Connections: ConnectionsConfig{
				MaxPerIP: 3,
				MaxTotal: 100,
			},
			RateLimit: RateLimitConfig{
				MaxFailures:       10,
				LockoutSeconds:    30,
				MaxLockoutSeconds: 300,
			},
			MaxCells: 200 * 200,
			SaveMaps: false,
		},
	}
}

// LoadConfig loads configuration from a YAML file on top of the defaults.
// A missing file yields the defaults; a file that cannot be parsed yields
// the defaults and the error.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	expanded, err := homedir.Expand(path)
	if err != nil {
		return config, fmt.Errorf("failed to expand config path %q: %w", path, err)
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return config, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.expandPaths(); err != nil {
		return DefaultConfig(), err
	}

	return config, nil
}

// expandPaths resolves a leading ~ in every configured path
func (c *Config) expandPaths() error {
	var err error
	if c.Database.SQLitePath, err = homedir.Expand(c.Database.SQLitePath); err != nil {
		return fmt.Errorf("database.sqlite_path: %w", err)
	}
	for name, path := range c.Rulesets {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return fmt.Errorf("rulesets.%s: %w", name, err)
		}
		c.Rulesets[name] = expanded
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	g := c.Generation
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("generation size must be positive, got %dx%d", g.Width, g.Height)
	}
	if g.MaxAttempts <= 0 {
		return fmt.Errorf("generation.max_attempts must be positive, got %d", g.MaxAttempts)
	}
	if g.MaxSteps < 0 {
		return fmt.Errorf("generation.max_steps must not be negative, got %d", g.MaxSteps)
	}
	if g.TimeoutSeconds < 0 {
		return fmt.Errorf("generation.timeout_seconds must not be negative, got %d", g.TimeoutSeconds)
	}

	switch database.DialectType(c.Database.Driver) {
	case database.DialectSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required for sqlite")
		}
	case database.DialectPostgres:
		if c.Database.Postgres.Host == "" || c.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres needs host and database")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Server.MaxCells <= 0 {
		return fmt.Errorf("server.max_cells must be positive, got %d", c.Server.MaxCells)
	}

	return nil
}

// IsOriginAllowed checks if the given origin is allowed based on the config.
// Returns true if:
// - AllowedOrigins contains "*" (allow all)
// - AllowedOrigins contains the exact origin
// - AllowedOrigins is empty and origin matches the request host (same-origin)
func (c *WebSocketConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}

// isSameOrigin checks if the origin matches the request host.
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // Non-browser clients send no Origin header
	}

	// "http://localhost:3000" -> "localhost:3000"
	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return originHost == requestHost
}
