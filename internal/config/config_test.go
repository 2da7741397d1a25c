package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "dungeon", cfg.Generation.Ruleset)
	assert.Equal(t, 50, cfg.Generation.MaxAttempts)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Empty(t, cfg.Server.WebSocket.AllowedOrigins, "same-origin by default")
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileNotExists(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/tilegen.yaml")
	require.NoError(t, err, "a missing file falls back to defaults")
	require.NotNil(t, cfg)

	assert.Equal(t, 40, cfg.Generation.Width)
	assert.Equal(t, 30, cfg.Generation.Height)
}

func TestLoadConfig_ValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "tilegen.yaml")

	content := `
generation:
  width: 64
  seed: 1234
  max_steps: 10000
  timeout_seconds: 5
rulesets:
  caves: ~/rulesets/caves.yaml
database:
  driver: postgres
  postgres:
    host: db.internal
    port: 5433
    database: maps
    conn_max_lifetime: 90s
server:
  address: "127.0.0.1:9000"
  websocket:
    allowed_origins:
      - "https://example.com"
  save_maps: true
  rate_limit:
    max_failures: 3
logging:
  level: DEBUG
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Generation.Width)
	assert.Equal(t, 30, cfg.Generation.Height, "default height survives")
	assert.Equal(t, int64(1234), cfg.Generation.Seed)
	assert.Equal(t, 5*time.Second, cfg.Generation.Timeout())

	home, err := homedir.Dir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "rulesets", "caves.yaml"), cfg.Rulesets["caves"])

	pg := cfg.Database.Postgres
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db.internal", pg.Host)
	assert.Equal(t, 5433, pg.Port)
	assert.Equal(t, 90*time.Second, pg.ConnMaxLifetime)
	assert.Equal(t, "disable", pg.SSLMode, "default sslmode survives")

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address)
	assert.True(t, cfg.Server.SaveMaps)
	assert.Equal(t, 3, cfg.Server.RateLimit.MaxFailures)
	assert.Equal(t, 30, cfg.Server.RateLimit.LockoutSeconds, "default lockout survives")
	assert.Equal(t, int64(4096), cfg.Server.WebSocket.MaxMessageSize)

	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_Malformed(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "tilegen.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("generation: [1, 2"), 0644))

	cfg, err := LoadConfig(configPath)
	assert.Error(t, err)
	require.NotNil(t, cfg, "defaults come back alongside the parse error")
	assert.Equal(t, 40, cfg.Generation.Width)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"zero width", func(c *Config) { c.Generation.Width = 0 }, "size must be positive"},
		{"negative height", func(c *Config) { c.Generation.Height = -1 }, "size must be positive"},
		{"zero attempts", func(c *Config) { c.Generation.MaxAttempts = 0 }, "max_attempts"},
		{"negative steps", func(c *Config) { c.Generation.MaxSteps = -1 }, "max_steps"},
		{"negative timeout", func(c *Config) { c.Generation.TimeoutSeconds = -1 }, "timeout_seconds"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "unknown database driver"},
		{"missing sqlite path", func(c *Config) { c.Database.SQLitePath = "" }, "sqlite_path"},
		{"postgres without host", func(c *Config) {
			c.Database.Driver = "postgres"
			c.Database.Postgres.Host = ""
		}, "host and database"},
		{"zero max cells", func(c *Config) { c.Server.MaxCells = 0 }, "max_cells"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsOriginAllowed_EmptyList_SameOrigin(t *testing.T) {
	cfg := WebSocketConfig{
		AllowedOrigins: []string{},
	}

	assert.True(t, cfg.IsOriginAllowed("", "localhost:4000"), "empty origin is same-origin")
	assert.True(t, cfg.IsOriginAllowed("http://localhost:4000", "localhost:4000"))
	assert.False(t, cfg.IsOriginAllowed("http://evil.com", "localhost:4000"))
}

func TestIsOriginAllowed_Wildcard(t *testing.T) {
	cfg := WebSocketConfig{
		AllowedOrigins: []string{"*"},
	}

	assert.True(t, cfg.IsOriginAllowed("http://anything.com", "localhost:4000"))
}

func TestIsOriginAllowed_ExactMatch(t *testing.T) {
	cfg := WebSocketConfig{
		AllowedOrigins: []string{
			"https://example.com",
			"http://localhost:3000",
		},
	}

	assert.True(t, cfg.IsOriginAllowed("https://example.com", "localhost:4000"))
	assert.False(t, cfg.IsOriginAllowed("http://evil.com", "localhost:4000"))
	assert.False(t, cfg.IsOriginAllowed("https://example.com:8080", "localhost:4000"), "partial match")
}

func TestIsSameOrigin(t *testing.T) {
	tests := []struct {
		origin      string
		requestHost string
		expected    bool
	}{
		{"", "localhost:4000", true},
		{"http://localhost:4000", "localhost:4000", true},
		{"https://localhost:4000", "localhost:4000", true},
		{"http://localhost:4000/", "localhost:4000", true},
		{"http://example.com", "localhost:4000", false},
		{"http://localhost:3000", "localhost:4000", false},
		{"ws://localhost:4000", "localhost:4000", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, isSameOrigin(tt.origin, tt.requestHost),
			"isSameOrigin(%q, %q)", tt.origin, tt.requestHost)
	}
}

func TestLoadConfig_Example(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "tilegen.example.yaml"))
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())

	def := DefaultConfig()
	assert.Equal(t, def.Generation, cfg.Generation)
	assert.Equal(t, def.Server.Connections, cfg.Server.Connections)
	assert.Equal(t, def.Server.RateLimit, cfg.Server.RateLimit)
	assert.Equal(t, def.Database.Postgres, cfg.Database.Postgres)
}
