package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARNING", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err, "missing file falls back to defaults")

	assert.Equal(t, "INFO", config.Level)
	assert.True(t, config.ConsoleEnabled)
	assert.Equal(t, "text", config.ConsoleFormat)
	assert.False(t, config.FileEnabled)
	assert.Equal(t, "logs/tilegen.log", config.FilePath)
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tilegen.yaml")
	yamlContent := `generation:
  width: 40
logging:
  level: DEBUG
  console_format: json
  file_enabled: true
  file_path: test.log
  file_max_size_mb: 20
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", config.Level)
	assert.Equal(t, "json", config.ConsoleFormat)
	assert.True(t, config.ConsoleEnabled, "default kept when absent")
	assert.True(t, config.FileEnabled)
	assert.Equal(t, "test.log", config.FilePath)
	assert.Equal(t, 20, config.FileMaxSizeMB)
	assert.Equal(t, 5, config.FileMaxBackups, "default kept when absent")
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging: [unclosed"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestEnvVarOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "ERROR")
	t.Setenv("LOG_CONSOLE_FORMAT", "json")
	t.Setenv("LOG_FILE_ENABLED", "true")
	t.Setenv("LOG_FILE_PATH", "/custom/path.log")

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "ERROR", config.Level)
	assert.Equal(t, "json", config.ConsoleFormat)
	assert.True(t, config.FileEnabled)
	assert.Equal(t, "/custom/path.log", config.FilePath)
}

func TestInitializeConsole(t *testing.T) {
	var buf bytes.Buffer
	consoleOutput = &buf
	defer func() { consoleOutput = os.Stderr }()

	config := DefaultConfig()
	config.ConsoleFormat = "json"
	require.NoError(t, Initialize(config))

	Info("JSON test", "field1", "value1", "field2", 42)
	Debug("This should not appear")

	output := buf.String()
	assert.Contains(t, output, `"msg":"JSON test"`)
	assert.Contains(t, output, `"field2":42`)
	assert.NotContains(t, output, "This should not appear", "DEBUG logged at INFO level")
}

func TestInitializeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tilegen.log")

	config := DefaultConfig()
	config.ConsoleEnabled = false
	config.FileEnabled = true
	config.FilePath = path
	require.NoError(t, Initialize(config))

	Warning("Written to file", "ruleset", "dungeon")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ruleset=dungeon")
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	With("ruleset", "dungeon", "seed", 42).Info("Map generated")

	assert.Contains(t, buf.String(), "ruleset=dungeon")
	assert.Contains(t, buf.String(), "seed=42")
}

func TestFormattedLogging(t *testing.T) {
	var buf bytes.Buffer
	logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	Debugf("Debug: %d + %d = %d", 1, 2, 3)
	Infof("Info: %s", "test")
	Warningf("Warning: %.2f%%", 99.95)
	Errorf("Error: %v", "failed")

	output := buf.String()
	assert.Contains(t, output, "Debug: 1 + 2 = 3")
	assert.Contains(t, output, "Info: test")
	assert.Contains(t, output, "Warning: 99.95%")
	assert.Contains(t, output, "Error: failed")
}

func TestMultiHandler(t *testing.T) {
	var buf1, buf2 bytes.Buffer

	handler1 := slog.NewTextHandler(&buf1, &slog.HandlerOptions{Level: slog.LevelInfo})
	handler2 := slog.NewJSONHandler(&buf2, &slog.HandlerOptions{Level: slog.LevelWarn})
	logger = slog.New(newMultiHandler(handler1, handler2))

	Info("Info only", "field", "value")
	Warning("Both outputs")

	assert.Contains(t, buf1.String(), "Info only")
	assert.Contains(t, buf1.String(), "Both outputs")
	assert.NotContains(t, buf2.String(), "Info only", "record below the second handler's level")
	assert.Contains(t, buf2.String(), "Both outputs")
}

func TestNilLogger(t *testing.T) {
	logger = nil

	assert.NotPanics(t, func() {
		Debug("debug")
		Info("info")
		Warning("warning")
		Error("error")
		With("key", "value").Info("discarded")
	})
}
