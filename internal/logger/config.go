package logger

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds logging configuration
type Config struct {
	Level          string `yaml:"level"`
	ConsoleEnabled bool   `yaml:"console_enabled"`
	ConsoleFormat  string `yaml:"console_format"`
	FileEnabled    bool   `yaml:"file_enabled"`
	FilePath       string `yaml:"file_path"`
	FileFormat     string `yaml:"file_format"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxBackups int    `yaml:"file_max_backups"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
	FileCompress   bool   `yaml:"file_compress"`
}

// DefaultConfig returns console-only text logging at INFO
func DefaultConfig() Config {
	return Config{
		Level:          "INFO",
		ConsoleEnabled: true,
		ConsoleFormat:  "text",
		FileEnabled:    false,
		FilePath:       "logs/tilegen.log",
		FileFormat:     "text",
		FileMaxSizeMB:  10,
		FileMaxBackups: 5,
		FileMaxAgeDays: 30,
	}
}

// fileConfig mirrors the logging section of tilegen.yaml. Pointer bools
// distinguish "absent" from "false".
type fileConfig struct {
	Logging struct {
		Level          string `yaml:"level"`
		ConsoleEnabled *bool  `yaml:"console_enabled"`
		ConsoleFormat  string `yaml:"console_format"`
		FileEnabled    *bool  `yaml:"file_enabled"`
		FilePath       string `yaml:"file_path"`
		FileFormat     string `yaml:"file_format"`
		FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
		FileMaxBackups int    `yaml:"file_max_backups"`
		FileMaxAgeDays int    `yaml:"file_max_age_days"`
		FileCompress   *bool  `yaml:"file_compress"`
	} `yaml:"logging"`
}

// LoadConfig reads the logging section of a YAML file and applies
// environment variable overrides. A missing file yields the defaults.
func LoadConfig(configPath string) (Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case os.IsNotExist(err):
			// Defaults
		case err != nil:
			return config, fmt.Errorf("failed to read logging config: %w", err)
		default:
			var fc fileConfig
			if err := yaml.Unmarshal(data, &fc); err != nil {
				return config, fmt.Errorf("failed to parse logging config: %w", err)
			}
			config.merge(fc)
		}
	}

	config.ApplyEnv()
	return config, nil
}

func (c *Config) merge(fc fileConfig) {
	l := fc.Logging
	if l.Level != "" {
		c.Level = l.Level
	}
	if l.ConsoleEnabled != nil {
		c.ConsoleEnabled = *l.ConsoleEnabled
	}
	if l.ConsoleFormat != "" {
		c.ConsoleFormat = l.ConsoleFormat
	}
	if l.FileEnabled != nil {
		c.FileEnabled = *l.FileEnabled
	}
	if l.FilePath != "" {
		c.FilePath = l.FilePath
	}
	if l.FileFormat != "" {
		c.FileFormat = l.FileFormat
	}
	if l.FileMaxSizeMB > 0 {
		c.FileMaxSizeMB = l.FileMaxSizeMB
	}
	if l.FileMaxBackups > 0 {
		c.FileMaxBackups = l.FileMaxBackups
	}
	if l.FileMaxAgeDays > 0 {
		c.FileMaxAgeDays = l.FileMaxAgeDays
	}
	if l.FileCompress != nil {
		c.FileCompress = *l.FileCompress
	}
}

// ApplyEnv overrides fields from LOG_* environment variables
func (c *Config) ApplyEnv() {
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Level = logLevel
	}

	if consoleFormat := os.Getenv("LOG_CONSOLE_FORMAT"); consoleFormat != "" {
		c.ConsoleFormat = consoleFormat
	}

	if fileEnabled := os.Getenv("LOG_FILE_ENABLED"); fileEnabled != "" {
		if enabled, err := strconv.ParseBool(fileEnabled); err == nil {
			c.FileEnabled = enabled
		}
	}

	if filePath := os.Getenv("LOG_FILE_PATH"); filePath != "" {
		c.FilePath = filePath
	}
}
