// Package config loads harness configuration for loomtest.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for all harness environment variables.
const EnvPrefix = "LOOM_TEST_"

// DatabaseConfig holds connection settings for the test database.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
}

// ToolConfig describes the loom binary under test.
type ToolConfig struct {
	// Bin is the path or name of the loom executable. Empty means the
	// functional suites skip themselves.
	Bin     string        `yaml:"bin"`
	Timeout time.Duration `yaml:"timeout"`
	// Env holds extra KEY=VALUE pairs passed to every invocation.
	Env []string `yaml:"env"`
}

// HarnessConfig holds settings for the harness itself.
type HarnessConfig struct {
	LogsDir     string `yaml:"logs_dir"`
	HistoryPath string `yaml:"history_path"`
	// KeepSchemas disables schema teardown so failures can be inspected.
	KeepSchemas bool `yaml:"keep_schemas"`
}

// Config is the root harness configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Tool     ToolConfig     `yaml:"tool"`
	Harness  HarnessConfig  `yaml:"harness"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "root",
			Password: "password",
			DBName:   "loom",
			SSLMode:  "disable",
			MaxConns: 10,
		},
		Tool: ToolConfig{
			Bin:     "",
			Timeout: 5 * time.Minute,
		},
		Harness: HarnessConfig{
			LogsDir:     "logs",
			HistoryPath: ".loomtest/history.db",
		},
	}
}

// Load builds configuration in layers, later layers overriding earlier:
//  1. Built-in defaults
//  2. Config file (path, or loomtest.yml in the working dir) - optional
//  3. Environment variables (LOOM_TEST_*)
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = "loomtest.yml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	ApplyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv returns defaults overridden by environment variables only.
// This is the entry point used by the test suites, which must not depend
// on files in the working directory.
func FromEnv() *Config {
	cfg := Default()
	ApplyEnv(cfg)
	return cfg
}

// ApplyEnv overrides cfg fields from LOOM_TEST_* environment variables.
func ApplyEnv(cfg *Config) {
	setString(&cfg.Database.Host, "HOST")
	setInt(&cfg.Database.Port, "PORT")
	setString(&cfg.Database.User, "USER")
	setString(&cfg.Database.Password, "PASS")
	setString(&cfg.Database.DBName, "DBNAME")
	setString(&cfg.Database.SSLMode, "SSLMODE")
	setString(&cfg.Tool.Bin, "BIN")
	setString(&cfg.Harness.LogsDir, "LOGS_DIR")
	setString(&cfg.Harness.HistoryPath, "HISTORY_PATH")
	setBool(&cfg.Harness.KeepSchemas, "KEEP_SCHEMAS")

	if v := os.Getenv(EnvPrefix + "TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Tool.Timeout = d
		}
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("database port %d out of range", c.Database.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("database max_conns must be positive, got %d", c.Database.MaxConns)
	}
	if c.Tool.Timeout <= 0 {
		return fmt.Errorf("tool timeout must be positive, got %s", c.Tool.Timeout)
	}
	return nil
}

// DSN returns the postgres connection string for the configured database.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func setString(dst *string, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
