// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the comms
// service.
//
// Configuration is loaded from a single file specified by either the
// COMMS_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search: the config file is the single,
// auditable source of truth.
//
// The file supports environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. The only expansion performed is
// ${VAR} and ${VAR:-default} in path fields for portability.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the master configuration for the comms service.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Storage configures the SQLite databases.
	Storage StorageConfig `yaml:"storage"`

	// Server configures the HTTP API listener.
	Server ServerConfig `yaml:"server"`

	// ICE configures STUN/TURN servers for call negotiation.
	ICE ICEConfig `yaml:"ice"`

	// Chat configures the message synchronization engine.
	Chat ChatConfig `yaml:"chat"`

	// Calls configures call lifecycle timing.
	Calls CallsConfig `yaml:"calls"`

	// Presence configures typing indicator timing.
	Presence PresenceConfig `yaml:"presence"`

	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`

	// Per-environment overrides, applied after the base config loads.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the fields that can differ per environment.
type Overrides struct {
	Storage *StorageConfig `yaml:"storage,omitempty"`
	Server  *ServerConfig  `yaml:"server,omitempty"`
	Logging *LoggingConfig `yaml:"logging,omitempty"`
}

// StorageConfig configures the SQLite databases.
type StorageConfig struct {
	// ChatDatabase is the conversations/messages database path.
	ChatDatabase string `yaml:"chat_database"`

	// CallDatabase is the call records database path.
	CallDatabase string `yaml:"call_database"`

	// PoolSize is the per-database connection pool size.
	// Default: 4
	PoolSize int `yaml:"pool_size"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	// ListenAddr is the host:port the API binds.
	// Default: 127.0.0.1:8480
	ListenAddr string `yaml:"listen_addr"`

	// ShutdownTimeout bounds graceful shutdown, e.g. "10s".
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// ICEConfig configures candidate gathering for calls.
type ICEConfig struct {
	// Servers is the STUN/TURN server list, tried in order. Empty
	// means host candidates only, sufficient for development.
	Servers []ICEServer `yaml:"servers"`
}

// ICEServer is one STUN or TURN entry.
type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

// ChatConfig configures the message engine.
type ChatConfig struct {
	// DedupWindow is the call-narration dedup window, e.g. "2m".
	DedupWindow string `yaml:"dedup_window"`
}

// CallsConfig configures call lifecycle timing.
type CallsConfig struct {
	// AnswerTimeout is how long a call rings before it is missed,
	// e.g. "30s".
	AnswerTimeout string `yaml:"answer_timeout"`

	// RecencyWindow bounds how old an unterminated call record may be
	// and still block new calls, e.g. "1h".
	RecencyWindow string `yaml:"recency_window"`
}

// PresenceConfig configures typing indicator timing.
type PresenceConfig struct {
	// TypingDebounce is the minimum gap between published typing
	// events, e.g. "500ms".
	TypingDebounce string `yaml:"typing_debounce"`

	// TypingExpiry is how long a typing indicator survives without a
	// fresh event, e.g. "3s".
	TypingExpiry string `yaml:"typing_expiry"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `yaml:"level"`
}

// Default returns the default configuration, used as a base before
// loading the config file.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".local", "share", "comms")

	return &Config{
		Environment: Development,
		Storage: StorageConfig{
			ChatDatabase: filepath.Join(defaultRoot, "chat.db"),
			CallDatabase: filepath.Join(defaultRoot, "calls.db"),
			PoolSize:     4,
		},
		Server: ServerConfig{
			ListenAddr:      "127.0.0.1:8480",
			ShutdownTimeout: "10s",
		},
		Chat: ChatConfig{
			DedupWindow: "2m",
		},
		Calls: CallsConfig{
			AnswerTimeout: "30s",
			RecencyWindow: "1h",
		},
		Presence: PresenceConfig{
			TypingDebounce: "500ms",
			TypingExpiry:   "3s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the COMMS_CONFIG environment variable.
func Load() (*Config, error) {
	configPath := os.Getenv("COMMS_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("COMMS_CONFIG environment variable not set; " +
			"set it to the path of your comms.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Storage != nil {
		if overrides.Storage.ChatDatabase != "" {
			c.Storage.ChatDatabase = overrides.Storage.ChatDatabase
		}
		if overrides.Storage.CallDatabase != "" {
			c.Storage.CallDatabase = overrides.Storage.CallDatabase
		}
		if overrides.Storage.PoolSize > 0 {
			c.Storage.PoolSize = overrides.Storage.PoolSize
		}
	}
	if overrides.Server != nil {
		if overrides.Server.ListenAddr != "" {
			c.Server.ListenAddr = overrides.Server.ListenAddr
		}
		if overrides.Server.ShutdownTimeout != "" {
			c.Server.ShutdownTimeout = overrides.Server.ShutdownTimeout
		}
	}
	if overrides.Logging != nil && overrides.Logging.Level != "" {
		c.Logging.Level = overrides.Logging.Level
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Storage.ChatDatabase = expandVars(c.Storage.ChatDatabase, vars)
	c.Storage.CallDatabase = expandVars(c.Storage.CallDatabase, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Storage.ChatDatabase == "" {
		errs = append(errs, fmt.Errorf("storage.chat_database is required"))
	}
	if c.Storage.CallDatabase == "" {
		errs = append(errs, fmt.Errorf("storage.call_database is required"))
	}
	if c.Server.ListenAddr == "" {
		errs = append(errs, fmt.Errorf("server.listen_addr is required"))
	}

	durations := map[string]string{
		"server.shutdown_timeout":  c.Server.ShutdownTimeout,
		"chat.dedup_window":        c.Chat.DedupWindow,
		"calls.answer_timeout":     c.Calls.AnswerTimeout,
		"calls.recency_window":     c.Calls.RecencyWindow,
		"presence.typing_debounce": c.Presence.TypingDebounce,
		"presence.typing_expiry":   c.Presence.TypingExpiry,
	}
	for field, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of debug, info, warn, error"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Duration parses a duration field that Validate has already checked.
// An empty or unparseable value yields the fallback.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// EnsurePaths creates the database directories if they don't exist.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Storage.ChatDatabase, c.Storage.CallDatabase} {
		dir := filepath.Dir(path)
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
