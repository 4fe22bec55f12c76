// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "comms.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default config does not validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
environment: development
storage:
  chat_database: /tmp/comms-test/chat.db
  pool_size: 2
server:
  listen_addr: 127.0.0.1:9000
calls:
  answer_timeout: 45s
ice:
  servers:
    - urls: ["stun:stun.example.com:3478"]
    - urls: ["turn:turn.example.com:3478"]
      username: hirewire
      credential: secret
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Storage.ChatDatabase != "/tmp/comms-test/chat.db" {
		t.Errorf("ChatDatabase = %q", cfg.Storage.ChatDatabase)
	}
	if cfg.Storage.PoolSize != 2 {
		t.Errorf("PoolSize = %d, want 2", cfg.Storage.PoolSize)
	}
	// Unset fields keep their defaults.
	if cfg.Storage.CallDatabase == "" {
		t.Error("CallDatabase lost its default")
	}
	if cfg.Calls.AnswerTimeout != "45s" {
		t.Errorf("AnswerTimeout = %q", cfg.Calls.AnswerTimeout)
	}
	if cfg.Calls.RecencyWindow != "1h" {
		t.Errorf("RecencyWindow = %q, want the default", cfg.Calls.RecencyWindow)
	}
	if len(cfg.ICE.Servers) != 2 || cfg.ICE.Servers[1].Username != "hirewire" {
		t.Errorf("ICE.Servers = %+v", cfg.ICE.Servers)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
environment: production
server:
  listen_addr: 127.0.0.1:9000
production:
  server:
    listen_addr: 0.0.0.0:8480
  logging:
    level: warn
development:
  logging:
    level: debug
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Server.ListenAddr != "0.0.0.0:8480" {
		t.Errorf("ListenAddr = %q, want the production override", cfg.Server.ListenAddr)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %q, want %q (the development section must not apply)", cfg.Logging.Level, "warn")
	}
}

func TestVariableExpansion(t *testing.T) {
	t.Setenv("HOME", "/home/hirewire")

	path := writeConfig(t, `
storage:
  chat_database: ${HOME}/comms/chat.db
  call_database: ${COMMS_DATA:-/var/lib/comms}/calls.db
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Storage.ChatDatabase != "/home/hirewire/comms/chat.db" {
		t.Errorf("ChatDatabase = %q", cfg.Storage.ChatDatabase)
	}
	if cfg.Storage.CallDatabase != "/var/lib/comms/calls.db" {
		t.Errorf("CallDatabase = %q, want the default expansion", cfg.Storage.CallDatabase)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Environment = "testing"
	cfg.Calls.AnswerTimeout = "half a minute"
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted a bad config")
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("45s", time.Minute); got != 45*time.Second {
		t.Errorf("Duration(45s) = %v", got)
	}
	if got := Duration("", time.Minute); got != time.Minute {
		t.Errorf("Duration(empty) = %v, want the fallback", got)
	}
	if got := Duration("nonsense", time.Minute); got != time.Minute {
		t.Errorf("Duration(nonsense) = %v, want the fallback", got)
	}
}
