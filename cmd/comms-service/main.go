// Copyright 2026 The Hirewire Authors
// SPDX-License-Identifier: Apache-2.0

// comms-service hosts the realtime messaging and call backend: the
// HTTP API for conversations, messages, and call records, plus the
// in-process event broker that fans signaling and chat events out to
// connected clients.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/hirewire/comms/api"
	"github.com/hirewire/comms/call"
	"github.com/hirewire/comms/chat"
	"github.com/hirewire/comms/lib/clock"
	"github.com/hirewire/comms/lib/config"
	"github.com/hirewire/comms/lib/version"
	"github.com/hirewire/comms/presence"
	"github.com/hirewire/comms/rtc"
	"github.com/hirewire/comms/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var showVersion bool

	flagSet := pflag.NewFlagSet("comms-service", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to comms.yaml (overrides COMMS_CONFIG)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	if showVersion {
		version.Print("comms-service")
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.Logging.Level),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	realClock := clock.Real()
	broker := transport.NewMemoryBroker()

	chatStore, err := chat.OpenStore(chat.StoreConfig{
		Path:     cfg.Storage.ChatDatabase,
		PoolSize: cfg.Storage.PoolSize,
		Clock:    realClock,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer chatStore.Close()

	chatEngine, err := chat.NewEngine(chat.Config{
		Store:       chatStore,
		Transport:   broker.Client("service"),
		DedupWindow: config.Duration(cfg.Chat.DedupWindow, chat.DefaultDedupWindow),
		Clock:       realClock,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	callStore, err := call.OpenStore(call.StoreConfig{
		Path:     cfg.Storage.CallDatabase,
		PoolSize: cfg.Storage.PoolSize,
		Clock:    realClock,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer callStore.Close()

	calls, err := call.NewManager(call.Config{
		Store:         callStore,
		RecencyWindow: config.Duration(cfg.Calls.RecencyWindow, call.DefaultRecencyWindow),
		Clock:         realClock,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	server := api.NewHTTPServer(api.HTTPServerConfig{
		Address: cfg.Server.ListenAddr,
		Handler: api.NewHandler(api.HandlerConfig{
			Chat:     chatEngine,
			Calls:    calls,
			Settings: clientSettings(cfg),
			Logger:   logger,
		}),
		ShutdownTimeout: config.Duration(cfg.Server.ShutdownTimeout, 10*time.Second),
		Logger:          logger,
	})

	logger.Info("comms service starting",
		"environment", cfg.Environment,
		"listen", cfg.Server.ListenAddr,
		"version", version.Short(),
	)
	return server.Serve(ctx)
}

// clientSettings maps the service config onto what /v1/settings hands
// to browser clients.
func clientSettings(cfg *config.Config) api.ClientSettings {
	settings := api.ClientSettings{
		AnswerTimeoutSeconds: int(config.Duration(cfg.Calls.AnswerTimeout, rtc.DefaultAnswerTimeout) / time.Second),
		TypingDebounceMillis: int(config.Duration(cfg.Presence.TypingDebounce, presence.DefaultTypingDebounce) / time.Millisecond),
		TypingExpiryMillis:   int(config.Duration(cfg.Presence.TypingExpiry, presence.DefaultTypingExpiry) / time.Millisecond),
	}
	for _, server := range cfg.ICE.Servers {
		settings.ICEServers = append(settings.ICEServers, api.ICEServer{
			URLs:       server.URLs,
			Username:   server.Username,
			Credential: server.Credential,
		})
	}
	return settings
}

// loadConfig resolves the config source: the --config flag wins, then
// COMMS_CONFIG, then built-in defaults for local development.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv("COMMS_CONFIG") != "" {
		return config.Load()
	}
	return config.Default(), nil
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
