// Package main provides the interactive weather agent CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	configpkg "github.com/minhyannv/weather-agent-go/pkg/config"
	loggerpkg "github.com/minhyannv/weather-agent-go/pkg/logger"
)

// main is the program entry point.
func main() {
	config, err := loadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if config.Verbose {
		level = slog.LevelDebug
	}
	appLogger := loggerpkg.New(os.Stderr, loggerpkg.Options{Level: level})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newLoop(config, appLogger, os.Stdout)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	err = runREPL(ctx, app, replOptions{
		Verbose: config.Verbose,
		Logger:  appLogger,
		Banner:  true,
	}, os.Stdin, os.Stdout)
	if ctx.Err() != nil {
		loggerpkg.Info(appLogger, "shutting down", map[string]any{"session": app.State().ID()})
		stop()
		os.Exit(130)
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads .env, then the environment, and rejects missing
// credentials before any query is served.
func loadConfig() (configpkg.Config, error) {
	_ = godotenv.Load()

	cfg, err := configpkg.Load()
	if err != nil {
		return configpkg.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return configpkg.Config{}, err
	}
	return cfg, nil
}
