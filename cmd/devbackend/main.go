// Package main runs the development backend: the same HTTP contract the
// hosted backend serves, on a local SQLite file.
//
// Configuration comes from the environment (or a .env file):
//
//	PORT=8080
//	DB_PATH=data/backend.db
//	JWT_SECRET=$(openssl rand -hex 32)
//	LOG_LEVEL=debug
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sakif/clint-crypto/internal/config"
	"github.com/sakif/clint-crypto/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// Real environment variables win over .env.
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("reading .env", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cfg, err := config.LoadBackend()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// === 3. DATABASE DIRECTORY ===
	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(server.Config{
		Port:      cfg.Port,
		DBPath:    cfg.DBPath,
		JWTSecret: cfg.JWTSecret,
	}, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until Ctrl+C or SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
