// Package main implements the entry point for the examio content engine,
// the HTTP service that turns uploaded PDF documents into machine-generated
// quiz questions and flashcards.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/cychipo/examio-be-sub001/internal/config"
	"github.com/cychipo/examio-be-sub001/internal/platform/logger"
	"github.com/cychipo/examio-be-sub001/internal/platform/postgres"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

// run loads configuration, prepares core dependencies, and starts the
// server. It only returns once the server has shut down.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	ctx := context.Background()

	if err := postgres.Migrate(ctx, cfg.Database.URL, appLogger); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	db, err := postgres.NewDB(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	app, err := newApplication(ctx, cfg, appLogger, db)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
