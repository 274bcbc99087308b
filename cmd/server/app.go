package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cychipo/examio-be-sub001/internal/api"
	"github.com/cychipo/examio-be-sub001/internal/config"
	"github.com/cychipo/examio-be-sub001/internal/credits"
	"github.com/cychipo/examio-be-sub001/internal/generation"
	"github.com/cychipo/examio-be-sub001/internal/job"
	"github.com/cychipo/examio-be-sub001/internal/pipeline"
	"github.com/cychipo/examio-be-sub001/internal/platform/gcs"
	"github.com/cychipo/examio-be-sub001/internal/platform/gemini"
	"github.com/cychipo/examio-be-sub001/internal/platform/postgres"
	"github.com/cychipo/examio-be-sub001/internal/provider"
)

// application holds the assembled dependency graph. Stores and services are
// wired once at startup; everything downstream receives interfaces.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *postgres.DB

	documentStore *postgres.DocumentStore
	chunkStore    *postgres.ChunkStore
	historyStore  *postgres.HistoryStore
	ledgerStore   *postgres.LedgerStore

	objectStore *gcs.ObjectStore

	runner    *provider.Runner
	processor *pipeline.Processor
	generator *generation.Generator
	meter     *credits.Meter

	jobService *job.Service
}

// newApplication creates an application instance with all dependencies
// initialized. It accepts the core dependencies that must be established
// before wiring: configuration, logger, and the database handle.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *postgres.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.documentStore = postgres.NewDocumentStore(db, logger)
	app.chunkStore = postgres.NewChunkStore(db, logger)
	app.historyStore = postgres.NewHistoryStore(db, logger)
	app.ledgerStore = postgres.NewLedgerStore(db, logger)

	var err error
	app.objectStore, err = gcs.NewObjectStore(ctx, cfg.Storage.Bucket, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}

	client, err := gemini.NewClient(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	pool, err := provider.NewPool(provider.PoolConfig{
		Keys:               cfg.LLM.APIKeys,
		Models:             cfg.LLM.Models,
		FailureResetWindow: cfg.LLM.FailureResetWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential pool: %w", err)
	}

	executor := provider.NewExecutor(pool, provider.RetryConfig{
		MaxRetries:   cfg.LLM.MaxRetries,
		InitialDelay: cfg.LLM.InitialDelay,
	}, logger)

	app.runner = provider.NewRunner(client, executor, cfg.LLM.EmbeddingModel, logger)
	logger.Info("LLM provider initialized",
		"keys", len(cfg.LLM.APIKeys),
		"models", cfg.LLM.Models,
		"embedding_model", cfg.LLM.EmbeddingModel)

	app.processor, err = pipeline.NewProcessor(
		app.chunkStore,
		app.runner,
		pipeline.Limits{
			MaxFileBytes: cfg.Pipeline.MaxFileBytes,
			MaxPages:     cfg.Pipeline.MaxPages,
		},
		cfg.Pipeline.PageChunkSize,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize document pipeline: %w", err)
	}

	app.generator, err = generation.NewGenerator(
		app.chunkStore,
		app.runner,
		cfg.Pipeline.SimilarityTopK,
		cfg.Pipeline.SimilarityThreshold,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize content generator: %w", err)
	}

	app.meter, err = credits.NewMeter(app.documentStore, app.ledgerStore, db, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credit meter: %w", err)
	}

	app.jobService, err = job.NewService(
		job.NewMemoryRepository(),
		app.documentStore,
		app.chunkStore,
		app.historyStore,
		app.objectStore,
		db,
		app.meter,
		app.processor,
		app.generator,
		job.Config{},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize job service: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the HTTP server and blocks until shutdown.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// setupRouter builds the chi router with the standard middleware stack and
// mounts the job API under /api.
func (app *application) setupRouter() chi.Router {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	jobHandler := api.NewJobHandler(app.jobService, app.logger)
	router.Route("/api", func(r chi.Router) {
		jobHandler.Routes(r)
	})

	return router
}

// cleanup releases held resources. Called after the server has stopped
// accepting requests.
func (app *application) cleanup() {
	if app.objectStore != nil {
		if err := app.objectStore.Close(); err != nil {
			app.logger.Error("Failed to close object storage client", "error", err)
		}
	}
	if app.db != nil {
		app.db.Close()
	}
}
