package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/playperu/cityescape/internal/config"
	"github.com/playperu/cityescape/internal/database"
	"github.com/playperu/cityescape/internal/game"
	"github.com/playperu/cityescape/internal/handler/health"
	"github.com/playperu/cityescape/internal/migrations"
	"github.com/playperu/cityescape/internal/provider"
	"github.com/playperu/cityescape/internal/scene"
	"github.com/playperu/cityescape/internal/server"
	"github.com/playperu/cityescape/internal/stages"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	// --- Stages ---
	catalog, err := stages.Load(cfg.StagesFile)
	if err != nil {
		return fmt.Errorf("loading stages: %w", err)
	}
	logger.Info("stages loaded", "count", len(catalog), "file", cfg.StagesFile)

	// --- Models ---
	models, err := provider.NewModels(ctx, cfg, logger)
	if err != nil {
		return err
	}

	checks := map[string]health.Checker{
		"sqlite": dbChecker{db},
	}
	if models.Edge != nil {
		checks["ollama"] = health.Optional(models.Edge)
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Session: server.SessionConfig{
			Stages:         catalog,
			NewEngine:      func() game.Engine { return models.NewEngine() },
			Synth:          provider.NewSynthesizer(cfg.TTS),
			BytesPerSecond: cfg.TTS.BytesPerSecond,
			Scene: scene.Config{
				Flight:     cfg.Pacing.Flight,
				Transition: cfg.Pacing.Transition,
				Weather:    cfg.Pacing.Weather,
				PickRadius: cfg.Pacing.PickRadius,
			},
		},
		Runs:        server.NewSQLiteRunStore(db),
		Checks:      checks,
		SPADir:      cfg.SPADir,
		MaxSessions: cfg.MaxSessions,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

// dbChecker adapts *sql.DB to health.Checker.
type dbChecker struct{ db *sql.DB }

func (d dbChecker) Check(ctx context.Context) error { return d.db.PingContext(ctx) }
