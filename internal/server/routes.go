package server

import (
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/cityescape/internal/handler/health"
)

func addRoutes(r chi.Router, logger *slog.Logger, sessions *Registry, deps Deps) {
	broker := NewBroker()
	factory := &sessionFactory{
		cfg:    deps.Session,
		broker: broker,
		runs:   deps.Runs,
		logger: logger,
		now:    time.Now,
	}

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("City Escape API", "/openapi.json", "/docs"))
	r.Mount("/healthz", health.NewHandler(logger, deps.Checks).Routes())

	r.Get("/api/stages", handleListStages(deps.Session.Stages))
	if deps.Runs != nil {
		r.Get("/api/runs", handleListRuns(deps.Runs))
		r.Get("/api/runs/{runID}", handleGetRun(deps.Runs))
	}

	r.Post("/api/sessions", handleCreateSession(logger, sessions, factory))
	r.Route("/api/sessions/{id}", func(r chi.Router) {
		r.Use(sessionMiddleware(sessions))
		r.Get("/", handleGetSession())
		r.Delete("/", handleDeleteSession(logger, sessions, broker))
		r.Post("/restart", handleRestartSession())
		r.Post("/answer", handleAnswer())
		r.Post("/hint", handleHint())
		r.Post("/voice/skip", handleVoiceSkip())
		r.Post("/voice/mute", handleVoiceMute())
		r.Post("/pick", handlePick())
		r.Get("/events", handleEvents(broker))
		r.Get("/ws", handleSessionWS(logger, broker))
	})

	if deps.SPADir != "" {
		if info, err := os.Stat(deps.SPADir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", deps.SPADir)
			r.NotFound(handleSPA(deps.SPADir))
		}
	}
}
