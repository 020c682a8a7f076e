// Package provider builds the model and voice adapters selected by the
// configuration.
package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/playperu/cityescape/internal/config"
	"github.com/playperu/cityescape/internal/engine"
	"github.com/playperu/cityescape/internal/provider/gemini"
	"github.com/playperu/cityescape/internal/provider/ollama"
	"github.com/playperu/cityescape/internal/provider/polly"
	"github.com/playperu/cityescape/internal/speech"
)

// Models holds the configured cloud and edge models. Either may be nil.
type Models struct {
	Cloud *gemini.Model
	Edge  *ollama.Model

	engine config.Engine
	logger *slog.Logger
}

// NewModels builds the configured models. A missing Gemini key is not an
// error: the engine then runs on its canned fallbacks.
func NewModels(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Models, error) {
	m := &Models{engine: cfg.Engine, logger: logger}

	if cfg.Gemini.APIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, puzzles will use canned fallbacks")
	} else {
		cloud, err := gemini.New(ctx, gemini.Config{
			APIKey:      cfg.Gemini.APIKey,
			Model:       cfg.Gemini.Model,
			Temperature: cfg.Gemini.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("creating gemini client: %w", err)
		}
		m.Cloud = cloud
		logger.Info("cloud model configured", "model", cfg.Gemini.Model)
	}

	if cfg.Ollama.Enabled {
		m.Edge = ollama.New(ollama.Config{
			Endpoint: cfg.Ollama.Endpoint,
			Model:    cfg.Ollama.Model,
			Timeout:  cfg.Ollama.Timeout,
		})
		logger.Info("edge model configured", "endpoint", cfg.Ollama.Endpoint, "model", cfg.Ollama.Model)
	}
	return m, nil
}

// NewEngine returns a fresh engine for one game session.
func (m *Models) NewEngine() *engine.Engine {
	var (
		cloud engine.CloudModel
		edge  engine.EdgeModel
	)
	if m.Cloud != nil {
		cloud = m.Cloud
	}
	if m.Edge != nil {
		edge = m.Edge
	}
	return engine.New(cloud, edge, engine.Config{
		RetryBackoff: m.engine.RetryBackoff,
		CallTimeout:  m.engine.CallTimeout,
		MinPuzzleLen: m.engine.MinPuzzleLen,
	}, m.logger)
}

// NewSynthesizer returns the configured voice, or a silent one.
func NewSynthesizer(cfg config.TTS) speech.Synthesizer {
	if cfg.Provider != "polly" {
		return speech.Silent{}
	}
	return polly.New(polly.Config{
		Region:     cfg.Region,
		VoiceID:    cfg.Voice,
		Engine:     cfg.Engine,
		SampleRate: cfg.SampleRate,
		Timeout:    cfg.Timeout,
	})
}
