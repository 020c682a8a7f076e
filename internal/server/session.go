package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/playperu/cityescape/internal/cityescape"
	"github.com/playperu/cityescape/internal/game"
	"github.com/playperu/cityescape/internal/scene"
	"github.com/playperu/cityescape/internal/speech"
)

// SessionConfig holds what every new game session is built from.
type SessionConfig struct {
	Stages    []cityescape.Stage
	NewEngine func() game.Engine
	Synth     speech.Synthesizer
	// BytesPerSecond paces audio handed to the browser.
	BytesPerSecond int
	Scene          scene.Config
}

// Session is one player's game, alive until deleted or the server stops.
type Session struct {
	ID        string
	Player    string
	CreatedAt time.Time

	game   *game.Orchestrator
	speech *speech.Sequencer
	scene  *scene.Scene
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Go runs fn on a goroutine owned by the session. Flows outlive the
// request that started them; Close waits for them.
func (s *Session) Go(fn func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
	return true
}

// Start boots the game in the background.
func (s *Session) Start() bool {
	return s.Go(func(ctx context.Context) {
		if err := s.game.StartGame(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("starting game", "error", err)
		}
	})
}

// Close interrupts running flows and silences speech, then waits for the
// session's goroutines.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.game.Interrupt()
	s.speech.Stop()
	s.wg.Wait()
}

type sessionFactory struct {
	cfg    SessionConfig
	broker *Broker
	runs   RunStore
	logger *slog.Logger
	now    func() time.Time
}

func (f *sessionFactory) New(player string) *Session {
	id := ulid.Make().String()
	logger := f.logger.With("session", id)
	publish := func(typ string, data any) {
		f.broker.Publish(id, Event{Type: typ, Data: data})
	}

	sc := scene.New(f.cfg.Stages, f.cfg.Scene, func(e scene.Event) { publish(EventScene, e) })
	out := speech.PacedPlayer{
		BytesPerSecond: f.cfg.BytesPerSecond,
		Sink:           func(audio []byte) { publish(EventAudio, AudioEvent{Format: "mp3", Audio: audio}) },
	}
	synth := f.cfg.Synth
	if synth == nil {
		synth = speech.Silent{}
	}
	seq := speech.New(synth, out, logger)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:        id,
		Player:    player,
		CreatedAt: f.now(),
		speech:    seq,
		scene:     sc,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.game = game.New(game.Config{
		Stages:    f.cfg.Stages,
		NewEngine: f.cfg.NewEngine,
		Speech:    seq,
		Scene:     sc,
		Hooks:     &sessionHooks{session: s, publish: publish, runs: f.runs, logger: logger, now: f.now},
		Logger:    logger,
	})
	return s
}

// AudioEvent carries one synthesised utterance to the browser.
type AudioEvent struct {
	Format string `json:"format"`
	Audio  []byte `json:"audio"`
}

// sessionHooks fans orchestrator callbacks out to subscribers and records
// finished runs.
type sessionHooks struct {
	session *Session
	publish func(typ string, data any)
	runs    RunStore
	logger  *slog.Logger
	now     func() time.Time
}

func (h *sessionHooks) Message(m game.Message) { h.publish(EventMessage, m) }
func (h *sessionHooks) Cue(c game.Cue) { h.publish(EventCue, c) }

func (h *sessionHooks) StateChanged(s game.State) { h.publish(EventState, s) }

func (h *sessionHooks) Finished(sum cityescape.Summary) {
	h.publish(EventFinished, newSummaryResponse(sum))
	if h.runs == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	run := Run{
		ID:         ulid.Make().String(),
		SessionID:  h.session.ID,
		Player:     h.session.Player,
		Summary:    sum,
		FinishedAt: h.now(),
	}
	if err := h.runs.RecordRun(ctx, run); err != nil {
		h.logger.Error("recording run", "error", err)
		return
	}
	h.logger.Info("run recorded", "run", run.ID, "rank", sum.Rank)
}
