// Package engine generates puzzles, judges answers and writes narration
// with a cloud chat model, using an optional edge model as a secondary
// path. Every operation returns displayable, tagged text: failures end in
// deterministic fallbacks and are never returned to the caller.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/playperu/cityescape/internal/cityescape"
)

// CloudModel opens conversations on the primary, network-bound model.
type CloudModel interface {
	StartChat(ctx context.Context, system string) (ChatSession, error)
}

// ChatSession is a persistent conversation.
type ChatSession interface {
	Send(ctx context.Context, prompt string) (string, error)
}

// EdgeModel is a low-latency local model that may not be present.
type EdgeModel interface {
	Available(ctx context.Context) bool
	NewSession(ctx context.Context, system string) (EdgeSession, error)
}

type EdgeSession interface {
	Prompt(ctx context.Context, prompt string) (string, error)
}

var errTooShort = errors.New("reply too short")

const minVerdictLen = 5

type Config struct {
	// RetryBackoff is the pause before the single cloud retry when judging.
	RetryBackoff time.Duration
	// CallTimeout bounds each model call. Zero leaves it to the transport.
	CallTimeout time.Duration
	// MinPuzzleLen rejects implausibly short puzzles, in runes.
	MinPuzzleLen int
}

func (c Config) withDefaults() Config {
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.MinPuzzleLen <= 0 {
		c.MinPuzzleLen = 20
	}
	return c
}

// Engine holds the AI sessions and difficulty state of one game session.
type Engine struct {
	cloud  CloudModel
	edge   EdgeModel
	cfg    Config
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error

	mu         sync.Mutex
	chat       ChatSession
	edgeSess   EdgeSession
	difficulty cityescape.Difficulty
	stage      cityescape.Stage
	puzzle     string
}

// New returns an engine without sessions. Either model may be nil.
func New(cloud CloudModel, edge EdgeModel, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		cloud:  cloud,
		edge:   edge,
		cfg:    cfg.withDefaults(),
		logger: logger,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InitSession opens the cloud conversation and, when the edge model is
// ready, an edge session. Failures leave the engine on its fallbacks.
func (e *Engine) InitSession(ctx context.Context) {
	var chat ChatSession
	if e.cloud == nil {
		e.logger.Warn("cloud model not configured")
	} else {
		c, err := e.cloud.StartChat(ctx, systemPrompt)
		if err != nil {
			e.logger.Error("starting cloud session", "error", err)
		} else {
			chat = c
		}
	}

	var edge EdgeSession
	switch {
	case e.edge == nil:
	case !e.edge.Available(ctx):
		e.logger.Info("edge model unavailable, cloud only")
	default:
		s, err := e.edge.NewSession(ctx, systemPrompt)
		if err != nil {
			e.logger.Warn("starting edge session", "error", err)
		} else {
			edge = s
			e.logger.Info("edge session ready")
		}
	}

	e.mu.Lock()
	e.chat = chat
	e.edgeSess = edge
	e.difficulty = cityescape.Difficulty{}
	e.mu.Unlock()
}

// Difficulty returns a snapshot of the answer streaks.
func (e *Engine) Difficulty() cityescape.Difficulty {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.difficulty
}

func (e *Engine) sessions() (ChatSession, EdgeSession) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chat, e.edgeSess
}

func (e *Engine) record(correct bool) {
	e.mu.Lock()
	e.difficulty.Record(correct)
	e.mu.Unlock()
}

func (e *Engine) current() (cityescape.Stage, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stage, e.puzzle
}

// GeneratePuzzle asks the cloud model for a puzzle about stage. A short
// cloud reply falls back to the canned puzzle; a cloud error tries the
// edge model first.
func (e *Engine) GeneratePuzzle(ctx context.Context, stage cityescape.Stage) Response {
	prompt := puzzlePrompt(stage, e.Difficulty().Modifier())

	resp, err := e.ask(ctx, askOpts{
		op: "puzzle", prompt: prompt, edgePrompt: prompt + edgePuzzleSuffix,
		minLen: e.cfg.MinPuzzleLen, kind: KindPuzzle, shortIsFinal: true,
	})
	if err != nil {
		e.logger.Warn("using canned puzzle", "stage", stage.ID, "error", err)
		resp = CannedPuzzle(stage)
	}
	resp.Kind = KindPuzzle

	e.mu.Lock()
	e.stage = stage
	e.puzzle = resp.Body
	e.mu.Unlock()
	return resp
}

// EvaluateAnswer judges answer against the current puzzle. The edge
// session is preferred; the cloud path retries once before giving up.
func (e *Engine) EvaluateAnswer(ctx context.Context, answer string) Response {
	chat, edge := e.sessions()
	if chat == nil {
		return connectionLost
	}
	stage, puzzle := e.current()
	mod := e.Difficulty().Modifier()

	if edge != nil {
		text, err := e.promptEdge(ctx, edge, edgeJudgePrompt(stage, puzzle, answer, mod))
		if err == nil && runeLen(text) >= minVerdictLen {
			return e.verdict(text)
		}
		e.logger.Warn("edge judgement failed, using cloud", "error", errOrShort(err))
	}

	prompt := judgePrompt(stage, puzzle, answer, mod)
	for attempt := 1; attempt <= 2; attempt++ {
		if attempt > 1 {
			if err := e.sleep(ctx, e.cfg.RetryBackoff); err != nil {
				break
			}
		}
		text, err := e.sendCloud(ctx, chat, prompt)
		if err == nil && runeLen(text) >= minVerdictLen {
			return e.verdict(text)
		}
		e.logger.Warn("cloud judgement failed", "attempt", attempt, "error", errOrShort(err))
	}
	return signalUnstable
}

func (e *Engine) verdict(text string) Response {
	r := ParseVerdict(text)
	e.record(r.Kind == KindCorrect)
	return r
}

// RequestHint asks for a hint at level (1..3) for the current puzzle.
func (e *Engine) RequestHint(ctx context.Context, level int) Response {
	chat, _ := e.sessions()
	if chat == nil {
		return hintOffline
	}
	stage, puzzle := e.current()
	prompt := hintPrompt(stage, puzzle, level)

	resp, err := e.ask(ctx, askOpts{op: "hint", prompt: prompt, edgePrompt: prompt, minLen: 1, kind: KindHint})
	if err != nil {
		e.logger.Warn("hint unavailable", "level", level, "error", err)
		return hintUnavailable
	}
	resp.Kind = KindHint
	return resp
}

// GenerateNarration narrates the move from one stage to the next.
func (e *Engine) GenerateNarration(ctx context.Context, from, to cityescape.Stage, stats Stats) Response {
	prompt := narrationPrompt(from, to, e.Difficulty().Performance(), stats)

	resp, err := e.ask(ctx, askOpts{op: "narration", prompt: prompt, edgePrompt: prompt, minLen: 1, kind: KindNarration})
	if err != nil {
		e.logger.Warn("using template narration", "from", from.ID, "to", to.ID, "error", err)
		return narrationFallback(from, to)
	}
	resp.Kind = KindNarration
	return resp
}

// GenerateEndingStory writes the finale.
func (e *Engine) GenerateEndingStory(ctx context.Context, total time.Duration, hintsUsed, stageCount int) Response {
	prompt := endingPrompt(total, hintsUsed, stageCount)

	resp, err := e.ask(ctx, askOpts{op: "ending", prompt: prompt, edgePrompt: prompt, minLen: 1, kind: KindNarration})
	if err != nil {
		e.logger.Warn("using fixed ending", "error", err)
		return endingFallback
	}
	resp.Kind = KindNarration
	return resp
}

type askOpts struct {
	op         string
	prompt     string
	edgePrompt string
	minLen     int
	kind       Kind

	// shortIsFinal rejects a short cloud reply without consulting the
	// edge model.
	shortIsFinal bool
}

// ask sends the prompt to the cloud chat and, when the cloud call fails or
// its reply is shorter than minLen, the edge prompt to the edge session.
func (e *Engine) ask(ctx context.Context, o askOpts) (Response, error) {
	chat, edge := e.sessions()

	cloudErr := errors.New("no cloud session")
	if chat != nil {
		text, err := e.sendCloud(ctx, chat, o.prompt)
		switch {
		case err != nil:
			cloudErr = err
		case runeLen(text) < o.minLen:
			if o.shortIsFinal {
				return Response{}, errTooShort
			}
			cloudErr = errTooShort
		default:
			return Parse(text, o.kind), nil
		}
	}
	e.logger.Warn("cloud generation failed", "op", o.op, "error", cloudErr)

	if edge == nil {
		return Response{}, cloudErr
	}
	text, err := e.promptEdge(ctx, edge, o.edgePrompt)
	if err != nil {
		return Response{}, errors.Join(cloudErr, err)
	}
	if runeLen(text) < o.minLen {
		return Response{}, errTooShort
	}
	return Parse(text, o.kind), nil
}

func (e *Engine) sendCloud(ctx context.Context, chat ChatSession, prompt string) (string, error) {
	ctx, cancel := e.callContext(ctx)
	defer cancel()
	return chat.Send(ctx, prompt)
}

func (e *Engine) promptEdge(ctx context.Context, edge EdgeSession, prompt string) (string, error) {
	ctx, cancel := e.callContext(ctx)
	defer cancel()
	return edge.Prompt(ctx, prompt)
}

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, e.cfg.CallTimeout)
	}
	return context.WithCancel(ctx)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

func errOrShort(err error) error {
	if err == nil {
		return errTooShort
	}
	return err
}
