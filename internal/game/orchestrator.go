// Package game runs one escape-game session: it sequences stage intros,
// answers, hints, transitions and the ending across the engine, the
// speech sequencer and the scene.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/playperu/cityescape/internal/cityescape"
	"github.com/playperu/cityescape/internal/engine"
)

// Reserved answers.
const (
	CommandSkip = "/skip"
	CommandEnd  = "/end"
)

type State string

const (
	StateIdle           State = "idle"
	StateBooting        State = "booting"
	StateStageIntro     State = "stage_intro"
	StateAwaitingAnswer State = "awaiting_answer"
	StateEvaluating     State = "evaluating"
	StateTransitioning  State = "transitioning"
	StateEnding         State = "ending"
	StateFinished       State = "finished"
)

// Engine generates puzzles, verdicts, hints and narration for one session.
type Engine interface {
	InitSession(ctx context.Context)
	Difficulty() cityescape.Difficulty
	GeneratePuzzle(ctx context.Context, stage cityescape.Stage) engine.Response
	EvaluateAnswer(ctx context.Context, answer string) engine.Response
	RequestHint(ctx context.Context, level int) engine.Response
	GenerateNarration(ctx context.Context, from, to cityescape.Stage, stats engine.Stats) engine.Response
	GenerateEndingStory(ctx context.Context, total time.Duration, hintsUsed, stageCount int) engine.Response
}

type Speaker interface {
	Enqueue(text string)
	SpeakAndWait(ctx context.Context, text string) error
	Stop()
	Skip()
	SetMuted(muted bool)
}

type Scene interface {
	Initialize(ctx context.Context) error
	FlyTo(ctx context.Context, stage cityescape.Stage) error
	AddMarker(stage cityescape.Stage)
	ClearMarkers()
	Pick(pos cityescape.LatLng) (cityescape.Building, bool)
	Transition(ctx context.Context, kind cityescape.Transition) error
	ChangeWeather(ctx context.Context, w cityescape.Weather) error
}

type Config struct {
	Stages    []cityescape.Stage
	NewEngine func() Engine
	Speech    Speaker
	Scene     Scene
	Hooks     Hooks
	Logger    *slog.Logger
	Now       func() time.Time
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	State      State                 `json:"state"`
	StageIndex int                   `json:"stageIndex"`
	StageCount int                   `json:"stageCount"`
	Stage      *cityescape.Stage     `json:"stage,omitempty"`
	HintLevel  int                   `json:"hintLevel"`
	HintsUsed  int                   `json:"hintsUsed"`
	Elapsed    time.Duration         `json:"elapsed"`
	Busy       bool                  `json:"busy"`
	Started    bool                  `json:"started"`
	Streak     cityescape.Difficulty `json:"streak"`
	Log        []Message             `json:"log"`
	Summary    *cityescape.Summary   `json:"summary,omitempty"`
}

type Orchestrator struct {
	stages    []cityescape.Stage
	newEngine func() Engine
	speech    Speaker
	scene     Scene
	hooks     Hooks
	logger    *slog.Logger
	now       func() time.Time

	mu         sync.Mutex
	state      State
	sess       cityescape.Session
	engine     Engine
	log        []Message
	summary    *cityescape.Summary
	ended      bool
	flowID     uint64
	cancelFlow context.CancelFunc
}

func New(cfg Config) *Orchestrator {
	if cfg.Hooks == nil {
		cfg.Hooks = NopHooks{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{
		stages:    cfg.Stages,
		newEngine: cfg.NewEngine,
		speech:    cfg.Speech,
		scene:     cfg.Scene,
		hooks:     cfg.Hooks,
		logger:    cfg.Logger,
		now:       cfg.Now,
		state:     StateIdle,
	}
}

// StartGame boots a fresh session and plays the first stage intro. It
// interrupts whatever the previous session was doing and discards its
// engine. It returns once the first puzzle is awaiting an answer.
func (o *Orchestrator) StartGame(ctx context.Context) error {
	if len(o.stages) == 0 {
		return errors.New("no stages loaded")
	}
	ctx, done, _ := o.preempt(ctx)
	defer done()
	o.speech.Stop()

	eng := o.newEngine()
	o.mu.Lock()
	o.sess = cityescape.Session{Processing: true}
	o.engine = eng
	o.log = nil
	o.summary = nil
	o.ended = false
	o.mu.Unlock()

	o.transition(ctx, StateBooting)
	o.cue(ctx, CueBoot)
	o.emit(ctx, MessageSystem, "Booting city grid...")

	var g errgroup.Group
	g.Go(func() error {
		if err := o.scene.Initialize(ctx); err != nil {
			return fmt.Errorf("initializing scene: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		eng.InitSession(ctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		if ctx.Err() == nil {
			o.transition(ctx, StateIdle)
		}
		return err
	}

	if !o.update(ctx, func(s *cityescape.Session) {
		s.Started = true
		s.StartedAt = o.now()
	}) {
		return ctx.Err()
	}
	o.logger.Info("game started", "stages", len(o.stages))
	return o.loadStage(ctx, 0)
}

// SubmitAnswer judges a player answer. Empty input and input received
// while another flow is running are ignored; the reserved commands
// interrupt the running flow.
func (o *Orchestrator) SubmitAnswer(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	switch strings.ToLower(text) {
	case "":
		return
	case CommandSkip:
		o.forceAdvance(ctx)
		return
	case CommandEnd:
		o.forceEnd(ctx)
		return
	}

	ctx, done, ok := o.begin(ctx, StateAwaitingAnswer)
	if !ok {
		return
	}
	defer done()
	o.report("answer", o.answer(ctx, text))
}

func (o *Orchestrator) answer(ctx context.Context, text string) error {
	o.emit(ctx, MessagePlayer, text)
	o.transition(ctx, StateEvaluating)

	resp := o.currentEngine().EvaluateAnswer(ctx, text)
	if err := ctx.Err(); err != nil {
		return err
	}

	if resp.Kind != engine.KindCorrect {
		o.emit(ctx, MessageWrong, resp.Body)
		o.cue(ctx, CueWrong)
		o.speech.Enqueue(resp.Body)
		o.transition(ctx, StateAwaitingAnswer)
		return nil
	}

	o.emit(ctx, MessageCorrect, resp.Body)
	o.cue(ctx, CueCorrect)
	o.transition(ctx, StateTransitioning)
	if err := o.speech.SpeakAndWait(ctx, resp.Body); err != nil {
		return err
	}
	return o.advance(ctx)
}

// RequestHint raises the hint level and speaks the next hint.
func (o *Orchestrator) RequestHint(ctx context.Context) {
	ctx, done, ok := o.begin(ctx, StateAwaitingAnswer)
	if !ok {
		return
	}
	defer done()

	var level int
	if !o.update(ctx, func(s *cityescape.Session) { level = s.NextHint() }) {
		return
	}
	o.cue(ctx, CueHint)
	resp := o.currentEngine().RequestHint(ctx, level)
	if ctx.Err() != nil {
		return
	}
	o.emit(ctx, MessageHint, fmt.Sprintf("Hint %d/%d: %s", level, cityescape.MaxHintLevel, resp.Body))
	o.speech.Enqueue(resp.Body)
}

// SkipVoice cuts the current narration short. The flow waiting on it
// carries on.
func (o *Orchestrator) SkipVoice() {
	o.speech.Skip()
}

func (o *Orchestrator) SetMuted(muted bool) {
	o.speech.SetMuted(muted)
}

// Inspect scans the building nearest pos and logs what it found.
func (o *Orchestrator) Inspect(pos cityescape.LatLng) (cityescape.Building, bool) {
	b, ok := o.scene.Pick(pos)
	if !ok {
		return cityescape.Building{}, false
	}
	ctx := context.Background()
	o.cue(ctx, CueScan)
	o.emit(ctx, MessageBuilding, describe(b))
	return b, true
}

func describe(b cityescape.Building) string {
	parts := []string{b.Name}
	if b.Use != "" {
		parts = append(parts, b.Use)
	}
	if b.Height > 0 {
		parts = append(parts, fmt.Sprintf("%.0fm", b.Height))
	}
	if b.Year > 0 {
		parts = append(parts, fmt.Sprintf("built %d", b.Year))
	}
	return "Scan: " + strings.Join(parts, " · ")
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := Snapshot{
		State:      o.state,
		StageIndex: o.sess.StageIndex,
		StageCount: len(o.stages),
		HintLevel:  o.sess.HintLevel,
		HintsUsed:  o.sess.HintsUsed,
		Elapsed:    o.sess.Elapsed(o.now()),
		Busy:       o.sess.Processing,
		Started:    o.sess.Started,
		Log:        slices.Clone(o.log),
	}
	if o.sess.Started && o.sess.StageIndex < len(o.stages) {
		stage := o.stages[o.sess.StageIndex]
		snap.Stage = &stage
	}
	if o.engine != nil {
		snap.Streak = o.engine.Difficulty()
	}
	if o.summary != nil {
		sum := *o.summary
		snap.Summary = &sum
	}
	return snap
}

// Interrupt cancels the running flow and silences speech.
func (o *Orchestrator) Interrupt() {
	o.mu.Lock()
	if o.cancelFlow != nil {
		o.cancelFlow()
		o.cancelFlow = nil
	}
	o.sess.Processing = false
	o.mu.Unlock()
	o.speech.Stop()
}

func (o *Orchestrator) forceAdvance(ctx context.Context) {
	ctx, done, ok := o.preempt(ctx, StateStageIntro, StateAwaitingAnswer, StateEvaluating, StateTransitioning)
	if !ok {
		return
	}
	defer done()
	o.emit(ctx, MessageSystem, "Sector bypassed.")
	o.report("skip", o.advance(ctx))
}

func (o *Orchestrator) forceEnd(ctx context.Context) {
	ctx, done, ok := o.preempt(ctx, StateStageIntro, StateAwaitingAnswer, StateEvaluating, StateTransitioning)
	if !ok {
		return
	}
	defer done()
	o.emit(ctx, MessageSystem, "Mission aborted. Extracting...")
	o.report("end", o.ending(ctx))
}

// loadStage introduces the stage at idx: narration first, then the camera
// flight, then the puzzle.
func (o *Orchestrator) loadStage(ctx context.Context, idx int) error {
	stage := o.stages[idx]
	if !o.update(ctx, func(s *cityescape.Session) {
		s.StageIndex = idx
		s.HintLevel = 0
	}) {
		return ctx.Err()
	}
	o.transition(ctx, StateStageIntro)
	o.scene.ClearMarkers()
	o.emit(ctx, MessageStage, fmt.Sprintf("Sector %d/%d: %s", idx+1, len(o.stages), stage.DisplayName()))
	o.cue(ctx, CueStage)

	if stage.Narration != "" {
		o.emit(ctx, MessageNarration, stage.Narration)
		if err := o.speech.SpeakAndWait(ctx, stage.Narration); err != nil {
			return err
		}
	}
	if err := o.scene.FlyTo(ctx, stage); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.logger.Warn("camera flight failed", "stage", stage.ID, "error", err)
	}
	o.scene.AddMarker(stage)

	puzzle := o.currentEngine().GeneratePuzzle(ctx, stage)
	if err := ctx.Err(); err != nil {
		return err
	}
	o.emit(ctx, MessagePuzzle, puzzle.Body)
	if err := o.speech.SpeakAndWait(ctx, puzzle.Body); err != nil {
		return err
	}
	o.transition(ctx, StateAwaitingAnswer)
	return nil
}

// advance moves past the current stage, narrating the journey to the next
// one, or runs the ending after the last stage.
func (o *Orchestrator) advance(ctx context.Context) error {
	var (
		from  cityescape.Stage
		next  int
		stats engine.Stats
	)
	if !o.update(ctx, func(s *cityescape.Session) {
		from = o.stages[min(s.StageIndex, len(o.stages)-1)]
		s.StageIndex++
		next = s.StageIndex
		stats = engine.Stats{HintsUsed: s.HintsUsed, Elapsed: s.Elapsed(o.now())}
	}) {
		return ctx.Err()
	}
	if next >= len(o.stages) {
		return o.ending(ctx)
	}
	to := o.stages[next]

	o.transition(ctx, StateTransitioning)
	o.cue(ctx, CueTransition)
	if err := o.scene.Transition(ctx, cityescape.TransitionOut); err != nil {
		return err
	}

	narration := o.currentEngine().GenerateNarration(ctx, from, to, stats)
	if err := ctx.Err(); err != nil {
		return err
	}
	o.emit(ctx, MessageNarration, narration.Body)
	if err := o.speech.SpeakAndWait(ctx, narration.Body); err != nil {
		return err
	}
	if err := o.scene.Transition(ctx, cityescape.TransitionIn); err != nil {
		return err
	}
	return o.loadStage(ctx, next)
}

// ending stops the clock, rolls the final scene and reveals the rank. It
// runs at most once per session.
func (o *Orchestrator) ending(ctx context.Context) error {
	o.mu.Lock()
	if err := ctx.Err(); err != nil {
		o.mu.Unlock()
		return err
	}
	if o.ended {
		o.mu.Unlock()
		return nil
	}
	// Ending is entered under the same lock that marks it taken, so a
	// /skip or /end can no longer preempt it.
	o.ended = true
	o.state = StateEnding
	now := o.now()
	if o.sess.StoppedAt.IsZero() {
		o.sess.StoppedAt = now
	}
	elapsed := o.sess.Elapsed(now)
	hints := o.sess.HintsUsed
	cleared := min(o.sess.StageIndex, len(o.stages))
	eng := o.engine
	o.mu.Unlock()

	o.hooks.StateChanged(StateEnding)
	o.speech.Stop()
	o.scene.ClearMarkers()
	o.cue(ctx, CueEnding)
	if err := o.scene.Transition(ctx, cityescape.TransitionFinal); err != nil {
		return err
	}

	var story engine.Response
	var g errgroup.Group
	g.Go(func() error {
		return o.scene.ChangeWeather(ctx, cityescape.WeatherDawn)
	})
	g.Go(func() error {
		story = eng.GenerateEndingStory(ctx, elapsed, hints, len(o.stages))
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	summary := cityescape.Summary{
		Elapsed:       elapsed,
		HintsUsed:     hints,
		StagesCleared: cleared,
		StageCount:    len(o.stages),
		Rank:          cityescape.Rank(elapsed, hints),
		Story:         story.Body,
	}
	o.emit(ctx, MessageEnding, story.Body)
	o.emit(ctx, MessageSystem, fmt.Sprintf("Rank %s · %s · %d hints", summary.Rank, formatClock(elapsed), hints))

	o.mu.Lock()
	if err := ctx.Err(); err != nil {
		o.mu.Unlock()
		return err
	}
	o.summary = &summary
	o.mu.Unlock()
	o.hooks.Finished(summary)
	o.logger.Info("game finished", "rank", summary.Rank, "elapsed", elapsed, "hints", hints)

	if err := o.speech.SpeakAndWait(ctx, story.Body); err != nil {
		return err
	}
	o.transition(ctx, StateFinished)
	return nil
}

func formatClock(d time.Duration) string {
	s := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

// begin starts a flow when none is running and the state is one of
// allowed. done must be called when the flow returns.
func (o *Orchestrator) begin(parent context.Context, allowed ...State) (context.Context, func(), bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess.Processing || !slices.Contains(allowed, o.state) {
		return nil, nil, false
	}
	ctx, done := o.startFlowLocked(parent)
	return ctx, done, true
}

// preempt cancels the running flow, skips its speech and starts a new
// flow. With no allowed states any state is accepted.
func (o *Orchestrator) preempt(parent context.Context, allowed ...State) (context.Context, func(), bool) {
	o.mu.Lock()
	if len(allowed) > 0 && !slices.Contains(allowed, o.state) {
		o.mu.Unlock()
		return nil, nil, false
	}
	if o.cancelFlow != nil {
		o.cancelFlow()
	}
	ctx, done := o.startFlowLocked(parent)
	o.mu.Unlock()

	o.speech.Skip()
	return ctx, done, true
}

func (o *Orchestrator) startFlowLocked(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	o.flowID++
	id := o.flowID
	o.cancelFlow = cancel
	o.sess.Processing = true

	return ctx, func() {
		o.mu.Lock()
		if o.flowID == id {
			o.sess.Processing = false
			o.cancelFlow = nil
		}
		o.mu.Unlock()
		cancel()
	}
}

// update mutates the session unless ctx's flow has been cancelled. The
// check runs under the lock that cancellation also takes, so a cancelled
// flow never writes.
func (o *Orchestrator) update(ctx context.Context, fn func(*cityescape.Session)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	fn(&o.sess)
	return true
}

func (o *Orchestrator) transition(ctx context.Context, s State) {
	o.mu.Lock()
	if ctx.Err() != nil || o.state == s {
		o.mu.Unlock()
		return
	}
	o.state = s
	o.mu.Unlock()
	o.hooks.StateChanged(s)
}

func (o *Orchestrator) emit(ctx context.Context, kind MessageKind, text string) {
	if text == "" {
		return
	}
	o.mu.Lock()
	if ctx.Err() != nil {
		o.mu.Unlock()
		return
	}
	msg := Message{Seq: len(o.log) + 1, Kind: kind, Text: text, At: o.now()}
	o.log = append(o.log, msg)
	o.mu.Unlock()
	o.hooks.Message(msg)
}

func (o *Orchestrator) cue(ctx context.Context, c Cue) {
	if ctx.Err() != nil {
		return
	}
	o.hooks.Cue(c)
}

func (o *Orchestrator) currentEngine() Engine {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.engine
}

func (o *Orchestrator) report(op string, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	o.logger.Warn("flow ended early", "op", op, "error", err)
}
