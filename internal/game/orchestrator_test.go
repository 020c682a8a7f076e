package game

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/playperu/cityescape/internal/cityescape"
	"github.com/playperu/cityescape/internal/engine"
)

// trace records collaborator calls in order.
type trace struct {
	mu     sync.Mutex
	events []string
}

func (t *trace) add(e string) {
	t.mu.Lock()
	t.events = append(t.events, e)
	t.mu.Unlock()
}

func (t *trace) list() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.events)
}

func (t *trace) index(e string) int {
	return slices.Index(t.list(), e)
}

type fakeEngine struct {
	tr       *trace
	initGate chan struct{}

	mu       sync.Mutex
	verdicts []engine.Kind
	evals    int
	hints    []int
	stories  int
}

func (e *fakeEngine) InitSession(ctx context.Context) {
	if e.initGate != nil {
		select {
		case <-e.initGate:
		case <-ctx.Done():
		}
	}
	e.tr.add("init")
}

func (e *fakeEngine) Difficulty() cityescape.Difficulty { return cityescape.Difficulty{} }

func (e *fakeEngine) GeneratePuzzle(_ context.Context, stage cityescape.Stage) engine.Response {
	e.tr.add("puzzle:" + stage.Name)
	return engine.Response{Kind: engine.KindPuzzle, Body: "riddle for " + stage.Name}
}

func (e *fakeEngine) EvaluateAnswer(_ context.Context, answer string) engine.Response {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evals++
	kind := engine.KindWrong
	if len(e.verdicts) > 0 {
		kind, e.verdicts = e.verdicts[0], e.verdicts[1:]
	}
	return engine.Response{Kind: kind, Body: string(kind) + " verdict for " + answer}
}

func (e *fakeEngine) RequestHint(_ context.Context, level int) engine.Response {
	e.mu.Lock()
	e.hints = append(e.hints, level)
	e.mu.Unlock()
	return engine.Response{Kind: engine.KindHint, Body: "a hint"}
}

func (e *fakeEngine) GenerateNarration(_ context.Context, from, to cityescape.Stage, _ engine.Stats) engine.Response {
	return engine.Response{Kind: engine.KindNarration, Body: "travel " + from.Name + " to " + to.Name}
}

func (e *fakeEngine) GenerateEndingStory(context.Context, time.Duration, int, int) engine.Response {
	e.mu.Lock()
	e.stories++
	e.mu.Unlock()
	e.tr.add("story")
	return engine.Response{Kind: engine.KindNarration, Body: "the city is saved"}
}

func (e *fakeEngine) evalCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evals
}

// fakeSpeech completes every utterance at once, except the one equal to
// block, which waits for Skip or cancellation.
type fakeSpeech struct {
	tr *trace

	mu      sync.Mutex
	block   string
	blocked chan struct{}
	skip    chan struct{}
	queued  []string
	muted   bool
}

func newFakeSpeech(tr *trace) *fakeSpeech {
	return &fakeSpeech{tr: tr, blocked: make(chan struct{}, 8), skip: make(chan struct{})}
}

func (s *fakeSpeech) Enqueue(text string) {
	s.mu.Lock()
	s.queued = append(s.queued, text)
	s.mu.Unlock()
}

func (s *fakeSpeech) SpeakAndWait(ctx context.Context, text string) error {
	s.mu.Lock()
	block, skip := s.block, s.skip
	s.mu.Unlock()
	if text == block {
		s.blocked <- struct{}{}
		select {
		case <-skip:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.tr.add("speak:" + text)
	return nil
}

func (s *fakeSpeech) Stop() {}

func (s *fakeSpeech) Skip() {
	s.mu.Lock()
	close(s.skip)
	s.skip = make(chan struct{})
	s.mu.Unlock()
}

func (s *fakeSpeech) SetMuted(m bool) {
	s.mu.Lock()
	s.muted = m
	s.mu.Unlock()
}

func (s *fakeSpeech) blockOn(text string) {
	s.mu.Lock()
	s.block = text
	s.mu.Unlock()
}

func (s *fakeSpeech) queue() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.queued)
}

type fakeScene struct {
	tr       *trace
	initGate chan struct{}
}

func (s *fakeScene) Initialize(ctx context.Context) error {
	if s.initGate != nil {
		select {
		case <-s.initGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.tr.add("scene")
	return nil
}

func (s *fakeScene) FlyTo(_ context.Context, stage cityescape.Stage) error {
	s.tr.add("fly:" + stage.Name)
	return nil
}

func (s *fakeScene) AddMarker(stage cityescape.Stage) { s.tr.add("marker:" + stage.Name) }
func (s *fakeScene) ClearMarkers() {}

func (s *fakeScene) Pick(pos cityescape.LatLng) (cityescape.Building, bool) {
	if pos.Lat == 1 {
		return cityescape.Building{Name: "Tower", Use: "broadcast", Height: 236, Year: 1975}, true
	}
	return cityescape.Building{}, false
}

func (s *fakeScene) Transition(_ context.Context, kind cityescape.Transition) error {
	s.tr.add("transition:" + string(kind))
	return nil
}

func (s *fakeScene) ChangeWeather(_ context.Context, w cityescape.Weather) error {
	s.tr.add("weather:" + string(w))
	return nil
}

type recordingHooks struct {
	NopHooks
	mu       sync.Mutex
	states   []State
	finished []cityescape.Summary
	cues     []Cue
	onState  func(State)
}

func (h *recordingHooks) StateChanged(s State) {
	h.mu.Lock()
	h.states = append(h.states, s)
	fn := h.onState
	h.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (h *recordingHooks) Cue(c Cue) {
	h.mu.Lock()
	h.cues = append(h.cues, c)
	h.mu.Unlock()
}

func (h *recordingHooks) Finished(s cityescape.Summary) {
	h.mu.Lock()
	h.finished = append(h.finished, s)
	h.mu.Unlock()
}

func (h *recordingHooks) summaries() []cityescape.Summary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.finished)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	o        *Orchestrator
	tr       *trace
	speech   *fakeSpeech
	scene    *fakeScene
	hooks    *recordingHooks
	clock    *fakeClock
	engines  []*fakeEngine
	verdicts []engine.Kind
}

func testStages() []cityescape.Stage {
	return []cityescape.Stage{
		{ID: 1, Name: "Gate", Narration: "intro gate"},
		{ID: 2, Name: "Hall", Narration: "intro hall"},
		{ID: 3, Name: "Tower", Narration: "intro tower"},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tr := &trace{}
	h := &harness{
		tr:     tr,
		speech: newFakeSpeech(tr),
		scene:  &fakeScene{tr: tr},
		hooks:  &recordingHooks{},
		clock:  &fakeClock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
	}
	h.o = New(Config{
		Stages: testStages(),
		NewEngine: func() Engine {
			e := &fakeEngine{tr: tr, verdicts: slices.Clone(h.verdicts)}
			h.engines = append(h.engines, e)
			return e
		},
		Speech: h.speech,
		Scene:  h.scene,
		Hooks:  h.hooks,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    h.clock.Now,
	})
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.o.StartGame(context.Background()); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if got := h.o.Snapshot().State; got != StateAwaitingAnswer {
		t.Fatalf("state after start = %s, want %s", got, StateAwaitingAnswer)
	}
}

func TestStartGameOrdersStageIntro(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	order := []string{"speak:intro gate", "fly:Gate", "marker:Gate", "puzzle:Gate", "speak:riddle for Gate"}
	last := -1
	for _, e := range order {
		i := h.tr.index(e)
		if i <= last {
			t.Fatalf("event %q out of order in %v", e, h.tr.list())
		}
		last = i
	}

	snap := h.o.Snapshot()
	if snap.StageIndex != 0 || snap.Busy || !snap.Started {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Stage == nil || snap.Stage.Name != "Gate" {
		t.Errorf("current stage = %+v, want Gate", snap.Stage)
	}
}

func TestStartGameWaitsForBothBootTasks(t *testing.T) {
	tests := []struct {
		name  string
		first string
	}{
		{name: "engine settles first", first: "init"},
		{name: "scene settles first", first: "scene"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			sceneGate := make(chan struct{})
			engineGate := make(chan struct{})
			h.scene.initGate = sceneGate
			h.o.newEngine = func() Engine {
				e := &fakeEngine{tr: h.tr, initGate: engineGate}
				h.engines = append(h.engines, e)
				return e
			}

			gates := map[string]chan struct{}{"init": engineGate, "scene": sceneGate}
			second := "scene"
			if tt.first == "scene" {
				second = "init"
			}

			errc := make(chan error, 1)
			go func() { errc <- h.o.StartGame(context.Background()) }()

			close(gates[tt.first])
			waitFor(t, func() bool { return h.tr.index(tt.first) >= 0 })
			if h.tr.index("speak:intro gate") >= 0 {
				t.Fatalf("stage intro began before %s finished", second)
			}
			if got := h.o.Snapshot().State; got != StateBooting {
				t.Fatalf("state = %s, want booting", got)
			}

			close(gates[second])
			if err := <-errc; err != nil {
				t.Fatalf("StartGame: %v", err)
			}
			intro := h.tr.index("speak:intro gate")
			if h.tr.index("init") > intro || h.tr.index("scene") > intro {
				t.Fatalf("events = %v", h.tr.list())
			}
		})
	}
}

func TestCorrectAnswerAdvances(t *testing.T) {
	h := newHarness(t)
	h.verdicts = []engine.Kind{engine.KindCorrect}
	h.start(t)

	h.o.SubmitAnswer(context.Background(), "gwanghwamun")

	snap := h.o.Snapshot()
	if snap.StageIndex != 1 || snap.State != StateAwaitingAnswer {
		t.Fatalf("snapshot = stage %d state %s, want stage 1 awaiting", snap.StageIndex, snap.State)
	}
	for _, e := range []string{"speak:correct verdict for gwanghwamun", "transition:warp_out", "speak:travel Gate to Hall", "transition:warp_in", "fly:Hall"} {
		if h.tr.index(e) < 0 {
			t.Errorf("missing event %q in %v", e, h.tr.list())
		}
	}
	if h.tr.index("transition:warp_out") > h.tr.index("transition:warp_in") {
		t.Errorf("warp order wrong: %v", h.tr.list())
	}

	h.hooks.mu.Lock()
	defer h.hooks.mu.Unlock()
	for _, st := range []State{StateEvaluating, StateTransitioning} {
		if !slices.Contains(h.hooks.states, st) {
			t.Errorf("state %s never entered: %v", st, h.hooks.states)
		}
	}
	if !slices.Contains(h.hooks.cues, CueCorrect) || !slices.Contains(h.hooks.cues, CueTransition) {
		t.Errorf("cues = %v", h.hooks.cues)
	}
}

func TestWrongAnswerStaysOnStage(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.o.SubmitAnswer(context.Background(), "namsan")

	snap := h.o.Snapshot()
	if snap.StageIndex != 0 || snap.State != StateAwaitingAnswer || snap.Busy {
		t.Fatalf("snapshot = %+v", snap)
	}
	if q := h.speech.queue(); len(q) != 1 || !strings.HasPrefix(q[0], "wrong verdict") {
		t.Errorf("queued speech = %v", q)
	}
	kinds := messageKinds(snap.Log)
	if !slices.Contains(kinds, MessagePlayer) || !slices.Contains(kinds, MessageWrong) {
		t.Errorf("log kinds = %v", kinds)
	}
}

func TestInputIgnoredWhileProcessing(t *testing.T) {
	h := newHarness(t)
	h.verdicts = []engine.Kind{engine.KindCorrect}
	h.start(t)

	body := "correct verdict for first"
	h.speech.blockOn(body)
	done := make(chan struct{})
	go func() {
		h.o.SubmitAnswer(context.Background(), "first")
		close(done)
	}()
	<-h.speech.blocked

	h.o.SubmitAnswer(context.Background(), "second")
	h.o.RequestHint(context.Background())
	if n := h.engines[0].evalCount(); n != 1 {
		t.Errorf("evaluations = %d, want 1", n)
	}
	if got := h.o.Snapshot().HintsUsed; got != 0 {
		t.Errorf("hints used = %d, want 0", got)
	}

	h.o.SkipVoice()
	<-done
	if got := h.o.Snapshot().StageIndex; got != 1 {
		t.Errorf("stage index = %d, want 1", got)
	}
}

func TestEmptyAnswerIgnored(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	before := len(h.o.Snapshot().Log)

	h.o.SubmitAnswer(context.Background(), "   ")

	if n := h.engines[0].evalCount(); n != 0 {
		t.Errorf("evaluations = %d, want 0", n)
	}
	if after := len(h.o.Snapshot().Log); after != before {
		t.Errorf("log grew from %d to %d", before, after)
	}
}

func TestAnswerBeforeStartIgnored(t *testing.T) {
	h := newHarness(t)
	h.o.SubmitAnswer(context.Background(), "hello")
	h.o.RequestHint(context.Background())
	h.o.SubmitAnswer(context.Background(), CommandSkip)

	if snap := h.o.Snapshot(); snap.State != StateIdle || len(snap.Log) != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestHintLevelCaps(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	for range 4 {
		h.o.RequestHint(context.Background())
	}

	snap := h.o.Snapshot()
	if snap.HintLevel != cityescape.MaxHintLevel || snap.HintsUsed != 4 {
		t.Errorf("hint level %d used %d, want %d and 4", snap.HintLevel, snap.HintsUsed, cityescape.MaxHintLevel)
	}
	if got, want := h.engines[0].hints, []int{1, 2, 3, 3}; !slices.Equal(got, want) {
		t.Errorf("engine hint levels = %v, want %v", got, want)
	}
}

func TestHintLevelResetsOnNewStage(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.o.RequestHint(context.Background())
	h.o.SubmitAnswer(context.Background(), CommandSkip)

	snap := h.o.Snapshot()
	if snap.HintLevel != 0 || snap.HintsUsed != 1 {
		t.Errorf("hint level %d used %d, want 0 and 1", snap.HintLevel, snap.HintsUsed)
	}
}

func TestSkipThroughAllStagesEndsOnce(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.o.RequestHint(context.Background())
	h.o.RequestHint(context.Background())
	h.clock.Advance(250 * time.Second)

	for range len(testStages()) {
		h.o.SubmitAnswer(context.Background(), CommandSkip)
	}
	h.o.SubmitAnswer(context.Background(), CommandSkip)
	h.o.SubmitAnswer(context.Background(), CommandEnd)

	sums := h.hooks.summaries()
	if len(sums) != 1 {
		t.Fatalf("finished %d times, want 1", len(sums))
	}
	want := cityescape.Summary{
		Elapsed:       250 * time.Second,
		HintsUsed:     2,
		StagesCleared: 3,
		StageCount:    3,
		Rank:          "A",
		Story:         "the city is saved",
	}
	if sums[0] != want {
		t.Errorf("summary = %+v, want %+v", sums[0], want)
	}

	snap := h.o.Snapshot()
	if snap.State != StateFinished || snap.Summary == nil || snap.Stage != nil {
		t.Errorf("snapshot = %+v", snap)
	}
	if h.engines[0].stories != 1 {
		t.Errorf("ending stories = %d, want 1", h.engines[0].stories)
	}
	if h.tr.index("weather:dawn") < 0 || h.tr.index("transition:final") < 0 {
		t.Errorf("ending scene events missing: %v", h.tr.list())
	}

	// The clock stays frozen after the ending.
	h.clock.Advance(time.Hour)
	if got := h.o.Snapshot().Elapsed; got != 250*time.Second {
		t.Errorf("elapsed after ending = %v, want 250s", got)
	}
}

func TestEndCommandFinishesEarly(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.o.SubmitAnswer(context.Background(), "/END")

	sums := h.hooks.summaries()
	if len(sums) != 1 {
		t.Fatalf("finished %d times, want 1", len(sums))
	}
	if sums[0].StagesCleared != 0 || sums[0].Rank != "S" {
		t.Errorf("summary = %+v", sums[0])
	}
}

func TestCommandsCannotPreemptEnding(t *testing.T) {
	for _, cmd := range []string{CommandSkip, CommandEnd} {
		t.Run(cmd, func(t *testing.T) {
			h := newHarness(t)
			h.start(t)

			var once sync.Once
			h.hooks.mu.Lock()
			h.hooks.onState = func(s State) {
				if s == StateEnding {
					once.Do(func() { h.o.SubmitAnswer(context.Background(), cmd) })
				}
			}
			h.hooks.mu.Unlock()

			h.o.SubmitAnswer(context.Background(), CommandEnd)

			if sums := h.hooks.summaries(); len(sums) != 1 {
				t.Fatalf("finished %d times, want 1", len(sums))
			}
			snap := h.o.Snapshot()
			if snap.State != StateFinished || snap.Summary == nil {
				t.Errorf("state = %s, summary = %v", snap.State, snap.Summary)
			}
		})
	}
}

func TestSkipInterruptsStageIntro(t *testing.T) {
	h := newHarness(t)
	h.speech.blockOn("riddle for Gate")

	errc := make(chan error, 1)
	go func() { errc <- h.o.StartGame(context.Background()) }()
	<-h.speech.blocked
	if got := h.o.Snapshot().State; got != StateStageIntro {
		t.Fatalf("state = %s, want stage intro", got)
	}

	h.o.SubmitAnswer(context.Background(), CommandSkip)
	if err := <-errc; err != context.Canceled {
		t.Errorf("StartGame err = %v, want context.Canceled", err)
	}

	snap := h.o.Snapshot()
	if snap.StageIndex != 1 || snap.State != StateAwaitingAnswer || snap.Busy {
		t.Fatalf("snapshot = stage %d state %s busy %v", snap.StageIndex, snap.State, snap.Busy)
	}
	if h.tr.index("speak:riddle for Gate") >= 0 {
		t.Error("interrupted puzzle was reported as spoken")
	}
}

func TestRestartReplacesEngine(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.o.RequestHint(context.Background())
	h.start(t)

	if len(h.engines) != 2 {
		t.Fatalf("engines created = %d, want 2", len(h.engines))
	}
	snap := h.o.Snapshot()
	if snap.HintsUsed != 0 || snap.StageIndex != 0 {
		t.Errorf("session not reset: %+v", snap)
	}
	if snap.Log[0].Seq != 1 {
		t.Errorf("log not reset, first seq = %d", snap.Log[0].Seq)
	}
}

func TestInspect(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	b, ok := h.o.Inspect(cityescape.LatLng{Lat: 1})
	if !ok || b.Name != "Tower" {
		t.Fatalf("Inspect = %+v, %v", b, ok)
	}
	log := h.o.Snapshot().Log
	last := log[len(log)-1]
	if last.Kind != MessageBuilding || !strings.Contains(last.Text, "236m") || !strings.Contains(last.Text, "1975") {
		t.Errorf("last message = %+v", last)
	}

	if _, ok := h.o.Inspect(cityescape.LatLng{}); ok {
		t.Error("Inspect on empty ground found a building")
	}
}

func TestSetMutedForwards(t *testing.T) {
	h := newHarness(t)
	h.o.SetMuted(true)
	h.speech.mu.Lock()
	defer h.speech.mu.Unlock()
	if !h.speech.muted {
		t.Error("speech not muted")
	}
}

func TestStartGameWithoutStages(t *testing.T) {
	o := New(Config{})
	if err := o.StartGame(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func messageKinds(log []Message) []MessageKind {
	kinds := make([]MessageKind, len(log))
	for i, m := range log {
		kinds[i] = m.Kind
	}
	return kinds
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}
