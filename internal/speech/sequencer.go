// Package speech serialises narration onto a single speech channel.
//
// Queued submissions play in arrival order. A priority submission clears
// the queue, cancels whatever is being synthesised or played and plays
// immediately. Every item runs under the sequencer's current epoch context;
// Stop, Skip and priority submissions cancel the epoch, and the context is
// checked before the synthesis request, after the response and before
// playback.
package speech

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Synthesizer turns text into encoded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Player plays encoded audio. Play blocks until playback ends or ctx is
// cancelled.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

type item struct {
	text string
	done chan struct{}
	once sync.Once
}

// resolve closes the completion signal of a priority item exactly once.
func (it *item) resolve() {
	if it.done == nil {
		return
	}
	it.once.Do(func() { close(it.done) })
}

type Sequencer struct {
	synth  Synthesizer
	player Player
	logger *slog.Logger

	mu          sync.Mutex
	queue       []*item
	running     bool
	epoch       context.Context
	cancelEpoch context.CancelFunc
	pending     *item
	muted       bool
}

func New(synth Synthesizer, player Player, logger *slog.Logger) *Sequencer {
	s := &Sequencer{synth: synth, player: player, logger: logger}
	s.epoch, s.cancelEpoch = context.WithCancel(context.Background())
	return s
}

// Enqueue appends text to the sequence. Playback starts if nothing is
// playing.
func (s *Sequencer) Enqueue(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, &item{text: text})
	s.startLocked()
}

// Speak interrupts everything and plays text. The returned channel is
// closed when playback ends, fails, is preempted or is skipped. Empty text
// still interrupts and resolves at once.
func (s *Sequencer) Speak(text string) <-chan struct{} {
	it := &item{text: strings.TrimSpace(text), done: make(chan struct{})}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.pending
	s.resetLocked()
	if prev != nil {
		prev.resolve()
	}
	if it.text == "" {
		s.pending = nil
		it.resolve()
		return it.done
	}
	s.pending = it
	s.queue = append(s.queue, it)
	s.startLocked()
	return it.done
}

// SpeakAndWait speaks text with priority and blocks until it completes or
// ctx is done.
func (s *Sequencer) SpeakAndWait(ctx context.Context, text string) error {
	done := s.Speak(text)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop prevents pending synthesis from reaching playback, clears the queue
// and halts the current playback.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// Skip is Stop plus immediate resolution of the outstanding priority
// signal, so a caller blocked in SpeakAndWait resumes before Skip returns.
func (s *Sequencer) Skip() {
	s.mu.Lock()
	s.resetLocked()
	p := s.pending
	s.pending = nil
	s.mu.Unlock()

	if p != nil {
		p.resolve()
	}
}

// SetMuted toggles voice output. Muted items complete without synthesis.
func (s *Sequencer) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	if muted {
		s.resetLocked()
	}
	s.mu.Unlock()
}

func (s *Sequencer) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Busy reports whether an item is being synthesised or played, or is
// waiting in the queue.
func (s *Sequencer) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// resetLocked cancels the epoch and drops queued items. Dropped items never
// play, so their signals resolve here. An item already taken by the worker
// resolves when the worker observes the cancelled epoch.
func (s *Sequencer) resetLocked() {
	s.cancelEpoch()
	s.epoch, s.cancelEpoch = context.WithCancel(context.Background())
	for _, it := range s.queue {
		it.resolve()
	}
	s.queue = nil
}

func (s *Sequencer) startLocked() {
	if s.running {
		return
	}
	s.running = true
	go s.run()
}

// run is the single worker. It exits when the queue is empty.
func (s *Sequencer) run() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		it := s.queue[0]
		s.queue = s.queue[1:]
		ctx := s.epoch
		muted := s.muted
		s.mu.Unlock()

		if !muted {
			s.play(ctx, it.text)
		}

		s.mu.Lock()
		if s.pending == it {
			s.pending = nil
		}
		s.mu.Unlock()
		it.resolve()
	}
}

// play synthesises and plays one item. Failures count as completed
// playback.
func (s *Sequencer) play(ctx context.Context, text string) {
	if ctx.Err() != nil {
		return
	}

	audio, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("speech synthesis failed", "error", err, "chars", len(text))
		}
		return
	}
	if ctx.Err() != nil || len(audio) == 0 {
		return
	}

	if err := s.player.Play(ctx, audio); err != nil && ctx.Err() == nil {
		s.logger.Warn("speech playback failed", "error", err)
	}
}
