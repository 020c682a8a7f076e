package cityescape

import "time"

// MaxHintLevel caps the per-stage hint level.
const MaxHintLevel = 3

// Session is the mutable state of one game run. It is owned by the
// orchestrator; a restart replaces it with a zero Session.
type Session struct {
	StageIndex int
	HintLevel  int
	HintsUsed  int
	StartedAt  time.Time
	StoppedAt  time.Time
	Processing bool
	Started    bool
}

// Elapsed returns the clock reading at now. Once the clock is stopped the
// reading is frozen.
func (s Session) Elapsed(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	if !s.StoppedAt.IsZero() {
		return s.StoppedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}

// NextHint raises the hint level (capped at MaxHintLevel) and counts the
// hint against the run.
func (s *Session) NextHint() int {
	if s.HintLevel < MaxHintLevel {
		s.HintLevel++
	}
	s.HintsUsed++
	return s.HintLevel
}
