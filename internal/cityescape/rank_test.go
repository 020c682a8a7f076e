package cityescape

import (
	"testing"
	"time"
)

func TestRank(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		hints   int
		want    string
	}{
		{"fast no hints", 250 * time.Second, 0, "S"},
		{"two hints under ten minutes", 500 * time.Second, 2, "A"},
		{"five hints under fifteen minutes", 700 * time.Second, 5, "B"},
		{"slow but no hints", 1000 * time.Second, 0, "C"},
		{"over twenty minutes", 1300 * time.Second, 0, "D"},
		{"one hint is not S", 100 * time.Second, 1, "A"},
		{"six hints fast", 100 * time.Second, 6, "C"},
		{"boundary 300s", 300 * time.Second, 0, "A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Rank(tt.elapsed, tt.hints); got != tt.want {
				t.Errorf("Rank(%v, %d) = %q, want %q", tt.elapsed, tt.hints, got, tt.want)
			}
		})
	}
}

func TestSessionElapsedFreezesWhenStopped(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := Session{StartedAt: start}

	if got := s.Elapsed(start.Add(90 * time.Second)); got != 90*time.Second {
		t.Fatalf("running elapsed = %v, want 90s", got)
	}

	s.StoppedAt = start.Add(2 * time.Minute)
	if got := s.Elapsed(start.Add(time.Hour)); got != 2*time.Minute {
		t.Fatalf("stopped elapsed = %v, want 2m", got)
	}

	if got := (Session{}).Elapsed(start); got != 0 {
		t.Fatalf("unstarted elapsed = %v, want 0", got)
	}
}

func TestSessionNextHintCapsLevel(t *testing.T) {
	var s Session
	for i := 0; i < 5; i++ {
		s.NextHint()
	}
	if s.HintLevel != MaxHintLevel {
		t.Errorf("hint level = %d, want %d", s.HintLevel, MaxHintLevel)
	}
	if s.HintsUsed != 5 {
		t.Errorf("hints used = %d, want 5", s.HintsUsed)
	}
}
