package server

import (
	"context"
	"errors"
	"time"

	"github.com/playperu/cityescape/internal/cityescape"
)

var ErrNotFound = errors.New("not found")

// Run is a completed game recorded for the leaderboard.
type Run struct {
	ID         string
	SessionID  string
	Player     string
	Summary    cityescape.Summary
	FinishedAt time.Time
}

// RunStore persists completed runs. Sessions themselves live in memory.
type RunStore interface {
	RecordRun(ctx context.Context, run Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	GetRun(ctx context.Context, id string) (Run, error)
}
