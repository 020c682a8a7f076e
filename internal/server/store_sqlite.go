package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type SQLiteRunStore struct {
	db *sql.DB
}

func NewSQLiteRunStore(db *sql.DB) *SQLiteRunStore {
	return &SQLiteRunStore{db: db}
}

func (s *SQLiteRunStore) RecordRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, session_id, player, rank, elapsed_ms, hints_used, stages_cleared, stage_count, story, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.SessionID, run.Player, run.Summary.Rank,
		run.Summary.Elapsed.Milliseconds(), run.Summary.HintsUsed,
		run.Summary.StagesCleared, run.Summary.StageCount, run.Summary.Story,
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

const selectRuns = `
	SELECT id, session_id, player, rank, elapsed_ms, hints_used, stages_cleared, stage_count, story, finished_at
	FROM runs`

// ListRuns returns the best runs first: by rank, then fewer stages
// skipped, then time.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectRuns+`
		ORDER BY CASE rank
			WHEN 'S' THEN 0 WHEN 'A' THEN 1 WHEN 'B' THEN 2 WHEN 'C' THEN 3 ELSE 4
		END, stages_cleared DESC, elapsed_ms ASC, finished_at ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run        Run
		elapsedMs  int64
		finishedAt string
	)
	err := sc.Scan(
		&run.ID, &run.SessionID, &run.Player, &run.Summary.Rank, &elapsedMs,
		&run.Summary.HintsUsed, &run.Summary.StagesCleared, &run.Summary.StageCount,
		&run.Summary.Story, &finishedAt,
	)
	if err != nil {
		return Run{}, err
	}
	run.Summary.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	run.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt)
	if err != nil {
		return Run{}, fmt.Errorf("parsing finished_at: %w", err)
	}
	return run, nil
}
