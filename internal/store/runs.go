package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrRunNotFound = errors.New("summary run not found")

const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

type StartRunInput struct {
	TriggerSource string
	RequestedBy   string
	ChannelID     string
	StartedAt     time.Time
}

type FinishRunInput struct {
	ID           string
	Status       string
	RecentCount  int
	OlderCount   int
	ChunkCount   int
	SummaryChars int
	ErrorMessage string
	FinishedAt   time.Time
}

type Run struct {
	ID            string
	TriggerSource string
	RequestedBy   string
	ChannelID     string
	Status        string
	RecentCount   int
	OlderCount    int
	ChunkCount    int
	SummaryChars  int
	ErrorMessage  string
	StartedAt     time.Time
	FinishedAt    time.Time
}

func (s *Store) StartRun(ctx context.Context, input StartRunInput) (Run, error) {
	source := strings.TrimSpace(input.TriggerSource)
	if source == "" {
		return Run{}, fmt.Errorf("trigger source is required")
	}
	startedAt := input.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	run := Run{
		ID:            "run_" + uuid.NewString(),
		TriggerSource: source,
		RequestedBy:   strings.TrimSpace(input.RequestedBy),
		ChannelID:     strings.TrimSpace(input.ChannelID),
		Status:        RunStatusRunning,
		StartedAt:     time.Unix(startedAt.Unix(), 0).UTC(),
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO summary_runs (id, trigger_source, requested_by, channel_id, status, started_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.TriggerSource,
		run.RequestedBy,
		run.ChannelID,
		run.Status,
		run.StartedAt.Unix(),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert summary run: %w", err)
	}
	return run, nil
}

func (s *Store) FinishRun(ctx context.Context, input FinishRunInput) (Run, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return Run{}, ErrRunNotFound
	}
	status := strings.TrimSpace(input.Status)
	switch status {
	case RunStatusSucceeded, RunStatusFailed:
	default:
		return Run{}, fmt.Errorf("invalid final run status %q", input.Status)
	}
	finishedAt := input.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now().UTC()
	}
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE summary_runs
		 SET status = ?,
		     recent_count = ?,
		     older_count = ?,
		     chunk_count = ?,
		     summary_chars = ?,
		     error_message = ?,
		     finished_at_unix = ?
		 WHERE id = ? AND status = ?`,
		status,
		input.RecentCount,
		input.OlderCount,
		input.ChunkCount,
		input.SummaryChars,
		nullIfEmpty(strings.TrimSpace(input.ErrorMessage)),
		finishedAt.Unix(),
		id,
		RunStatusRunning,
	)
	if err != nil {
		return Run{}, fmt.Errorf("finish summary run: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err == nil && rowsAffected == 0 {
		return Run{}, ErrRunNotFound
	}
	return s.GetRun(ctx, id)
}

func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+runColumns+`
		 FROM summary_runs
		 WHERE id = ?`,
		strings.TrimSpace(id),
	)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrRunNotFound
		}
		return Run{}, fmt.Errorf("lookup summary run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit < 1 {
		limit = 20
	}
	if limit > 500 {
		limit = 500
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+runColumns+`
		 FROM summary_runs
		 ORDER BY started_at_unix DESC, rowid DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list summary runs: %w", err)
	}
	defer rows.Close()

	results := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan summary run: %w", err)
		}
		results = append(results, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary runs: %w", err)
	}
	return results, nil
}

const runColumns = `id, trigger_source, requested_by, channel_id, status,
		        recent_count, older_count, chunk_count, summary_chars,
		        COALESCE(error_message, ''), started_at_unix, COALESCE(finished_at_unix, 0)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var startedUnix int64
	var finishedUnix int64
	if err := row.Scan(
		&run.ID,
		&run.TriggerSource,
		&run.RequestedBy,
		&run.ChannelID,
		&run.Status,
		&run.RecentCount,
		&run.OlderCount,
		&run.ChunkCount,
		&run.SummaryChars,
		&run.ErrorMessage,
		&startedUnix,
		&finishedUnix,
	); err != nil {
		return Run{}, err
	}
	run.StartedAt = time.Unix(startedUnix, 0).UTC()
	if finishedUnix > 0 {
		run.FinishedAt = time.Unix(finishedUnix, 0).UTC()
	}
	return run, nil
}
