package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestRunLifecycle(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2024, time.May, 5, 18, 0, 0, 0, time.UTC)

	run, err := sqlStore.StartRun(ctx, StartRunInput{
		TriggerSource: "discord",
		RequestedBy:   "479212345",
		ChannelID:     "1175",
		StartedAt:     started,
	})
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	if run.ID == "" || run.Status != RunStatusRunning {
		t.Fatalf("unexpected run %+v", run)
	}

	finished, err := sqlStore.FinishRun(ctx, FinishRunInput{
		ID:           run.ID,
		Status:       RunStatusSucceeded,
		RecentCount:  12,
		OlderCount:   30,
		ChunkCount:   2,
		SummaryChars: 2400,
		FinishedAt:   started.Add(40 * time.Second),
	})
	if err != nil {
		t.Fatalf("finish run: %v", err)
	}
	if finished.Status != RunStatusSucceeded || finished.RecentCount != 12 || finished.ChunkCount != 2 {
		t.Fatalf("unexpected finished run %+v", finished)
	}
	if !finished.StartedAt.Equal(started) || !finished.FinishedAt.Equal(started.Add(40*time.Second)) {
		t.Fatalf("unexpected timestamps %v %v", finished.StartedAt, finished.FinishedAt)
	}
	if finished.RequestedBy != "479212345" || finished.ChannelID != "1175" {
		t.Fatalf("unexpected origin %+v", finished)
	}
}

func TestFinishRunTwiceFails(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()
	run, err := sqlStore.StartRun(ctx, StartRunInput{TriggerSource: "cli"})
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	if _, err := sqlStore.FinishRun(ctx, FinishRunInput{ID: run.ID, Status: RunStatusFailed, ErrorMessage: "oracle down"}); err != nil {
		t.Fatalf("finish run: %v", err)
	}
	if _, err := sqlStore.FinishRun(ctx, FinishRunInput{ID: run.ID, Status: RunStatusSucceeded}); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	stored, err := sqlStore.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if stored.Status != RunStatusFailed || stored.ErrorMessage != "oracle down" {
		t.Fatalf("unexpected stored run %+v", stored)
	}
}

func TestFinishRunValidation(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()
	if _, err := sqlStore.FinishRun(ctx, FinishRunInput{ID: "run_missing", Status: RunStatusSucceeded}); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := sqlStore.FinishRun(ctx, FinishRunInput{ID: "run_missing", Status: RunStatusRunning}); err == nil {
		t.Fatal("expected invalid status error")
	}
	if _, err := sqlStore.StartRun(ctx, StartRunInput{}); err == nil {
		t.Fatal("expected trigger source error")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := sqlStore.StartRun(ctx, StartRunInput{TriggerSource: "schedule", StartedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("start run %d: %v", i, err)
		}
	}
	runs, err := sqlStore.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if !runs[0].StartedAt.Equal(base.Add(2*time.Hour)) || !runs[1].StartedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("unexpected order %v %v", runs[0].StartedAt, runs[1].StartedAt)
	}
}

func TestGetRunNotFound(t *testing.T) {
	if _, err := newTestStore(t).GetRun(context.Background(), "run_nope"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "chronicler_test.sqlite")
	sqlStore, err := New(dbPath)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = sqlStore.Close() })
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	return sqlStore
}
