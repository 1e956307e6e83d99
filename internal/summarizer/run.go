package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dwizi/chronicler/internal/archive"
	"github.com/dwizi/chronicler/internal/dispatch"
	"github.com/dwizi/chronicler/internal/store"
)

type RunRequest struct {
	// Source names what started the run: discord, schedule or cli.
	Source      string
	RequestedBy string
	ChannelID   string
}

type RunResult struct {
	RunID       string
	Summary     string
	Counts      Counts
	Delivery    dispatch.Report
	ArchivePath string
}

// Run summarizes and delivers the reply into req.ChannelID. When summarizing fails the
// error text is delivered instead, prefixed with "Error: ".
func (s *Service) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if s.sender == nil {
		return RunResult{}, fmt.Errorf("summarizer: no sender configured")
	}
	channelID := strings.TrimSpace(req.ChannelID)
	if channelID == "" {
		return RunResult{}, fmt.Errorf("summarizer: target channel is required")
	}
	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = "unknown"
	}

	out := RunResult{}
	startedAt := s.now().UTC()
	if s.ledger != nil {
		run, err := s.ledger.StartRun(ctx, store.StartRunInput{
			TriggerSource: source,
			RequestedBy:   req.RequestedBy,
			ChannelID:     channelID,
			StartedAt:     startedAt,
		})
		if err != nil {
			s.logger.Error("record run start failed", "error", err)
		} else {
			out.RunID = run.ID
		}
	}

	result, summarizeErr := s.Summarize(ctx, Request{})
	out.Counts = result.Counts

	text := result.Summary
	if summarizeErr != nil {
		s.logger.Error("summary failed", "error", summarizeErr, "run_id", out.RunID)
		text = "Error: " + summarizeErr.Error()
	}
	out.Summary = result.Summary
	out.Delivery = dispatch.Deliver(ctx, s.sender, channelID, text, s.cfg.ChunkSize)
	deliveryErr := out.Delivery.Err()
	if deliveryErr != nil {
		s.logger.Error("summary delivery incomplete", "error", deliveryErr, "run_id", out.RunID, "sent", out.Delivery.Sent(), "total", out.Delivery.Total)
	}

	if summarizeErr == nil && deliveryErr == nil && s.archive != nil {
		path, err := s.archive.Append(archive.Entry{
			RunID:     out.RunID,
			Source:    source,
			Summary:   result.Summary,
			Timestamp: startedAt,
		})
		if err != nil {
			s.logger.Error("archive summary failed", "error", err, "run_id", out.RunID)
		}
		out.ArchivePath = path
	}

	runErr := errors.Join(summarizeErr, deliveryErr)
	s.finishRun(ctx, out, runErr)
	return out, runErr
}

func (s *Service) finishRun(ctx context.Context, out RunResult, runErr error) {
	if s.ledger == nil || out.RunID == "" {
		return
	}
	status := store.RunStatusSucceeded
	message := ""
	if runErr != nil {
		status = store.RunStatusFailed
		message = runErr.Error()
	}
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := s.ledger.FinishRun(finishCtx, store.FinishRunInput{
		ID:           out.RunID,
		Status:       status,
		RecentCount:  out.Counts.Recent,
		OlderCount:   out.Counts.Older,
		ChunkCount:   out.Delivery.Sent(),
		SummaryChars: len([]rune(out.Summary)),
		ErrorMessage: message,
		FinishedAt:   s.now().UTC(),
	}); err != nil {
		s.logger.Error("record run finish failed", "error", err, "run_id", out.RunID)
	}
}
