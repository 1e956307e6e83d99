package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dwizi/chronicler/internal/summarizer"
)

func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("chronicler runtime starting",
		"channels", strings.Join(r.cfg.SummaryChannelIDs, ","),
		"llm_provider", r.cfg.LLMProvider,
		"trigger", r.cfg.TriggerLiteral,
	)

	components := []component{
		r.discord,
		namedComponent{name: "scheduler", start: r.scheduler.Start},
		namedComponent{name: "prompt-watch", start: r.prompts.Watch},
	}
	group, groupCtx := errgroup.WithContext(ctx)
	for _, item := range components {
		current := item
		group.Go(func() error {
			return runMonitored(groupCtx, r.logger, current)
		})
	}
	return group.Wait()
}

// Summarize produces a summary without delivering it anywhere.
func (r *Runtime) Summarize(ctx context.Context) (summarizer.Result, error) {
	return r.summarizer.Summarize(ctx, summarizer.Request{})
}

// Post runs the full pipeline and delivers the summary into channelID.
func (r *Runtime) Post(ctx context.Context, channelID, requestedBy string) (summarizer.RunResult, error) {
	return r.summarizer.Run(ctx, summarizer.RunRequest{
		Source:      "cli",
		RequestedBy: requestedBy,
		ChannelID:   channelID,
	})
}

func (r *Runtime) Close() error {
	var errs []error
	for _, closeFn := range r.closers {
		if closeFn == nil {
			continue
		}
		errs = append(errs, closeFn())
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	return errors.Join(errs...)
}

func runMonitored(ctx context.Context, logger *slog.Logger, item component) error {
	if item == nil {
		return nil
	}
	name := strings.ToLower(strings.TrimSpace(item.Name()))
	logger.Debug("component starting", "component", name)
	err := item.Start(ctx)
	if err != nil && ctx.Err() == nil {
		logger.Error("component failed", "component", name, "error", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	logger.Debug("component stopped", "component", name)
	return nil
}
