// Package scheduler posts a summary on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dwizi/chronicler/internal/summarizer"
)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

const defaultTimezone = "UTC"

type Runner interface {
	Run(ctx context.Context, input summarizer.RunRequest) (summarizer.RunResult, error)
}

type Config struct {
	Expression string
	Timezone   string
	ChannelID  string
}

type Service struct {
	expression string
	channelID  string
	location   *time.Location
	schedule   cron.Schedule
	runner     Runner
	logger     *slog.Logger
}

// New validates the schedule. An empty expression or channel disables the service.
func New(cfg Config, runner Runner, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	service := &Service{
		expression: normalizeCronExpr(cfg.Expression),
		channelID:  strings.TrimSpace(cfg.ChannelID),
		runner:     runner,
		logger:     logger,
	}
	timezone := strings.TrimSpace(cfg.Timezone)
	if timezone == "" {
		timezone = defaultTimezone
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	service.location = location
	if service.expression == "" {
		return service, nil
	}
	schedule, err := cronParser.Parse(service.expression)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression: %w", err)
	}
	service.schedule = schedule
	return service, nil
}

func (s *Service) Enabled() bool {
	return s.schedule != nil && s.channelID != "" && s.runner != nil
}

// Next returns the next firing time after from, or the zero time when disabled.
func (s *Service) Next(from time.Time) time.Time {
	if s.schedule == nil {
		return time.Time{}
	}
	return s.schedule.Next(from.In(s.location)).UTC()
}

func (s *Service) Start(ctx context.Context) error {
	if !s.Enabled() {
		s.logger.Info("scheduler disabled", "expression", s.expression, "channel_id", s.channelID)
		<-ctx.Done()
		return nil
	}
	runner := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(s.location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	runner.Schedule(s.schedule, cron.FuncJob(func() { s.fire(ctx) }))
	runner.Start()
	s.logger.Info("scheduler started",
		"expression", s.expression,
		"timezone", s.location.String(),
		"channel_id", s.channelID,
		"next_run", s.Next(time.Now()).Format(time.RFC3339),
	)

	<-ctx.Done()
	<-runner.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Service) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	result, err := s.runner.Run(ctx, summarizer.RunRequest{
		Source:    "schedule",
		ChannelID: s.channelID,
	})
	if err != nil {
		s.logger.Error("scheduled summary failed", "error", err, "run_id", result.RunID)
		return
	}
	s.logger.Info("scheduled summary delivered", "run_id", result.RunID, "chunks", result.Delivery.Sent())
}

func normalizeCronExpr(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.Join(strings.Fields(trimmed), " ")
}
