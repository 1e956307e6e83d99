package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dwizi/chronicler/internal/archive"
	"github.com/dwizi/chronicler/internal/calendar"
	"github.com/dwizi/chronicler/internal/config"
	"github.com/dwizi/chronicler/internal/connectors/discord"
	"github.com/dwizi/chronicler/internal/history"
	"github.com/dwizi/chronicler/internal/llm"
	"github.com/dwizi/chronicler/internal/llm/anthropic"
	"github.com/dwizi/chronicler/internal/llm/gemini"
	"github.com/dwizi/chronicler/internal/llm/openai"
	"github.com/dwizi/chronicler/internal/prompt"
	"github.com/dwizi/chronicler/internal/scheduler"
	"github.com/dwizi/chronicler/internal/store"
	"github.com/dwizi/chronicler/internal/summarizer"
	"github.com/dwizi/chronicler/internal/trigger"
)

const retryInterval = 2 * time.Second

func New(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if strings.TrimSpace(cfg.ArchiveDir) != "" {
		if err := os.MkdirAll(cfg.ArchiveDir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
	}

	cal, err := calendar.New(calendar.Config{Epoch: cfg.CalendarEpoch, Months: cfg.CalendarMonths})
	if err != nil {
		return nil, err
	}
	prompts, err := prompt.New(cfg.PromptFile, logger.With("component", "prompt"))
	if err != nil {
		return nil, err
	}
	oracle, closeOracle, err := newOracle(cfg, logger.With("component", "llm-"+cfg.LLMProvider))
	if err != nil {
		return nil, err
	}

	sqlStore, err := store.New(cfg.DBPath)
	if err != nil {
		closeOracle()
		return nil, err
	}
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		sqlStore.Close()
		closeOracle()
		return nil, err
	}

	policy := trigger.New(trigger.Config{
		Literal:           cfg.TriggerLiteral,
		AllowedUserIDs:    trigger.IDSet(cfg.ControllerUserIDs),
		AllowedChannelIDs: trigger.IDSet(cfg.ControllerChannels),
		AllowSelf:         cfg.AllowSelfTrigger,
		Cooldown:          time.Duration(cfg.TriggerCooldownSec) * time.Second,
		CooldownMessage:   cfg.TriggerCooldownText,
	})
	connector := discord.New(
		cfg.DiscordToken,
		cfg.DiscordAPI,
		cfg.DiscordWSURL,
		policy,
		logger.With("connector", "discord"),
		discord.WithUserToken(cfg.DiscordUserToken),
	)

	service, err := summarizer.New(summarizer.Config{
		ChannelIDs:    cfg.SummaryChannelIDs,
		SummaryWindow: time.Duration(cfg.SummaryHours) * time.Hour,
		ContextWindow: time.Duration(cfg.ContextHours) * time.Hour,
		Trigger:       cfg.OracleTrigger,
		OracleTimeout: time.Duration(cfg.LLMTimeoutSec) * time.Second,
		ChunkSize:     cfg.ChunkSize,
		Options: llm.Options{
			Model:           cfg.LLMModel,
			Temperature:     llm.Float(cfg.LLMTemperature),
			MaxOutputTokens: cfg.LLMMaxOutputTokens,
		},
	}, summarizer.Dependencies{
		Retriever: history.NewRetriever(connector, time.Duration(cfg.HistoryTimeoutSec)*time.Second, logger.With("component", "history")),
		Calendar:  cal,
		Prompts:   prompts,
		Oracle:    oracle,
		Sender:    connector,
		Ledger:    sqlStore,
		Archive:   archive.New(cfg.ArchiveDir, cal),
	}, logger.With("component", "summarizer"))
	if err != nil {
		sqlStore.Close()
		closeOracle()
		return nil, err
	}
	connector.SetRunner(service)

	schedulerService, err := scheduler.New(scheduler.Config{
		Expression: cfg.ScheduleExpression,
		Timezone:   cfg.ScheduleTimezone,
		ChannelID:  cfg.ScheduleChannelID,
	}, service, logger.With("component", "scheduler"))
	if err != nil {
		sqlStore.Close()
		closeOracle()
		return nil, err
	}

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		store:      sqlStore,
		discord:    connector,
		summarizer: service,
		scheduler:  schedulerService,
		prompts:    prompts,
		closers:    []func() error{closeOracle},
	}, nil
}

// newOracle builds the configured provider client behind the retry policy. The returned
// close func releases provider resources and is never nil.
func newOracle(cfg config.Config, logger *slog.Logger) (llm.Oracle, func() error, error) {
	timeout := time.Duration(cfg.LLMTimeoutSec) * time.Second
	noop := func() error { return nil }

	var (
		base    llm.Oracle
		closeFn = noop
	)
	switch strings.ToLower(strings.TrimSpace(cfg.LLMProvider)) {
	case "", "gemini":
		client := gemini.New(gemini.Config{
			APIKey:          cfg.LLMAPIKey,
			Model:           cfg.LLMModel,
			Temperature:     llm.Float(cfg.LLMTemperature),
			MaxOutputTokens: cfg.LLMMaxOutputTokens,
			Timeout:         timeout,
		}, logger)
		base = client
		closeFn = client.Close
	case "openai":
		base = openai.New(openai.Config{
			APIKey:          cfg.LLMAPIKey,
			BaseURL:         cfg.LLMBaseURL,
			Model:           cfg.LLMModel,
			Timeout:         timeout,
			Temperature:     llm.Float(cfg.LLMTemperature),
			MaxOutputTokens: cfg.LLMMaxOutputTokens,
		}, logger)
	case "anthropic":
		base = anthropic.New(anthropic.Config{
			APIKey:          cfg.LLMAPIKey,
			BaseURL:         cfg.LLMBaseURL,
			Model:           cfg.LLMModel,
			Timeout:         timeout,
			Temperature:     llm.Float(cfg.LLMTemperature),
			MaxOutputTokens: cfg.LLMMaxOutputTokens,
		}, logger)
	default:
		return nil, noop, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
	return llm.WithRetry(base, cfg.LLMRetries, retryInterval, logger), closeFn, nil
}
