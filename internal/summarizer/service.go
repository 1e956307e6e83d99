// Package summarizer runs the summary pipeline: fetch channel history, split it by age,
// normalize it into a transcript, ask the oracle, and deliver the reply.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dwizi/chronicler/internal/archive"
	"github.com/dwizi/chronicler/internal/calendar"
	"github.com/dwizi/chronicler/internal/chat"
	"github.com/dwizi/chronicler/internal/dispatch"
	"github.com/dwizi/chronicler/internal/history"
	"github.com/dwizi/chronicler/internal/llm"
	"github.com/dwizi/chronicler/internal/prompt"
	"github.com/dwizi/chronicler/internal/store"
	"github.com/dwizi/chronicler/internal/transcript"
)

const DefaultTrigger = "Procède."

var ErrNoChannels = errors.New("no summarized channel is reachable")

type Config struct {
	ChannelIDs    []string
	SummaryWindow time.Duration
	ContextWindow time.Duration
	Trigger       string
	OracleTimeout time.Duration
	ChunkSize     int
	Options       llm.Options
}

type Retriever interface {
	FetchSince(ctx context.Context, channelID string, window time.Duration) (history.Result, error)
}

type PromptBuilder interface {
	Build(data prompt.Data) (string, error)
}

type Ledger interface {
	StartRun(ctx context.Context, input store.StartRunInput) (store.Run, error)
	FinishRun(ctx context.Context, input store.FinishRunInput) (store.Run, error)
}

type Archiver interface {
	Append(entry archive.Entry) (string, error)
}

type Service struct {
	cfg        Config
	retriever  Retriever
	normalizer *transcript.Normalizer
	months     []string
	prompts    PromptBuilder
	oracle     llm.Oracle
	sender     dispatch.Sender
	ledger     Ledger
	archive    Archiver
	logger     *slog.Logger
	now        func() time.Time
}

type Dependencies struct {
	Retriever Retriever
	Calendar  *calendar.Calendar
	Prompts   PromptBuilder
	Oracle    llm.Oracle
	Sender    dispatch.Sender
	// Ledger and Archive are optional.
	Ledger  Ledger
	Archive Archiver
}

func New(cfg Config, deps Dependencies, logger *slog.Logger) (*Service, error) {
	if deps.Retriever == nil || deps.Calendar == nil || deps.Prompts == nil || deps.Oracle == nil {
		return nil, fmt.Errorf("summarizer: retriever, calendar, prompts and oracle are required")
	}
	if len(cfg.ChannelIDs) == 0 {
		return nil, fmt.Errorf("summarizer: at least one channel is required")
	}
	if cfg.SummaryWindow <= 0 {
		cfg.SummaryWindow = 168 * time.Hour
	}
	if cfg.ContextWindow < cfg.SummaryWindow {
		cfg.ContextWindow = 2 * cfg.SummaryWindow
	}
	if strings.TrimSpace(cfg.Trigger) == "" {
		cfg.Trigger = DefaultTrigger
	}
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = 5 * time.Minute
	}
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = dispatch.DefaultChunkSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:        cfg,
		retriever:  deps.Retriever,
		normalizer: transcript.NewNormalizer(deps.Calendar),
		months:     deps.Calendar.Months(),
		prompts:    deps.Prompts,
		oracle:     deps.Oracle,
		sender:     deps.Sender,
		ledger:     deps.Ledger,
		archive:    deps.Archive,
		logger:     logger,
		now:        time.Now,
	}, nil
}

type Request struct {
	// Trigger overrides the oracle input, "Procède." by default.
	Trigger string
}

type Counts struct {
	Recent int
	Older  int
}

type Result struct {
	Summary           string
	SystemInstruction string
	Transcript        transcript.Transcript
	Counts            Counts
	MissingChannels   []string
}

// Summarize builds the transcript of the configured channels and returns the oracle reply.
// Channels that cannot be found are skipped and listed in MissingChannels.
func (s *Service) Summarize(ctx context.Context, req Request) (Result, error) {
	now := s.now()
	result := Result{MissingChannels: []string{}}

	for _, channelID := range s.cfg.ChannelIDs {
		fetched, err := s.retriever.FetchSince(ctx, channelID, s.cfg.ContextWindow)
		if err != nil {
			if errors.Is(err, chat.ErrChannelNotFound) {
				result.MissingChannels = append(result.MissingChannels, channelID)
				continue
			}
			return result, fmt.Errorf("fetch history of %s: %w", channelID, err)
		}
		partition := transcript.Split(fetched.Messages, s.cfg.SummaryWindow, now)
		recent, err := s.normalizer.NormalizeAll(partition.Recent)
		if err != nil {
			return result, err
		}
		older, err := s.normalizer.NormalizeAll(partition.Older)
		if err != nil {
			return result, err
		}
		result.Transcript.Sections = append(result.Transcript.Sections, transcript.Section{
			ChannelID:   channelID,
			ChannelName: fetched.Channel.Name,
			Recent:      recent,
			Older:       older,
		})
	}
	if len(result.Transcript.Sections) == 0 {
		return result, fmt.Errorf("%w: %s", ErrNoChannels, strings.Join(result.MissingChannels, ", "))
	}
	result.Counts = Counts{
		Recent: result.Transcript.RecentCount(),
		Older:  result.Transcript.OlderCount(),
	}

	instruction, err := s.prompts.Build(prompt.Data{
		SummaryHours: int(s.cfg.SummaryWindow.Hours()),
		ContextHours: int(s.cfg.ContextWindow.Hours()),
		Months:       s.months,
		Context:      result.Transcript.ContextText(),
		Recent:       result.Transcript.RecentText(),
	})
	if err != nil {
		return result, err
	}
	result.SystemInstruction = instruction

	input := strings.TrimSpace(req.Trigger)
	if input == "" {
		input = s.cfg.Trigger
	}
	s.logger.Info("calling summarization oracle",
		"recent_messages", result.Counts.Recent,
		"context_messages", result.Counts.Older,
		"missing_channels", len(result.MissingChannels),
		"instruction_chars", len(instruction),
	)
	oracleCtx, cancel := context.WithTimeout(ctx, s.cfg.OracleTimeout)
	defer cancel()
	summary, err := s.oracle.Generate(oracleCtx, llm.Prompt{
		Input:             input,
		SystemInstruction: instruction,
		Options:           s.cfg.Options,
	})
	if err != nil {
		return result, fmt.Errorf("%w: %w", llm.ErrOracle, err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return result, fmt.Errorf("%w: empty summary", llm.ErrOracle)
	}
	result.Summary = summary
	return result, nil
}
