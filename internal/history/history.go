package history

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/dwizi/chronicler/internal/chat"
)

const defaultTimeout = 60 * time.Second

// Source is a chat backend able to describe a channel and page through its history,
// most recent message first.
type Source interface {
	Channel(ctx context.Context, channelID string) (chat.ChannelRef, error)
	History(ctx context.Context, channelID string) iter.Seq2[chat.Message, error]
}

type Result struct {
	Channel  chat.ChannelRef
	Messages []chat.Message
}

type Retriever struct {
	source  Source
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

func NewRetriever(source Source, timeout time.Duration, logger *slog.Logger) *Retriever {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		source:  source,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// FetchSince returns the messages of a channel posted within window, oldest first.
// Paging stops at the first message older than the window.
func (r *Retriever) FetchSince(ctx context.Context, channelID string, window time.Duration) (Result, error) {
	if r == nil || r.source == nil {
		return Result{}, fmt.Errorf("history source is not configured")
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return Result{}, fmt.Errorf("channel id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	channel, err := r.source.Channel(ctx, channelID)
	if err != nil {
		if errors.Is(err, chat.ErrChannelNotFound) {
			r.logger.Warn("channel not found, skipping", "channel_id", channelID)
		}
		return Result{}, fmt.Errorf("lookup channel %s: %w", channelID, err)
	}

	after := r.now().Add(-window)
	newestFirst := []chat.Message{}
	for message, err := range r.source.History(ctx, channelID) {
		if err != nil {
			if errors.Is(err, chat.ErrChannelNotFound) {
				r.logger.Warn("channel history not accessible, skipping", "channel_id", channelID)
			}
			return Result{}, fmt.Errorf("read history of %s: %w", channelID, err)
		}
		if message.CreatedAt.Before(after) {
			break
		}
		newestFirst = append(newestFirst, message)
	}

	messages := make([]chat.Message, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		messages = append(messages, newestFirst[i])
	}
	r.logger.Debug("history fetched", "channel_id", channelID, "messages", len(messages))
	return Result{Channel: channel, Messages: messages}, nil
}
