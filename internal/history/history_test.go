package history

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"testing"
	"time"

	"github.com/dwizi/chronicler/internal/chat"
)

type fakeSource struct {
	channel    chat.ChannelRef
	channelErr error
	messages   []chat.Message
	historyErr error
	pulled     int
}

func (f *fakeSource) Channel(ctx context.Context, channelID string) (chat.ChannelRef, error) {
	if f.channelErr != nil {
		return chat.ChannelRef{}, f.channelErr
	}
	return f.channel, nil
}

func (f *fakeSource) History(ctx context.Context, channelID string) iter.Seq2[chat.Message, error] {
	return func(yield func(chat.Message, error) bool) {
		if f.historyErr != nil {
			yield(chat.Message{}, f.historyErr)
			return
		}
		for _, message := range f.messages {
			f.pulled++
			if !yield(message, nil) {
				return
			}
		}
	}
}

func newTestRetriever(source Source, now time.Time) *Retriever {
	retriever := NewRetriever(source, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	retriever.now = func() time.Time { return now }
	return retriever
}

func TestFetchSinceStopsAtWindowAndReverses(t *testing.T) {
	now := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	source := &fakeSource{
		channel: chat.ChannelRef{ID: "c1", Name: "géopolitique"},
		messages: []chat.Message{
			{ID: "m3", CreatedAt: now.Add(-time.Hour)},
			{ID: "m2", CreatedAt: now.Add(-10 * time.Hour)},
			{ID: "m1", CreatedAt: now.Add(-30 * time.Hour)},
			{ID: "m0", CreatedAt: now.Add(-31 * time.Hour)},
		},
	}
	result, err := newTestRetriever(source, now).FetchSince(context.Background(), "c1", 24*time.Hour)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if result.Channel.Name != "géopolitique" {
		t.Fatalf("unexpected channel %+v", result.Channel)
	}
	if len(result.Messages) != 2 || result.Messages[0].ID != "m2" || result.Messages[1].ID != "m3" {
		t.Fatalf("unexpected messages %+v", result.Messages)
	}
	if source.pulled != 3 {
		t.Fatalf("expected paging to stop after the first old message, pulled %d", source.pulled)
	}
}

func TestFetchSinceEmptyChannel(t *testing.T) {
	now := time.Now()
	result, err := newTestRetriever(&fakeSource{channel: chat.ChannelRef{ID: "c1"}}, now).FetchSince(context.Background(), "c1", time.Hour)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if result.Messages == nil || len(result.Messages) != 0 {
		t.Fatalf("expected empty non-nil messages, got %#v", result.Messages)
	}
}

func TestFetchSinceChannelNotFound(t *testing.T) {
	source := &fakeSource{channelErr: chat.ErrChannelNotFound}
	result, err := newTestRetriever(source, time.Now()).FetchSince(context.Background(), "missing", time.Hour)
	if !errors.Is(err, chat.ErrChannelNotFound) {
		t.Fatalf("expected ErrChannelNotFound, got %v", err)
	}
	if len(result.Messages) != 0 || result.Channel.ID != "" {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestFetchSinceHistoryError(t *testing.T) {
	boom := errors.New("boom")
	source := &fakeSource{channel: chat.ChannelRef{ID: "c1"}, historyErr: boom}
	_, err := newTestRetriever(source, time.Now()).FetchSince(context.Background(), "c1", time.Hour)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped history error, got %v", err)
	}
}

func TestFetchSinceRequiresChannelID(t *testing.T) {
	_, err := newTestRetriever(&fakeSource{}, time.Now()).FetchSince(context.Background(), "  ", time.Hour)
	if err == nil {
		t.Fatal("expected error for blank channel id")
	}
}
