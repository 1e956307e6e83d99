package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dwizi/chronicler/internal/chat"
	"github.com/dwizi/chronicler/internal/summarizer"
	"github.com/dwizi/chronicler/internal/trigger"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []summarizer.RunRequest
}

func (f *fakeRunner) Run(ctx context.Context, input summarizer.RunRequest) (summarizer.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, input)
	return summarizer.RunResult{RunID: "run_1"}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConnector(serverURL string, opts ...Option) *Connector {
	policy := trigger.New(trigger.Config{
		AllowedUserIDs:    trigger.IDSet([]string{"479"}),
		AllowedChannelIDs: trigger.IDSet([]string{"1175"}),
	})
	return New("token", serverURL, "", policy, quietLogger(), opts...)
}

func TestChannelLookupIsCached(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls++
		if req.URL.Path != "/channels/718" {
			t.Errorf("unexpected path %s", req.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "718", "name": "géopolitique"})
	}))
	defer server.Close()

	connector := newTestConnector(server.URL)
	for i := 0; i < 2; i++ {
		ref, err := connector.Channel(context.Background(), "718")
		if err != nil {
			t.Fatalf("channel lookup: %v", err)
		}
		if ref.Name != "géopolitique" {
			t.Fatalf("unexpected channel %+v", ref)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single request, got %d", calls)
	}
}

func TestChannelLookupNotFound(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusForbidden} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			http.Error(w, `{"message":"Unknown Channel"}`, status)
		}))
		_, err := newTestConnector(server.URL).Channel(context.Background(), "1")
		server.Close()
		if !errors.Is(err, chat.ErrChannelNotFound) {
			t.Fatalf("status %d: expected ErrChannelNotFound, got %v", status, err)
		}
	}
}

func historyServer(t *testing.T, total int, requests *[]string) *httptest.Server {
	t.Helper()
	base := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, "/channels/") && !strings.HasSuffix(req.URL.Path, "/messages") {
			id := strings.TrimPrefix(req.URL.Path, "/channels/")
			name := "général"
			if id == "900" {
				name = "annonces"
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "name": name})
			return
		}
		*requests = append(*requests, req.URL.RawQuery)
		if req.URL.Query().Get("limit") != "100" {
			t.Errorf("unexpected limit %s", req.URL.Query().Get("limit"))
		}
		start := total
		if before := req.URL.Query().Get("before"); before != "" {
			start, _ = strconv.Atoi(before)
		}
		page := []map[string]any{}
		for id := start - 1; id >= 0 && len(page) < 100; id-- {
			page = append(page, map[string]any{
				"id":         strconv.Itoa(id),
				"channel_id": "718",
				"content":    fmt.Sprintf("message %d <#900>", id),
				"timestamp":  base.Add(time.Duration(id) * time.Minute).Format(time.RFC3339Nano),
				"author":     map[string]any{"id": "42", "username": "ormick", "global_name": "Ormick"},
			})
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
}

func TestHistoryPagesBackwards(t *testing.T) {
	var requests []string
	server := historyServer(t, 150, &requests)
	defer server.Close()

	connector := newTestConnector(server.URL)
	var ids []string
	for message, err := range connector.History(context.Background(), "718") {
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		ids = append(ids, message.ID)
	}
	if len(ids) != 150 || ids[0] != "149" || ids[149] != "0" {
		t.Fatalf("unexpected ids: %d first=%s", len(ids), ids[0])
	}
	if len(requests) != 2 || !strings.Contains(requests[1], "before=50") {
		t.Fatalf("unexpected requests %v", requests)
	}
}

func TestHistoryIsLazy(t *testing.T) {
	var requests []string
	server := historyServer(t, 500, &requests)
	defer server.Close()

	connector := newTestConnector(server.URL)
	count := 0
	for _, err := range connector.History(context.Background(), "718") {
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		count++
		if count == 10 {
			break
		}
	}
	if len(requests) != 1 {
		t.Fatalf("expected a single page request, got %d", len(requests))
	}
}

func TestHistoryResolvesChannelMentionsAndNames(t *testing.T) {
	var requests []string
	server := historyServer(t, 1, &requests)
	defer server.Close()

	for message, err := range newTestConnector(server.URL).History(context.Background(), "718") {
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if message.Author.DisplayName != "Ormick" {
			t.Fatalf("unexpected author %+v", message.Author)
		}
		if len(message.ChannelMentions) != 1 || message.ChannelMentions[0].Name != "annonces" {
			t.Fatalf("unexpected channel mentions %+v", message.ChannelMentions)
		}
		if !message.CreatedAt.Equal(time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)) {
			t.Fatalf("unexpected timestamp %v", message.CreatedAt)
		}
	}
}

func TestHistoryUsesGuildNicknames(t *testing.T) {
	memberCalls := map[string]int{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch {
		case req.URL.Path == "/channels/718":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "718", "name": "général", "guild_id": "55"})
		case strings.HasPrefix(req.URL.Path, "/guilds/55/members/"):
			userID := strings.TrimPrefix(req.URL.Path, "/guilds/55/members/")
			memberCalls[userID]++
			if userID != "42" {
				http.Error(w, `{"message":"Unknown Member"}`, http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"nick": "Kætern d'Ange", "user": map[string]any{"id": "42"}})
		case req.URL.Path == "/channels/718/messages":
			page := []map[string]any{}
			for _, id := range []string{"2", "1"} {
				page = append(page, map[string]any{
					"id":         id,
					"channel_id": "718",
					"content":    "<@77> et <@42> au conseil",
					"timestamp":  "2024-05-01T12:00:00Z",
					"author":     map[string]any{"id": "42", "username": "ormick", "global_name": "Ormick"},
					"mentions": []map[string]any{
						{"id": "77", "username": "friolon", "global_name": "Friolon"},
						{"id": "42", "username": "ormick", "global_name": "Ormick"},
					},
				})
			}
			_ = json.NewEncoder(w).Encode(page)
		default:
			t.Errorf("unexpected path %s", req.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	count := 0
	for message, err := range newTestConnector(server.URL).History(context.Background(), "718") {
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		count++
		if message.Author.DisplayName != "Kætern d'Ange" {
			t.Fatalf("expected author nickname, got %+v", message.Author)
		}
		if len(message.Mentions) != 2 || message.Mentions[0].DisplayName != "Friolon" || message.Mentions[1].DisplayName != "Kætern d'Ange" {
			t.Fatalf("unexpected mentions %+v", message.Mentions)
		}
	}
	if count != 2 {
		t.Fatalf("expected 2 messages, got %d", count)
	}
	if memberCalls["42"] != 1 || memberCalls["77"] != 1 {
		t.Fatalf("expected one member lookup per user, got %v", memberCalls)
	}
}

func TestMissingChannelMentionIsLookedUpOnce(t *testing.T) {
	var missingCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/channels/718":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "718", "name": "général"})
		case "/channels/31337":
			missingCalls++
			http.Error(w, `{"message":"Unknown Channel"}`, http.StatusNotFound)
		case "/channels/718/messages":
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"id": "2", "content": "voir <#31337>", "author": map[string]any{"id": "42"}},
				{"id": "1", "content": "aussi <#31337>", "author": map[string]any{"id": "42"}},
			})
		default:
			t.Errorf("unexpected path %s", req.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	connector := newTestConnector(server.URL)
	for message, err := range connector.History(context.Background(), "718") {
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(message.ChannelMentions) != 0 {
			t.Fatalf("expected unresolved mention to be left out, got %+v", message.ChannelMentions)
		}
	}
	if _, err := connector.Channel(context.Background(), "31337"); !errors.Is(err, chat.ErrChannelNotFound) {
		t.Fatalf("expected cached ErrChannelNotFound, got %v", err)
	}
	if missingCalls != 1 {
		t.Fatalf("expected a single lookup of the missing channel, got %d", missingCalls)
	}
}

func TestDisplayNamePrefersNick(t *testing.T) {
	author := discordAuthor{ID: "1", Username: "user", GlobalName: "Global"}
	cases := []struct {
		author discordAuthor
		member *discordMember
		want   string
	}{
		{author, &discordMember{Nick: "Kætern d'Ange"}, "Kætern d'Ange"},
		{author, &discordMember{}, "Global"},
		{discordAuthor{ID: "1", Username: "user"}, nil, "user"},
		{discordAuthor{ID: "1"}, nil, "1"},
	}
	for _, tc := range cases {
		if got := discordDisplayName(tc.author, tc.member); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
}

func TestSendMessageAuthorization(t *testing.T) {
	cases := []struct {
		name      string
		userToken bool
		want      string
	}{
		{"bot token", false, "Bot token"},
		{"user token", true, "token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var auth, body string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				auth = req.Header.Get("Authorization")
				data, _ := io.ReadAll(req.Body)
				body = string(data)
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"id":"1"}`))
			}))
			defer server.Close()

			connector := newTestConnector(server.URL, WithUserToken(tc.userToken))
			if err := connector.SendMessage(context.Background(), "1175", "* 6 gaiarkhè, NONE"); err != nil {
				t.Fatalf("send: %v", err)
			}
			if auth != tc.want {
				t.Fatalf("expected auth %q, got %q", tc.want, auth)
			}
			if !strings.Contains(body, "6 gaiarkh") {
				t.Fatalf("unexpected body %s", body)
			}
		})
	}
}

func TestSendMessageRetriesAfterRateLimit(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0.01")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := newTestConnector(server.URL).SendMessage(context.Background(), "1175", "x"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected a retry, got %d calls", calls)
	}
}

func TestSendMessageRejectsBlankText(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := newTestConnector(server.URL).SendMessage(context.Background(), "1175", " \n\t"); err == nil {
		t.Fatal("expected an error for blank text")
	}
	if calls != 0 {
		t.Fatalf("expected no request, got %d", calls)
	}
}

func TestHandleMessageCreateStartsRun(t *testing.T) {
	var mu sync.Mutex
	var typing int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasSuffix(req.URL.Path, "/typing") {
			mu.Lock()
			typing++
			mu.Unlock()
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	runner := &fakeRunner{}
	connector := newTestConnector(server.URL)
	connector.SetRunner(runner)
	connector.handleMessageCreate(context.Background(), discordMessage{
		ID:        "m1",
		ChannelID: "1175",
		Content:   "$summarize",
		Author:    discordAuthor{ID: "479", Username: "controller"},
	})
	connector.runs.Wait()

	if len(runner.calls) != 1 {
		t.Fatalf("expected one run, got %d", len(runner.calls))
	}
	call := runner.calls[0]
	if call.Source != "discord" || call.ChannelID != "1175" || call.RequestedBy != "479" {
		t.Fatalf("unexpected run request %+v", call)
	}
	mu.Lock()
	defer mu.Unlock()
	if typing == 0 {
		t.Fatal("expected a typing indicator")
	}
}

func TestHandleMessageCreateIgnoresOthers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	runner := &fakeRunner{}
	connector := newTestConnector(server.URL)
	connector.SetRunner(runner)
	connector.setSelfID("999")

	for _, message := range []discordMessage{
		{ChannelID: "1175", Content: "bonjour", Author: discordAuthor{ID: "479"}},
		{ChannelID: "1175", Content: "$summarize", Author: discordAuthor{ID: "12"}},
		{ChannelID: "1", Content: "$summarize", Author: discordAuthor{ID: "479"}},
		{ChannelID: "1175", Content: "$summarize", Author: discordAuthor{ID: "555", Bot: true}},
		{ChannelID: "1175", Content: "$summarize", Author: discordAuthor{ID: "999", Bot: true}},
	} {
		connector.handleMessageCreate(context.Background(), message)
	}
	connector.runs.Wait()
	if len(runner.calls) != 0 {
		t.Fatalf("expected no runs, got %+v", runner.calls)
	}
}

func TestStartWithoutTokenWaitsForCancel(t *testing.T) {
	connector := New("", "", "", nil, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- connector.Start(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("connector did not stop")
	}
}
