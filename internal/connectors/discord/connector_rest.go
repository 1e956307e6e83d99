package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dwizi/chronicler/internal/chat"
)

var channelMentionPattern = regexp.MustCompile(`<#(\d+)>`)

// Lookups that failed and member nicknames are trusted this long.
const lookupCacheTTL = 10 * time.Minute

type channelEntry struct {
	ref     chat.ChannelRef
	guildID string
	err     error
	expires time.Time
}

type memberEntry struct {
	nick    string
	expires time.Time
}

// Channel looks a channel up by id. Missing and forbidden channels map to chat.ErrChannelNotFound.
func (c *Connector) Channel(ctx context.Context, channelID string) (chat.ChannelRef, error) {
	entry, err := c.channel(ctx, channelID)
	if err != nil {
		return chat.ChannelRef{}, err
	}
	return entry.ref, nil
}

// channel caches found channels for the connector lifetime and missing ones for
// lookupCacheTTL. Transport errors are not cached.
func (c *Connector) channel(ctx context.Context, channelID string) (channelEntry, error) {
	channelID = strings.TrimSpace(channelID)
	c.channelMu.Lock()
	cached, ok := c.channels[channelID]
	c.channelMu.Unlock()
	if ok && (cached.expires.IsZero() || time.Now().Before(cached.expires)) {
		return cached, cached.err
	}

	var payload discordChannel
	if err := c.getJSON(ctx, "/channels/"+url.PathEscape(channelID), &payload); err != nil {
		if errors.Is(err, chat.ErrChannelNotFound) {
			c.storeChannel(channelID, channelEntry{err: err, expires: time.Now().Add(lookupCacheTTL)})
		}
		return channelEntry{}, err
	}
	entry := channelEntry{
		ref:     chat.ChannelRef{ID: payload.ID, Name: payload.Name},
		guildID: strings.TrimSpace(payload.GuildID),
	}
	if entry.ref.ID == "" {
		entry.ref.ID = channelID
	}
	c.storeChannel(channelID, entry)
	return entry, nil
}

func (c *Connector) storeChannel(channelID string, entry channelEntry) {
	c.channelMu.Lock()
	c.channels[channelID] = entry
	c.channelMu.Unlock()
}

// memberNick returns the guild nickname of a user, or "" when there is none or the
// user left the guild.
func (c *Connector) memberNick(ctx context.Context, guildID, userID string) string {
	if guildID == "" || userID == "" {
		return ""
	}
	key := guildID + "/" + userID
	c.memberMu.Lock()
	cached, ok := c.members[key]
	c.memberMu.Unlock()
	if ok && time.Now().Before(cached.expires) {
		return cached.nick
	}

	var payload discordMember
	path := "/guilds/" + url.PathEscape(guildID) + "/members/" + url.PathEscape(userID)
	if err := c.getJSON(ctx, path, &payload); err != nil {
		if !errors.Is(err, chat.ErrChannelNotFound) {
			c.logger.Debug("guild member not resolved", "guild_id", guildID, "user_id", userID, "error", err)
			return ""
		}
		payload = discordMember{}
	}
	c.memberMu.Lock()
	c.members[key] = memberEntry{nick: payload.Nick, expires: time.Now().Add(lookupCacheTTL)}
	c.memberMu.Unlock()
	return payload.Nick
}

// withMembers fills the guild member data that REST history payloads leave out, so
// nicknames win over account names as they do for gateway events.
func (c *Connector) withMembers(ctx context.Context, guildID string, raw discordMessage) discordMessage {
	if raw.GuildID != "" {
		guildID = raw.GuildID
	}
	if guildID == "" {
		return raw
	}
	if raw.Member == nil {
		raw.Member = &discordMember{Nick: c.memberNick(ctx, guildID, raw.Author.ID)}
	}
	for i := range raw.Mentions {
		if raw.Mentions[i].Member == nil {
			raw.Mentions[i].Member = &discordMember{Nick: c.memberNick(ctx, guildID, raw.Mentions[i].ID)}
		}
	}
	return raw
}

// History pages backwards through a channel, newest message first. Pages are only
// requested when the consumer keeps pulling.
func (c *Connector) History(ctx context.Context, channelID string) iter.Seq2[chat.Message, error] {
	channelID = strings.TrimSpace(channelID)
	return func(yield func(chat.Message, error) bool) {
		guildID := ""
		if entry, err := c.channel(ctx, channelID); err == nil {
			guildID = entry.guildID
		} else {
			c.logger.Debug("history channel not resolved", "channel_id", channelID, "error", err)
		}
		before := ""
		for {
			query := url.Values{}
			query.Set("limit", strconv.Itoa(historyPageSize))
			if before != "" {
				query.Set("before", before)
			}
			var page []discordMessage
			path := "/channels/" + url.PathEscape(channelID) + "/messages?" + query.Encode()
			if err := c.getJSON(ctx, path, &page); err != nil {
				yield(chat.Message{}, err)
				return
			}
			for _, raw := range page {
				if raw.ChannelID == "" {
					raw.ChannelID = channelID
				}
				raw = c.withMembers(ctx, guildID, raw)
				if !yield(raw.toChat(c.channelMentions(ctx, raw.Content)), nil) {
					return
				}
			}
			if len(page) < historyPageSize {
				return
			}
			before = page[len(page)-1].ID
		}
	}
}

// channelMentions resolves the <#id> tokens of a message body. Channels that cannot be
// looked up are left out and stay raw in the transcript.
func (c *Connector) channelMentions(ctx context.Context, content string) []chat.ChannelRef {
	matches := channelMentionPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	refs := make([]chat.ChannelRef, 0, len(matches))
	seen := map[string]struct{}{}
	for _, match := range matches {
		id := match[1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ref, err := c.Channel(ctx, id)
		if err != nil {
			c.logger.Debug("channel mention not resolved", "channel_id", id, "error", err)
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

// SendMessage posts one message. Callers keep text within the 2000 character limit.
func (c *Connector) SendMessage(ctx context.Context, channelID, text string) error {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return fmt.Errorf("discord channel id is required")
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("discord message text is empty")
	}
	payload, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		return err
	}
	res, err := c.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/messages", payload)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("discord send message failed: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

// Typing shows the typing indicator for about ten seconds.
func (c *Connector) Typing(ctx context.Context, channelID string) error {
	res, err := c.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(strings.TrimSpace(channelID))+"/typing", nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("discord typing failed: status=%d", res.StatusCode)
	}
	return nil
}

// keepTyping refreshes the typing indicator until the returned stop func is called.
func (c *Connector) keepTyping(ctx context.Context, channelID string) func() {
	typingCtx, cancel := context.WithCancel(ctx)
	refresh := func() {
		if err := c.Typing(typingCtx, channelID); err != nil && typingCtx.Err() == nil {
			c.logger.Warn("discord typing indicator failed", "channel_id", channelID, "error", err)
		}
	}
	refresh()
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(c.typingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-typingCtx.Done():
				return
			case <-ticker.C:
				refresh()
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (c *Connector) getJSON(ctx context.Context, path string, out any) error {
	res, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	switch {
	case res.StatusCode == http.StatusNotFound || res.StatusCode == http.StatusForbidden:
		return fmt.Errorf("discord %s: status=%d: %w", path, res.StatusCode, chat.ErrChannelNotFound)
	case res.StatusCode < 200 || res.StatusCode >= 300:
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("discord %s failed: status=%d body=%s", path, res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 8<<20)).Decode(out); err != nil {
		return fmt.Errorf("decode discord %s: %w", path, err)
	}
	return nil
}

// do sends one REST request and waits out a single 429 before retrying.
func (c *Connector) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, reader)
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Authorization", c.authorization())
		req.Header.Set("User-Agent", "chronicler/0.1")

		res, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if res.StatusCode != http.StatusTooManyRequests || attempt > 0 {
			return res, nil
		}
		wait := retryAfter(res.Header.Get("Retry-After"))
		res.Body.Close()
		c.logger.Warn("discord rate limited", "path", path, "retry_after", wait.String())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func retryAfter(header string) time.Duration {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(header), 64)
	if err != nil || seconds <= 0 {
		return time.Second
	}
	wait := time.Duration(seconds * float64(time.Second))
	if wait > 10*time.Second {
		wait = 10 * time.Second
	}
	return wait
}
