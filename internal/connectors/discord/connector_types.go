package discord

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/dwizi/chronicler/internal/chat"
)

func discordDisplayName(author discordAuthor, member *discordMember) string {
	if member != nil && strings.TrimSpace(member.Nick) != "" {
		return member.Nick
	}
	if strings.TrimSpace(author.GlobalName) != "" {
		return author.GlobalName
	}
	if strings.TrimSpace(author.Username) != "" {
		return author.Username
	}
	return author.ID
}

type gatewayEnvelope struct {
	Op int             `json:"op"`
	T  string          `json:"t"`
	S  *int64          `json:"s"`
	D  json.RawMessage `json:"d"`
}

type discordHello struct {
	HeartbeatIntervalMS int64 `json:"heartbeat_interval"`
}

type discordReady struct {
	User discordAuthor `json:"user"`
}

// discordMessage is shared by the MESSAGE_CREATE event and the REST history payload.
type discordMessage struct {
	ID        string           `json:"id"`
	ChannelID string           `json:"channel_id"`
	GuildID   string           `json:"guild_id"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Author    discordAuthor    `json:"author"`
	Member    *discordMember   `json:"member"`
	Mentions  []discordMention `json:"mentions"`
}

type discordAuthor struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Bot        bool   `json:"bot"`
}

type discordMember struct {
	Nick string `json:"nick"`
}

type discordMention struct {
	discordAuthor
	Member *discordMember `json:"member"`
}

type discordChannel struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	GuildID string `json:"guild_id"`
}

func (m discordMessage) toChat(channels []chat.ChannelRef) chat.Message {
	mentions := make([]chat.User, 0, len(m.Mentions))
	for _, mention := range m.Mentions {
		mentions = append(mentions, chat.User{
			ID:          mention.ID,
			DisplayName: discordDisplayName(mention.discordAuthor, mention.Member),
		})
	}
	return chat.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Author: chat.User{
			ID:          m.Author.ID,
			DisplayName: discordDisplayName(m.Author, m.Member),
		},
		Body:            m.Content,
		CreatedAt:       m.Timestamp.UTC(),
		Mentions:        mentions,
		ChannelMentions: channels,
	}
}
