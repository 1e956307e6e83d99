package transcript

import (
	"strings"

	"github.com/dwizi/chronicler/internal/chat"
)

// ResolveMentions rewrites user and channel mention tokens into readable names.
// Tokens for entities missing from users or channels are left untouched.
func ResolveMentions(body string, users []chat.User, channels []chat.ChannelRef) string {
	if body == "" || !strings.Contains(body, "<") {
		return body
	}
	pairs := make([]string, 0, 4*len(users)+2*len(channels))
	for _, user := range users {
		id := strings.TrimSpace(user.ID)
		if id == "" {
			continue
		}
		name := "@" + user.DisplayName
		pairs = append(pairs, "<@"+id+">", name, "<@!"+id+">", name)
	}
	for _, channel := range channels {
		id := strings.TrimSpace(channel.ID)
		if id == "" {
			continue
		}
		pairs = append(pairs, "<#"+id+">", "#"+channel.Name)
	}
	if len(pairs) == 0 {
		return body
	}
	return strings.NewReplacer(pairs...).Replace(body)
}
