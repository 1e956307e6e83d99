package transcript

import (
	"fmt"

	"github.com/dwizi/chronicler/internal/calendar"
	"github.com/dwizi/chronicler/internal/chat"
)

const timeOfDayLayout = "15:04:05"

type Normalizer struct {
	calendar *calendar.Calendar
}

func NewNormalizer(cal *calendar.Calendar) *Normalizer {
	return &Normalizer{calendar: cal}
}

// Normalize renders one message as
// "<author> [An <year>, le <day> de <month> à <HH:MM:SS>]:\n<body>".
func (n *Normalizer) Normalize(message chat.Message) (string, error) {
	date, err := n.calendar.FromTime(message.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("normalize message %s: %w", message.ID, err)
	}
	body := ResolveMentions(message.Body, message.Mentions, message.ChannelMentions)
	return fmt.Sprintf(
		"%s [%s à %s]:\n%s",
		message.Author.DisplayName,
		date.String(),
		message.CreatedAt.UTC().Format(timeOfDayLayout),
		body,
	), nil
}

// NormalizeAll keeps input order and stops at the first failing message.
func (n *Normalizer) NormalizeAll(messages []chat.Message) ([]string, error) {
	lines := make([]string, 0, len(messages))
	for _, message := range messages {
		line, err := n.Normalize(message)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}
