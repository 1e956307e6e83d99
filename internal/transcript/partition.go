package transcript

import (
	"time"

	"github.com/dwizi/chronicler/internal/chat"
)

type Partition struct {
	Recent []chat.Message
	Older  []chat.Message
}

// Split separates messages newer than now-cutoff from the rest. A message exactly on
// the threshold is older. Input order is kept in both halves.
func Split(messages []chat.Message, cutoff time.Duration, now time.Time) Partition {
	threshold := now.Add(-cutoff)
	result := Partition{
		Recent: []chat.Message{},
		Older:  []chat.Message{},
	}
	for _, message := range messages {
		if message.CreatedAt.After(threshold) {
			result.Recent = append(result.Recent, message)
			continue
		}
		result.Older = append(result.Older, message)
	}
	return result
}
