package chat

import (
	"errors"
	"time"
)

var ErrChannelNotFound = errors.New("channel not found")

type User struct {
	ID          string
	DisplayName string
}

type ChannelRef struct {
	ID   string
	Name string
}

// Message is a retrieved channel message. It is never mutated after retrieval.
type Message struct {
	ID              string
	ChannelID       string
	Author          User
	Body            string
	CreatedAt       time.Time
	Mentions        []User
	ChannelMentions []ChannelRef
}
