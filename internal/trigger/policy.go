// Package trigger decides whether a chat message may start a summary run.
package trigger

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const DefaultLiteral = "$summarize"

type Config struct {
	Literal           string
	AllowedUserIDs    map[string]struct{}
	AllowedChannelIDs map[string]struct{}
	// AllowSelf lets the account the bot runs as trigger runs, as a self-bot does.
	AllowSelf       bool
	Cooldown        time.Duration
	CooldownMessage string
}

type Request struct {
	ChannelID string
	UserID    string
	SelfID    string
	Content   string
}

type Decision struct {
	Allowed bool
	Notify  string
	Reason  string
}

type Policy struct {
	cfg     Config
	now     func() time.Time
	mu      sync.Mutex
	lastRun map[string]time.Time
}

func New(cfg Config) *Policy {
	cfg.Literal = strings.TrimSpace(cfg.Literal)
	if cfg.Literal == "" {
		cfg.Literal = DefaultLiteral
	}
	if strings.TrimSpace(cfg.CooldownMessage) == "" {
		cfg.CooldownMessage = "Un résumé vient d'être demandé, réessaie dans %s."
	}
	return &Policy{
		cfg:     cfg,
		now:     time.Now,
		lastRun: map[string]time.Time{},
	}
}

// Matches reports whether content is the trigger command.
func (p *Policy) Matches(content string) bool {
	return strings.TrimSpace(content) == p.cfg.Literal
}

func (p *Policy) Check(input Request) Decision {
	if !p.Matches(input.Content) {
		return Decision{Allowed: false, Reason: "not_a_trigger"}
	}

	channelID := normalize(input.ChannelID)
	if len(p.cfg.AllowedChannelIDs) > 0 {
		if _, ok := p.cfg.AllowedChannelIDs[channelID]; !ok {
			return Decision{Allowed: false, Reason: "channel_not_allowed"}
		}
	}

	userID := normalize(input.UserID)
	isSelf := userID != "" && userID == normalize(input.SelfID)
	if isSelf && !p.cfg.AllowSelf {
		return Decision{Allowed: false, Reason: "self_not_allowed"}
	}
	if !isSelf {
		if _, ok := p.cfg.AllowedUserIDs[userID]; !ok {
			return Decision{Allowed: false, Reason: "user_not_allowed"}
		}
	}

	if wait, ok := p.consumeCooldown(channelID); !ok {
		return Decision{
			Allowed: false,
			Notify:  fmt.Sprintf(p.cfg.CooldownMessage, wait.Round(time.Second).String()),
			Reason:  "cooldown",
		}
	}
	return Decision{Allowed: true}
}

func (p *Policy) consumeCooldown(channelID string) (time.Duration, bool) {
	if p.cfg.Cooldown <= 0 {
		return 0, true
	}
	now := p.now().UTC()

	p.mu.Lock()
	defer p.mu.Unlock()
	if last, ok := p.lastRun[channelID]; ok {
		if elapsed := now.Sub(last); elapsed < p.cfg.Cooldown {
			return p.cfg.Cooldown - elapsed, false
		}
	}
	p.lastRun[channelID] = now
	return 0, true
}

// IDSet builds the lookup sets used by Config from raw identifiers.
func IDSet(values []string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, value := range values {
		if normalized := normalize(value); normalized != "" {
			set[normalized] = struct{}{}
		}
	}
	return set
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
