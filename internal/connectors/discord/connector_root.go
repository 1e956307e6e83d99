package discord

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dwizi/chronicler/internal/summarizer"
	"github.com/dwizi/chronicler/internal/trigger"
)

const (
	discordIntentGuilds          = 1 << 0
	discordIntentGuildMessages   = 1 << 9
	discordIntentMessageContents = 1 << 15

	historyPageSize = 100
)

type TriggerPolicy interface {
	Matches(content string) bool
	Check(input trigger.Request) trigger.Decision
}

type SummaryRunner interface {
	Run(ctx context.Context, input summarizer.RunRequest) (summarizer.RunResult, error)
}

type Connector struct {
	token      string
	userToken  bool
	apiBase    string
	gatewayURL string
	policy     TriggerPolicy
	runner     SummaryRunner
	httpClient *http.Client
	logger     *slog.Logger

	typingInterval time.Duration
	reconnectDelay time.Duration

	botMu     sync.RWMutex
	botUserID string

	channelMu sync.Mutex
	channels  map[string]channelEntry

	memberMu sync.Mutex
	members  map[string]memberEntry

	runs sync.WaitGroup
}

type Option func(*Connector)

// WithUserToken sends the token as is instead of "Bot <token>", for accounts driven as self-bots.
func WithUserToken(enabled bool) Option {
	return func(connector *Connector) {
		connector.userToken = enabled
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(connector *Connector) {
		if client != nil {
			connector.httpClient = client
		}
	}
}

func New(token, apiBase, gatewayURL string, policy TriggerPolicy, logger *slog.Logger, opts ...Option) *Connector {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = "https://discord.com/api/v10"
	}
	if strings.TrimSpace(gatewayURL) == "" {
		gatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"
	}
	if logger == nil {
		logger = slog.Default()
	}
	connector := &Connector{
		token:          strings.TrimSpace(token),
		apiBase:        strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		gatewayURL:     strings.TrimSpace(gatewayURL),
		policy:         policy,
		httpClient:     &http.Client{Timeout: 12 * time.Second},
		logger:         logger,
		typingInterval: 8 * time.Second,
		reconnectDelay: 2 * time.Second,
		channels:       map[string]channelEntry{},
		members:        map[string]memberEntry{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(connector)
		}
	}
	return connector
}

func (c *Connector) Name() string {
	return "discord"
}

// SetRunner plugs the summary pipeline in once it is built; the pipeline itself reads
// history through this connector.
func (c *Connector) SetRunner(runner SummaryRunner) {
	c.runner = runner
}

func (c *Connector) authorization() string {
	if c.userToken {
		return c.token
	}
	return "Bot " + c.token
}

func (c *Connector) selfID() string {
	c.botMu.RLock()
	defer c.botMu.RUnlock()
	return c.botUserID
}

func (c *Connector) setSelfID(id string) {
	c.botMu.Lock()
	c.botUserID = strings.TrimSpace(id)
	c.botMu.Unlock()
}
