package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dwizi/chronicler/internal/llm"
)

type Config struct {
	APIKey string
	// BaseURL is the API root without the /v1 suffix.
	BaseURL         string
	Model           string
	Timeout         time.Duration
	Temperature     *float64
	MaxOutputTokens int
}

type Client struct {
	cfg    Config
	client anthropic.Client
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "claude-3-5-sonnet-latest"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 8192
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(0),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if apiKey := strings.TrimSpace(cfg.APIKey); apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	return &Client{
		cfg:    cfg,
		client: anthropic.NewClient(opts...),
		logger: logger,
	}
}

func (c *Client) Generate(ctx context.Context, prompt llm.Prompt) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", fmt.Errorf("%w: missing CHRONICLER_LLM_API_KEY for anthropic", llm.ErrUnavailable)
	}

	model := c.cfg.Model
	if strings.TrimSpace(prompt.Options.Model) != "" {
		model = prompt.Options.Model
	}
	maxTokens := c.cfg.MaxOutputTokens
	if prompt.Options.MaxOutputTokens > 0 {
		maxTokens = prompt.Options.MaxOutputTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.Input)),
		},
	}
	if instruction := strings.TrimSpace(prompt.SystemInstruction); instruction != "" {
		params.System = []anthropic.TextBlockParam{{Text: instruction}}
	}
	if temperature := prompt.Options.Temperature; temperature != nil {
		params.Temperature = anthropic.Float(*temperature)
	} else if c.cfg.Temperature != nil {
		params.Temperature = anthropic.Float(*c.cfg.Temperature)
	}

	start := time.Now()
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", c.classify(err)
	}
	c.logger.Debug("anthropic message done",
		"model", model,
		"duration_ms", time.Since(start).Milliseconds(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"stop_reason", resp.StopReason,
	)

	var builder strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			builder.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(builder.String())
	if text == "" {
		return "", fmt.Errorf("no text content in response")
	}
	return text, nil
}

func (c *Client) classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		c.logger.Error("anthropic request failed", "status", apiErr.StatusCode)
		if apiErr.StatusCode != http.StatusTooManyRequests && apiErr.StatusCode < 500 {
			return fmt.Errorf("%w: anthropic failed with status %d", llm.ErrRejected, apiErr.StatusCode)
		}
		return fmt.Errorf("anthropic failed with status %d: %w", apiErr.StatusCode, err)
	}
	return fmt.Errorf("anthropic messages: %w", err)
}
