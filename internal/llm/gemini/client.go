package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dwizi/chronicler/internal/llm"
)

const (
	defaultModel           = "gemini-1.5-pro-002"
	defaultTemperature     = 0.5
	defaultMaxOutputTokens = 32000
)

type Config struct {
	APIKey          string
	Model           string
	Temperature     *float64
	MaxOutputTokens int
	Timeout         time.Duration
}

type Client struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	client *genai.Client
}

func New(cfg Config, logger *slog.Logger) *Client {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	if cfg.Temperature == nil {
		cfg.Temperature = llm.Float(defaultTemperature)
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = defaultMaxOutputTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger}
}

func (c *Client) Generate(ctx context.Context, prompt llm.Prompt) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", fmt.Errorf("%w: missing CHRONICLER_LLM_API_KEY for gemini", llm.ErrUnavailable)
	}
	client, err := c.genaiClient(ctx)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	model := client.GenerativeModel(c.modelName(prompt.Options))
	c.configure(model, prompt)

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(prompt.Input))
	if err != nil {
		return "", classify(err)
	}
	text, err := responseText(resp)
	if err != nil {
		return "", err
	}
	c.logger.Debug("gemini generation completed",
		"model", c.modelName(prompt.Options),
		"duration_ms", time.Since(start).Milliseconds(),
		"chars", len(text),
	)
	return text, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

func (c *Client) genaiClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(c.cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	c.client = client
	return client, nil
}

func (c *Client) modelName(options llm.Options) string {
	if name := strings.TrimSpace(options.Model); name != "" {
		return name
	}
	return c.cfg.Model
}

func (c *Client) configure(model *genai.GenerativeModel, prompt llm.Prompt) {
	temperature := *c.cfg.Temperature
	if prompt.Options.Temperature != nil {
		temperature = *prompt.Options.Temperature
	}
	maxTokens := c.cfg.MaxOutputTokens
	if prompt.Options.MaxOutputTokens > 0 {
		maxTokens = prompt.Options.MaxOutputTokens
	}
	model.SetTemperature(float32(temperature))
	model.SetMaxOutputTokens(int32(maxTokens))
	model.SafetySettings = safetySettings()
	if instruction := strings.TrimSpace(prompt.SystemInstruction); instruction != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(instruction)}}
	}
}

// Role-play transcripts mention wars and violence routinely; every filter is off.
func safetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, category := range categories {
		settings = append(settings, &genai.SafetySetting{Category: category, Threshold: genai.HarmBlockNone})
	}
	return settings
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("gemini: empty response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: gemini candidate has no content (finish reason %s)", llm.ErrRejected, candidate.FinishReason.String())
	}
	var builder strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			builder.WriteString(string(text))
		}
	}
	out := strings.TrimSpace(builder.String())
	if out == "" {
		return "", errors.New("gemini: response has no text")
	}
	return out, nil
}

func classify(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return fmt.Errorf("%w: gemini blocked the request: %v", llm.ErrRejected, err)
	}
	switch status.Code(err) {
	case codes.InvalidArgument, codes.PermissionDenied, codes.Unauthenticated, codes.NotFound:
		return fmt.Errorf("%w: gemini generate: %v", llm.ErrRejected, err)
	}
	return fmt.Errorf("gemini generate: %w", err)
}
