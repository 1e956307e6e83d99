package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultSummaryChannels = "718824042685136936,1017475737852317768"
	defaultMonths          = "Gaiarkhè,Tempopidum,Quinésil,Éposendre"
	epochLayout            = "2006-01-02"
)

type Config struct {
	Environment string
	DataDir     string
	DBPath      string
	ArchiveDir  string
	PromptFile  string
	LogLevel    string

	DiscordToken     string
	DiscordUserToken bool
	DiscordAPI       string
	DiscordWSURL     string

	TriggerLiteral      string
	ControllerUserIDs   []string
	ControllerChannels  []string
	AllowSelfTrigger    bool
	TriggerCooldownSec  int
	TriggerCooldownText string

	SummaryChannelIDs  []string
	SummaryHours       int
	ContextHours       int
	ChunkSize          int
	OracleTrigger      string
	HistoryTimeoutSec  int
	CalendarEpoch      time.Time
	CalendarMonths     []string
	ScheduleExpression string
	ScheduleTimezone   string
	ScheduleChannelID  string

	LLMProvider        string // gemini | openai | anthropic
	LLMBaseURL         string
	LLMAPIKey          string
	LLMModel           string
	LLMTimeoutSec      int
	LLMTemperature     float64
	LLMMaxOutputTokens int
	LLMRetries         int
}

// LoadDotEnv reads a .env file into the process environment when running in
// development. Variables already set win over the file.
func LoadDotEnv(path string) {
	if stringOrDefault("CHRONICLER_ENV", "development") != "development" {
		return
	}
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	_ = godotenv.Load(path)
}

func FromEnv() Config {
	dataDir := stringOrDefault("CHRONICLER_DATA_DIR", "/data")
	userToken := boolOrDefault("CHRONICLER_DISCORD_USER_TOKEN", false)

	return Config{
		Environment: stringOrDefault("CHRONICLER_ENV", "development"),
		DataDir:     dataDir,
		DBPath:      stringOrDefault("CHRONICLER_DB_PATH", filepath.Join(dataDir, "chronicler", "runs.sqlite")),
		ArchiveDir:  stringOrDefault("CHRONICLER_ARCHIVE_DIR", filepath.Join(dataDir, "chronicler", "archive")),
		PromptFile:  strings.TrimSpace(os.Getenv("CHRONICLER_PROMPT_FILE")),
		LogLevel:    strings.ToLower(stringOrDefault("CHRONICLER_LOG_LEVEL", "info")),

		DiscordToken:     strings.TrimSpace(os.Getenv("CHRONICLER_DISCORD_TOKEN")),
		DiscordUserToken: userToken,
		DiscordAPI:       stringOrDefault("CHRONICLER_DISCORD_API_BASE", "https://discord.com/api/v10"),
		DiscordWSURL:     stringOrDefault("CHRONICLER_DISCORD_GATEWAY_URL", "wss://gateway.discord.gg/?v=10&encoding=json"),

		TriggerLiteral:      stringOrDefault("CHRONICLER_TRIGGER", "$summarize"),
		ControllerUserIDs:   csvOrDefault("CHRONICLER_CONTROLLER_IDS", ""),
		ControllerChannels:  csvOrDefault("CHRONICLER_CONTROLLER_CHANNEL_IDS", ""),
		AllowSelfTrigger:    boolOrDefault("CHRONICLER_ALLOW_SELF_TRIGGER", userToken),
		TriggerCooldownSec:  nonNegativeIntOrDefault("CHRONICLER_TRIGGER_COOLDOWN_SECONDS", 60),
		TriggerCooldownText: strings.TrimSpace(os.Getenv("CHRONICLER_TRIGGER_COOLDOWN_MESSAGE")),

		SummaryChannelIDs:  csvOrDefault("CHRONICLER_SUMMARY_CHANNEL_IDS", defaultSummaryChannels),
		SummaryHours:       intOrDefault("CHRONICLER_SUMMARY_HOURS", 168),
		ContextHours:       intOrDefault("CHRONICLER_CONTEXT_HOURS", 336),
		ChunkSize:          intOrDefault("CHRONICLER_CHUNK_SIZE", 2000),
		OracleTrigger:      stringOrDefault("CHRONICLER_ORACLE_TRIGGER", "Procède."),
		HistoryTimeoutSec:  intOrDefault("CHRONICLER_HISTORY_TIMEOUT_SECONDS", 60),
		CalendarEpoch:      dateOrDefault("CHRONICLER_CALENDAR_EPOCH", time.Date(2022, time.September, 1, 0, 0, 0, 0, time.UTC)),
		CalendarMonths:     csvOrDefault("CHRONICLER_CALENDAR_MONTHS", defaultMonths),
		ScheduleExpression: strings.TrimSpace(os.Getenv("CHRONICLER_SCHEDULE")),
		ScheduleTimezone:   stringOrDefault("CHRONICLER_SCHEDULE_TIMEZONE", "UTC"),
		ScheduleChannelID:  strings.TrimSpace(os.Getenv("CHRONICLER_SCHEDULE_CHANNEL_ID")),

		LLMProvider:        strings.ToLower(stringOrDefault("CHRONICLER_LLM_PROVIDER", "gemini")),
		LLMBaseURL:         strings.TrimSpace(os.Getenv("CHRONICLER_LLM_BASE_URL")),
		LLMAPIKey:          strings.TrimSpace(os.Getenv("CHRONICLER_LLM_API_KEY")),
		LLMModel:           strings.TrimSpace(os.Getenv("CHRONICLER_LLM_MODEL")),
		LLMTimeoutSec:      intOrDefault("CHRONICLER_LLM_TIMEOUT_SECONDS", 300),
		LLMTemperature:     floatOrDefault("CHRONICLER_LLM_TEMPERATURE", 0.5),
		LLMMaxOutputTokens: intOrDefault("CHRONICLER_LLM_MAX_OUTPUT_TOKENS", 32000),
		LLMRetries:         nonNegativeIntOrDefault("CHRONICLER_LLM_RETRIES", 1),
	}
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func nonNegativeIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func boolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func floatOrDefault(name string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// csvOrDefault splits a comma separated list, dropping blanks and duplicates.
func csvOrDefault(name, fallback string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		raw = fallback
	}
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	seen := map[string]struct{}{}
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func dateOrDefault(name string, fallback time.Time) time.Time {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseInLocation(epochLayout, value, time.UTC)
	if err != nil {
		return fallback
	}
	return parsed
}
