package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

var envKeys = []string{
	"CHRONICLER_ENV",
	"CHRONICLER_DATA_DIR",
	"CHRONICLER_DB_PATH",
	"CHRONICLER_ARCHIVE_DIR",
	"CHRONICLER_PROMPT_FILE",
	"CHRONICLER_LOG_LEVEL",
	"CHRONICLER_DISCORD_TOKEN",
	"CHRONICLER_DISCORD_USER_TOKEN",
	"CHRONICLER_DISCORD_API_BASE",
	"CHRONICLER_DISCORD_GATEWAY_URL",
	"CHRONICLER_TRIGGER",
	"CHRONICLER_CONTROLLER_IDS",
	"CHRONICLER_CONTROLLER_CHANNEL_IDS",
	"CHRONICLER_ALLOW_SELF_TRIGGER",
	"CHRONICLER_TRIGGER_COOLDOWN_SECONDS",
	"CHRONICLER_TRIGGER_COOLDOWN_MESSAGE",
	"CHRONICLER_SUMMARY_CHANNEL_IDS",
	"CHRONICLER_SUMMARY_HOURS",
	"CHRONICLER_CONTEXT_HOURS",
	"CHRONICLER_CHUNK_SIZE",
	"CHRONICLER_ORACLE_TRIGGER",
	"CHRONICLER_HISTORY_TIMEOUT_SECONDS",
	"CHRONICLER_CALENDAR_EPOCH",
	"CHRONICLER_CALENDAR_MONTHS",
	"CHRONICLER_SCHEDULE",
	"CHRONICLER_SCHEDULE_TIMEZONE",
	"CHRONICLER_SCHEDULE_CHANNEL_ID",
	"CHRONICLER_LLM_PROVIDER",
	"CHRONICLER_LLM_BASE_URL",
	"CHRONICLER_LLM_API_KEY",
	"CHRONICLER_LLM_MODEL",
	"CHRONICLER_LLM_TIMEOUT_SECONDS",
	"CHRONICLER_LLM_TEMPERATURE",
	"CHRONICLER_LLM_MAX_OUTPUT_TOKENS",
	"CHRONICLER_LLM_RETRIES",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg := FromEnv()
	if cfg.Environment != "development" {
		t.Fatalf("unexpected environment %q", cfg.Environment)
	}
	if cfg.DBPath != filepath.Join("/data", "chronicler", "runs.sqlite") {
		t.Fatalf("unexpected db path %q", cfg.DBPath)
	}
	if cfg.ArchiveDir != filepath.Join("/data", "chronicler", "archive") {
		t.Fatalf("unexpected archive dir %q", cfg.ArchiveDir)
	}
	if cfg.TriggerLiteral != "$summarize" {
		t.Fatalf("unexpected trigger %q", cfg.TriggerLiteral)
	}
	if !reflect.DeepEqual(cfg.SummaryChannelIDs, []string{"718824042685136936", "1017475737852317768"}) {
		t.Fatalf("unexpected summary channels %v", cfg.SummaryChannelIDs)
	}
	if cfg.SummaryHours != 168 || cfg.ContextHours != 336 {
		t.Fatalf("unexpected windows %d/%d", cfg.SummaryHours, cfg.ContextHours)
	}
	if cfg.ChunkSize != 2000 {
		t.Fatalf("unexpected chunk size %d", cfg.ChunkSize)
	}
	if cfg.OracleTrigger != "Procède." {
		t.Fatalf("unexpected oracle trigger %q", cfg.OracleTrigger)
	}
	if !cfg.CalendarEpoch.Equal(time.Date(2022, time.September, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected epoch %s", cfg.CalendarEpoch)
	}
	if !reflect.DeepEqual(cfg.CalendarMonths, []string{"Gaiarkhè", "Tempopidum", "Quinésil", "Éposendre"}) {
		t.Fatalf("unexpected months %v", cfg.CalendarMonths)
	}
	if cfg.LLMProvider != "gemini" || cfg.LLMTemperature != 0.5 || cfg.LLMMaxOutputTokens != 32000 {
		t.Fatalf("unexpected llm defaults %+v", cfg)
	}
	if cfg.LLMTimeoutSec != 300 || cfg.LLMRetries != 1 {
		t.Fatalf("unexpected llm timeout/retries %d/%d", cfg.LLMTimeoutSec, cfg.LLMRetries)
	}
	if cfg.AllowSelfTrigger || cfg.DiscordUserToken {
		t.Fatal("expected self trigger and user token disabled by default")
	}
	if cfg.ControllerUserIDs != nil || cfg.ControllerChannels != nil {
		t.Fatalf("expected no controllers, got %v %v", cfg.ControllerUserIDs, cfg.ControllerChannels)
	}
	if cfg.ScheduleExpression != "" || cfg.ScheduleTimezone != "UTC" {
		t.Fatalf("unexpected schedule %q %q", cfg.ScheduleExpression, cfg.ScheduleTimezone)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHRONICLER_DATA_DIR", "/srv/chronicler")
	t.Setenv("CHRONICLER_DISCORD_USER_TOKEN", "true")
	t.Setenv("CHRONICLER_CONTROLLER_IDS", " 42, ,42,43 ")
	t.Setenv("CHRONICLER_CONTROLLER_CHANNEL_IDS", "900")
	t.Setenv("CHRONICLER_SUMMARY_CHANNEL_IDS", "1,2,3")
	t.Setenv("CHRONICLER_SUMMARY_HOURS", "24")
	t.Setenv("CHRONICLER_CONTEXT_HOURS", "72")
	t.Setenv("CHRONICLER_CALENDAR_EPOCH", "2023-01-01")
	t.Setenv("CHRONICLER_LLM_PROVIDER", "OpenAI")
	t.Setenv("CHRONICLER_LLM_TEMPERATURE", "0.9")
	t.Setenv("CHRONICLER_LLM_RETRIES", "0")
	t.Setenv("CHRONICLER_TRIGGER_COOLDOWN_SECONDS", "0")
	t.Setenv("CHRONICLER_SCHEDULE", "0 20 * * 0")
	t.Setenv("CHRONICLER_SCHEDULE_TIMEZONE", "Europe/Paris")

	cfg := FromEnv()
	if cfg.DBPath != filepath.Join("/srv/chronicler", "chronicler", "runs.sqlite") {
		t.Fatalf("expected db path under data dir, got %q", cfg.DBPath)
	}
	if !cfg.DiscordUserToken || !cfg.AllowSelfTrigger {
		t.Fatal("expected user token mode to allow self triggers")
	}
	if !reflect.DeepEqual(cfg.ControllerUserIDs, []string{"42", "43"}) {
		t.Fatalf("unexpected controllers %v", cfg.ControllerUserIDs)
	}
	if !reflect.DeepEqual(cfg.SummaryChannelIDs, []string{"1", "2", "3"}) {
		t.Fatalf("unexpected summary channels %v", cfg.SummaryChannelIDs)
	}
	if cfg.SummaryHours != 24 || cfg.ContextHours != 72 {
		t.Fatalf("unexpected windows %d/%d", cfg.SummaryHours, cfg.ContextHours)
	}
	if cfg.CalendarEpoch.Year() != 2023 || cfg.CalendarEpoch.Month() != time.January {
		t.Fatalf("unexpected epoch %s", cfg.CalendarEpoch)
	}
	if cfg.LLMProvider != "openai" || cfg.LLMTemperature != 0.9 {
		t.Fatalf("unexpected llm settings %q %v", cfg.LLMProvider, cfg.LLMTemperature)
	}
	if cfg.LLMRetries != 0 || cfg.TriggerCooldownSec != 0 {
		t.Fatalf("expected zero retries and cooldown, got %d/%d", cfg.LLMRetries, cfg.TriggerCooldownSec)
	}
	if cfg.ScheduleExpression != "0 20 * * 0" || cfg.ScheduleTimezone != "Europe/Paris" {
		t.Fatalf("unexpected schedule %q %q", cfg.ScheduleExpression, cfg.ScheduleTimezone)
	}
}

func TestFromEnvIgnoresInvalidNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHRONICLER_SUMMARY_HOURS", "-5")
	t.Setenv("CHRONICLER_CHUNK_SIZE", "lots")
	t.Setenv("CHRONICLER_LLM_TEMPERATURE", "warm")
	t.Setenv("CHRONICLER_CALENDAR_EPOCH", "01/09/2022")

	cfg := FromEnv()
	if cfg.SummaryHours != 168 || cfg.ChunkSize != 2000 || cfg.LLMTemperature != 0.5 {
		t.Fatalf("expected fallbacks, got %d/%d/%v", cfg.SummaryHours, cfg.ChunkSize, cfg.LLMTemperature)
	}
	if cfg.CalendarEpoch.Year() != 2022 {
		t.Fatalf("expected default epoch, got %s", cfg.CalendarEpoch)
	}
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "CHRONICLER_LOG_LEVEL=debug\nCHRONICLER_TRIGGER='$resume'\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("CHRONICLER_TRIGGER", "$recap")
	os.Unsetenv("CHRONICLER_LOG_LEVEL")

	LoadDotEnv(path)
	cfg := FromEnv()
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log level from file, got %q", cfg.LogLevel)
	}
	if cfg.TriggerLiteral != "$recap" {
		t.Fatalf("expected environment to win, got %q", cfg.TriggerLiteral)
	}
}

func TestLoadDotEnvSkippedOutsideDevelopment(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHRONICLER_ENV", "production")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("CHRONICLER_CHUNK_SIZE=10\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	os.Unsetenv("CHRONICLER_CHUNK_SIZE")

	LoadDotEnv(path)
	if got := os.Getenv("CHRONICLER_CHUNK_SIZE"); got != "" {
		t.Fatalf("expected env file ignored, got %q", got)
	}
}
