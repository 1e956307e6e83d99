package main

import (
	"log/slog"
	"os"
	_ "time/tzdata"

	"github.com/dwizi/chronicler/internal/cli"
	"github.com/dwizi/chronicler/internal/config"
)

func main() {
	config.LoadDotEnv("")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(config.FromEnv().LogLevel)}))
	if err := cli.NewRoot(logger).Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func logLevel(value string) slog.Level {
	switch value {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
