package app

import (
	"context"
	"log/slog"

	"github.com/dwizi/chronicler/internal/config"
	"github.com/dwizi/chronicler/internal/connectors/discord"
	"github.com/dwizi/chronicler/internal/prompt"
	"github.com/dwizi/chronicler/internal/scheduler"
	"github.com/dwizi/chronicler/internal/store"
	"github.com/dwizi/chronicler/internal/summarizer"
)

type Runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	store      *store.Store
	discord    *discord.Connector
	summarizer *summarizer.Service
	scheduler  *scheduler.Service
	prompts    *prompt.Builder
	closers    []func() error
}

// component is a long running part of the runtime. Start blocks until ctx is done.
type component interface {
	Name() string
	Start(ctx context.Context) error
}

type namedComponent struct {
	name  string
	start func(ctx context.Context) error
}

func (c namedComponent) Name() string {
	return c.name
}

func (c namedComponent) Start(ctx context.Context) error {
	return c.start(ctx)
}
