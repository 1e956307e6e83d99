// Package tui is a terminal dashboard over the summary run ledger.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/dwizi/chronicler/internal/calendar"
	"github.com/dwizi/chronicler/internal/store"
)

const (
	defaultLimit   = 50
	defaultRefresh = 15 * time.Second
	loadTimeout    = 8 * time.Second
)

// RunSource is the read side of the run ledger.
type RunSource interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
}

type Options struct {
	Environment string
	Channels    []string
	Schedule    string
	Limit       int
	Refresh     time.Duration
}

type model struct {
	opts     Options
	source   RunSource
	calendar *calendar.Calendar
	logger   *slog.Logger

	keys keyMap
	help help.Model

	width    int
	height   int
	quitting bool
	loading  bool

	runs       []store.Run
	index      int
	loadedAt   time.Time
	statusText string
	errorText  string
}

type runsLoadedMsg struct {
	runs []store.Run
	at   time.Time
	err  error
}

type refreshTickMsg time.Time

func Run(opts Options, source RunSource, cal *calendar.Calendar, logger *slog.Logger) error {
	program := tea.NewProgram(newModel(opts, source, cal, logger))
	_, err := program.Run()
	return err
}

func newModel(opts Options, source RunSource, cal *calendar.Calendar, logger *slog.Logger) model {
	if opts.Limit < 1 {
		opts.Limit = defaultLimit
	}
	if opts.Refresh <= 0 {
		opts.Refresh = defaultRefresh
	}
	if logger == nil {
		logger = slog.Default()
	}
	return model{
		opts:     opts,
		source:   source,
		calendar: cal,
		logger:   logger,
		keys:     newKeyMap(),
		help:     help.New(),
		width:    120,
		height:   32,
		loading:  true,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.loadRunsCmd(), m.tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		return m, nil
	case runsLoadedMsg:
		m.loading = false
		if typed.err != nil {
			m.errorText = typed.err.Error()
			m.statusText = ""
			m.logger.Warn("load summary runs failed", "error", typed.err)
			return m, nil
		}
		m.errorText = ""
		m.runs = typed.runs
		m.loadedAt = typed.at
		m.statusText = fmt.Sprintf("loaded %d run(s)", len(typed.runs))
		if m.index >= len(m.runs) {
			m.index = len(m.runs) - 1
		}
		if m.index < 0 {
			m.index = 0
		}
		return m, nil
	case refreshTickMsg:
		if m.loading {
			return m, m.tickCmd()
		}
		m.loading = true
		return m, tea.Batch(m.loadRunsCmd(), m.tickCmd())
	case tea.KeyPressMsg:
		return m.handleKey(typed)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.ToggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Up):
		if m.index > 0 {
			m.index--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.index < len(m.runs)-1 {
			m.index++
		}
		return m, nil
	case key.Matches(msg, m.keys.Top):
		m.index = 0
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		if m.loading {
			return m, nil
		}
		m.loading = true
		m.statusText = "refreshing..."
		return m, m.loadRunsCmd()
	}
	return m, nil
}

func (m model) View() tea.View {
	view := tea.NewView(m.render())
	view.AltScreen = true
	return view
}

func (m model) selectedRun() (store.Run, bool) {
	if m.index < 0 || m.index >= len(m.runs) {
		return store.Run{}, false
	}
	return m.runs[m.index], true
}

func (m model) loadRunsCmd() tea.Cmd {
	source := m.source
	limit := m.opts.Limit
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		runs, err := source.ListRuns(ctx, limit)
		return runsLoadedMsg{runs: runs, at: time.Now().UTC(), err: err}
	}
}

func (m model) tickCmd() tea.Cmd {
	return tea.Tick(m.opts.Refresh, func(at time.Time) tea.Msg {
		return refreshTickMsg(at)
	})
}
