package tui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"

	"github.com/dwizi/chronicler/internal/store"
)

func (m model) render() string {
	if m.quitting {
		return "chronicler tui closed\n"
	}

	t := newTheme()
	layout := computeLayout(m.width, m.height)
	header := m.renderHeader(t, layout)
	footer := m.renderFooter(t, layout)

	var body string
	if layout.Compact {
		mainHeight := maxInt(4, layout.BodyHeight*2/3)
		body = lipgloss.JoinVertical(lipgloss.Left,
			m.renderRuns(t, layout.Width, mainHeight),
			m.renderInspector(t, layout.Width, maxInt(3, layout.BodyHeight-mainHeight)),
		)
	} else {
		sep := t.panelSubtle.Render("│")
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderRuns(t, layout.MainWidth, layout.BodyHeight),
			sep,
			m.renderInspector(t, layout.InspectorWidth, layout.BodyHeight),
		)
	}
	ui := lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
	return t.appBG.Width(layout.Width).Height(layout.Height).Render(ui)
}

func (m model) renderHeader(t theme, layout uiLayout) string {
	chip := t.chipSuccess.Render("OK")
	switch {
	case m.errorText != "":
		chip = t.chipError.Render("ERROR")
	case m.loading:
		chip = t.chipWarn.Render("LOADING")
	case len(m.runs) > 0 && m.runs[0].Status == store.RunStatusFailed:
		chip = t.chipError.Render("LAST RUN FAILED")
	}

	style := sizedStyle(t.headerBox, layout.Width, headerHeight)
	width := innerWidth(t.headerBox, layout.Width)
	schedule := fallbackText(m.opts.Schedule, "manual only")
	line1 := fillLine(t.brand.Render("Chronicler summary runs"), chip, width)
	line2 := fillLine(
		t.headerSub.Render(trimToWidth("env: "+fallbackText(m.opts.Environment, "unset")+" | channels: "+fallbackText(strings.Join(m.opts.Channels, ","), "none"), maxInt(20, width/2))),
		t.headerSub.Render(trimToWidth("schedule: "+schedule+" | "+m.gaiartianNow(), maxInt(20, width/2))),
		width,
	)
	return style.Render(line1 + "\n" + line2)
}

func (m model) renderRuns(t theme, width, height int) string {
	style := t.panelBox
	contentWidth := innerWidth(style, width)
	succeeded, failed := 0, 0
	for _, run := range m.runs {
		switch run.Status {
		case store.RunStatusSucceeded:
			succeeded++
		case store.RunStatusFailed:
			failed++
		}
	}
	lines := []string{
		fillLine(t.panelTitle.Render("Runs"), t.panelSubtle.Render(fmt.Sprintf("%d ok  %d failed", succeeded, failed)), contentWidth),
		"",
		t.tableHeader.Render(trimToWidth(formatRow("STARTED", "SOURCE", "STATUS", "RECENT", "CHUNKS"), contentWidth)),
	}
	if len(m.runs) == 0 {
		lines = append(lines, t.panelSubtle.Render("no summary run recorded yet"))
	}

	visible := maxInt(1, height-len(lines)-1)
	start := 0
	if m.index >= visible {
		start = m.index - visible + 1
	}
	for i := start; i < len(m.runs) && i < start+visible; i++ {
		run := m.runs[i]
		row := formatRow(
			run.StartedAt.UTC().Format("2006-01-02 15:04"),
			run.TriggerSource,
			run.Status,
			fmt.Sprintf("%d", run.RecentCount),
			fmt.Sprintf("%d", run.ChunkCount),
		)
		cellStyle := t.tableCell
		prefix := "  "
		if i == m.index {
			cellStyle = t.tableSelected
			prefix = "> "
		}
		lines = append(lines, cellStyle.Render(trimToWidth(prefix+row, contentWidth)))
	}
	return sizedStyle(style, width, height).Render(strings.Join(lines, "\n"))
}

func (m model) renderInspector(t theme, width, height int) string {
	style := t.panelBox
	lines := []string{t.panelTitle.Render("Run detail"), ""}
	run, ok := m.selectedRun()
	if !ok {
		lines = append(lines, t.panelSubtle.Render("select a run"))
		return sizedStyle(style, width, height).Render(strings.Join(lines, "\n"))
	}

	contentWidth := innerWidth(style, width)
	statusStyle := t.panelSuccess
	if run.Status == store.RunStatusFailed {
		statusStyle = t.panelError
	}
	lines = append(lines,
		"id         "+run.ID,
		"status     "+statusStyle.Render(run.Status),
		"source     "+fallbackText(run.TriggerSource, "n/a"),
		"by         "+fallbackText(run.RequestedBy, "n/a"),
		"channel    "+fallbackText(run.ChannelID, "n/a"),
		"started    "+formatTime(run.StartedAt),
		"gaiartos   "+m.gaiartianDate(run.StartedAt),
		"finished   "+formatTime(run.FinishedAt),
		"duration   "+formatDuration(run.StartedAt, run.FinishedAt),
		fmt.Sprintf("messages   %d recent, %d context", run.RecentCount, run.OlderCount),
		fmt.Sprintf("summary    %d chars in %d chunk(s)", run.SummaryChars, run.ChunkCount),
	)
	if strings.TrimSpace(run.ErrorMessage) != "" {
		lines = append(lines, "", t.panelError.Render(trimToWidth("error: "+run.ErrorMessage, contentWidth*3)))
	}
	return sizedStyle(style, width, height).Render(strings.Join(lines, "\n"))
}

func (m model) renderFooter(t theme, layout uiLayout) string {
	style := t.footerBox
	width := innerWidth(style, layout.Width)
	status := t.footerOK.Render("status: " + fallbackText(m.statusText, "idle"))
	if strings.TrimSpace(m.errorText) != "" {
		status = t.footerErr.Render("status: " + m.errorText)
	}
	if !m.loadedAt.IsZero() {
		status += t.footerInfo.Render(" | updated " + m.loadedAt.Format("15:04:05") + " UTC")
	}
	helpLine := t.footerInfo.Render(m.help.View(m.keys))
	return sizedStyle(style, layout.Width, footerHeight).Render(helpLine + "\n" + ansi.Truncate(status, width, "..."))
}

func (m model) gaiartianNow() string {
	return m.gaiartianDate(time.Now())
}

func (m model) gaiartianDate(at time.Time) string {
	if m.calendar == nil || at.IsZero() {
		return "n/a"
	}
	date, err := m.calendar.FromTime(at)
	if err != nil {
		return "n/a"
	}
	return date.String()
}

func formatRow(started, source, status, recent, chunks string) string {
	return fmt.Sprintf("%-16s  %-8s  %-9s  %6s  %6s", started, source, status, recent, chunks)
}

func formatTime(at time.Time) string {
	if at.IsZero() {
		return "n/a"
	}
	return at.UTC().Format(time.RFC3339)
}

func formatDuration(start, end time.Time) string {
	if start.IsZero() || end.IsZero() {
		return "n/a"
	}
	return end.Sub(start).Round(time.Second).String()
}

func fallbackText(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func fillLine(left, right string, width int) string {
	if width <= 0 {
		return strings.TrimSpace(left + " " + right)
	}
	lw := lipgloss.Width(left)
	rw := lipgloss.Width(right)
	if lw+rw+1 > width {
		return ansi.Truncate(left+" "+right, width, "...")
	}
	return left + strings.Repeat(" ", width-lw-rw) + right
}

func trimToWidth(value string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(strings.TrimSpace(value))
	if len(runes) <= width {
		return string(runes)
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

// sizedStyle sizes the whole box. Width and Height count padding and border in
// lipgloss v2, so content gets innerWidth columns.
func sizedStyle(style lipgloss.Style, width, height int) lipgloss.Style {
	width = maxInt(width, style.GetHorizontalFrameSize()+1)
	height = maxInt(height, style.GetVerticalFrameSize()+1)
	return style.Width(width).Height(height)
}

func innerWidth(style lipgloss.Style, width int) int {
	return maxInt(1, width-style.GetHorizontalFrameSize())
}
