// Package archive keeps a markdown copy of every delivered summary, one file per Gaiartian year.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dwizi/chronicler/internal/calendar"
)

type Entry struct {
	RunID     string
	Source    string
	Summary   string
	Timestamp time.Time
}

type Archive struct {
	root     string
	calendar *calendar.Calendar
	mu       sync.Mutex
}

func New(root string, cal *calendar.Calendar) *Archive {
	return &Archive{root: strings.TrimSpace(root), calendar: cal}
}

// Append writes entry under a heading carrying its Gaiartian date and returns the file
// path. A blank summary or an archive without root is a no-op.
func (a *Archive) Append(entry Entry) (string, error) {
	if a == nil || a.root == "" {
		return "", nil
	}
	text := strings.TrimSpace(entry.Summary)
	if text == "" {
		return "", nil
	}
	timestamp := entry.Timestamp.UTC()
	if entry.Timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	date, err := a.calendar.FromTime(timestamp)
	if err != nil {
		return "", fmt.Errorf("archive date: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(a.root, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(a.root, fmt.Sprintf("an-%d.md", date.Year))

	header := ""
	if _, err := os.Stat(path); os.IsNotExist(err) {
		header = fmt.Sprintf("# An %d\n\n", date.Year)
	}
	source := strings.TrimSpace(entry.Source)
	if source == "" {
		source = "unknown"
	}
	body := fmt.Sprintf(
		"## %s à %s\n- run: `%s`\n- source: `%s`\n- utc: `%s`\n\n%s\n\n",
		date.String(),
		timestamp.Format("15:04:05"),
		strings.TrimSpace(entry.RunID),
		source,
		timestamp.Format(time.RFC3339),
		text,
	)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if header != "" {
		if _, err := file.WriteString(header); err != nil {
			return "", err
		}
	}
	if _, err := file.WriteString(body); err != nil {
		return "", err
	}
	return path, nil
}
