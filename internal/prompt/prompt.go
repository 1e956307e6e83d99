// Package prompt renders the system instruction handed to the summarization oracle.
package prompt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/fsnotify/fsnotify"
)

type Data struct {
	SummaryHours int
	ContextHours int
	Months       []string
	Context      string
	Recent       string
}

// Builder renders Data through the built-in template, or through the file at path
// when one is configured.
type Builder struct {
	path   string
	logger *slog.Logger

	mu   sync.RWMutex
	tmpl *template.Template
}

func New(path string, logger *slog.Logger) (*Builder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	builder := &Builder{path: strings.TrimSpace(path), logger: logger}
	if err := builder.Reload(); err != nil {
		return nil, err
	}
	return builder, nil
}

// Reload parses the template source again. On failure the previous template stays active.
func (b *Builder) Reload() error {
	source := defaultTemplate
	name := "default"
	if b.path != "" {
		content, err := os.ReadFile(b.path)
		if err != nil {
			return fmt.Errorf("read prompt template %s: %w", b.path, err)
		}
		source = string(content)
		name = filepath.Base(b.path)
	}
	tmpl, err := parse(name, source)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.tmpl = tmpl
	b.mu.Unlock()
	return nil
}

func (b *Builder) Build(data Data) (string, error) {
	b.mu.RLock()
	tmpl := b.tmpl
	b.mu.RUnlock()

	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render prompt template: %w", err)
	}
	return out.String(), nil
}

// Watch reloads the template file whenever it is written, until ctx is done.
// It returns immediately when the built-in template is used.
func (b *Builder) Watch(ctx context.Context) error {
	if b.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// Editors replace files on save, so the directory is watched rather than the file.
	dir := filepath.Dir(b.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch path %s: %w", dir, err)
	}
	b.logger.Info("prompt watcher started", "path", b.path)

	target := filepath.Clean(b.path)
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("prompt watcher stopped")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("prompt watcher closed")
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := b.Reload(); err != nil {
				b.logger.Error("prompt reload failed, keeping previous template", "path", b.path, "error", err)
				continue
			}
			b.logger.Info("prompt template reloaded", "path", b.path, "op", event.Op.String())
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("prompt watcher closed")
			}
			if err != nil {
				b.logger.Error("prompt watcher error", "error", err)
			}
		}
	}
}

func parse(name, source string) (*template.Template, error) {
	tmpl, err := template.New(name).
		Funcs(template.FuncMap{"join": strings.Join}).
		Option("missingkey=error").
		Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	return tmpl, nil
}
