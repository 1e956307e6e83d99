package llm

import (
	"context"
	"errors"
)

var (
	ErrUnavailable = errors.New("llm unavailable")
	ErrOracle      = errors.New("summarization oracle failed")

	// ErrRejected marks a provider answer that retrying cannot fix (bad request, auth, blocked content).
	ErrRejected = errors.New("llm request rejected")
)

// Options tune a single generation. Zero values mean "provider default"; a nil
// Temperature does too, so an explicit 0 stays distinguishable.
type Options struct {
	Model           string
	Temperature     *float64
	MaxOutputTokens int
}

// Float returns a pointer to v, for optional settings such as Options.Temperature.
func Float(v float64) *float64 {
	return &v
}

type Prompt struct {
	Input             string
	SystemInstruction string
	Options           Options
}

// Oracle turns a system instruction and a short input into generated text.
type Oracle interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

type OracleFunc func(ctx context.Context, prompt Prompt) (string, error)

func (f OracleFunc) Generate(ctx context.Context, prompt Prompt) (string, error) {
	return f(ctx, prompt)
}
