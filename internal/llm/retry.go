package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type retryingOracle struct {
	next            Oracle
	retries         uint64
	initialInterval time.Duration
	logger          *slog.Logger
}

// WithRetry retries transient failures of next up to retries extra times with
// exponential backoff. Context errors, ErrUnavailable and ErrRejected are
// returned at once.
func WithRetry(next Oracle, retries int, initialInterval time.Duration, logger *slog.Logger) Oracle {
	if retries < 1 {
		return next
	}
	if initialInterval <= 0 {
		initialInterval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &retryingOracle{
		next:            next,
		retries:         uint64(retries),
		initialInterval: initialInterval,
		logger:          logger,
	}
}

func (r *retryingOracle) Generate(ctx context.Context, prompt Prompt) (string, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.initialInterval
	policy.MaxElapsedTime = 0

	var reply string
	attempt := 0
	operation := func() error {
		attempt++
		out, err := r.next.Generate(ctx, prompt)
		if err == nil {
			reply = out
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Warn("oracle call failed, retrying", "attempt", attempt, "wait", wait.String(), "error", err)
	}
	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(policy, r.retries), ctx), notify)
	if err != nil {
		return "", err
	}
	return reply, nil
}

func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return false
	}
	if errors.Is(err, ErrRejected) {
		return false
	}
	return true
}
