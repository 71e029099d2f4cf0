package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrMaxRetries indicates that all retry attempts have been exhausted.
var ErrMaxRetries = errors.New("max retries exceeded")

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err, Retryable: false}
}

// RetryOptions configures a bounded retry loop with a fixed delay.
type RetryOptions struct {
	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep       func(ctx context.Context, d time.Duration) error
	Logger      *slog.Logger
	Operation   string
	MaxAttempts int
	Delay       time.Duration
}

// WithRetry runs operation up to MaxAttempts times, waiting Delay between
// attempts. Auth errors and errors wrapped with Permanent stop the loop
// immediately. The returned error wraps both ErrMaxRetries and the last
// failure when attempts run out.
func WithRetry(ctx context.Context, operation func(attempt int) error, opts RetryOptions) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Sleep == nil {
		opts.Sleep = SleepContext
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	var err error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err = operation(attempt)
		if err == nil {
			return nil
		}

		var retryableErr *RetryableError
		if IsAuthError(err) || (errors.As(err, &retryableErr) && !retryableErr.Retryable) {
			return err
		}

		if attempt == opts.MaxAttempts {
			break
		}

		opts.Logger.Warn("Operation failed, retrying",
			"operation", opts.Operation,
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"delay", opts.Delay,
			"error", err)

		if sleepErr := opts.Sleep(ctx, opts.Delay); sleepErr != nil {
			return fmt.Errorf("retry of %s interrupted: %w", opts.Operation, sleepErr)
		}
	}

	if opts.MaxAttempts == 1 {
		return err
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetries, opts.MaxAttempts, err)
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
