// Package retry implements the retry/fallback executor: run a
// future-producing thunk, catch failure, re-invoke up to a configured
// cap with exponential backoff, and distinguish client-side errors
// that should not be retried from transient ones that should.
//
// Grounded on the teacher's internal/http/retry.go (ExecuteWithRetry,
// ClassifyError, CalculateBackoff), generalised from net/http-specific
// string sniffing to the s3err.Kind classification used across this
// library, and from a bare func() error to a generic Thunk[T] so a
// single retry call site can both perform I/O and return its result.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/s3tool/s3tool/internal/s3err"
)

// DefaultMaxRetries is the default retry cap (spec.md §4.1).
const DefaultMaxRetries = 10

// MaxAllowedRetries is the hard upper bound on a configured cap.
const MaxAllowedRetries = 50

// Config holds the retry policy for a call site.
type Config struct {
	// MaxRetries is the maximum number of attempts (including the
	// first). Zero means DefaultMaxRetries; values above
	// MaxAllowedRetries are clamped.
	MaxRetries int

	// RetryClientException, when false (the default), causes
	// s3err.ClientSide errors to propagate immediately instead of
	// being retried.
	RetryClientException bool

	// InitialDelay is the base delay for exponential backoff.
	InitialDelay time.Duration

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration

	// OnRetry, if set, is invoked before each retry attempt (for logging).
	OnRetry func(attempt int, err error)
}

func (c Config) normalized() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.MaxRetries > MaxAllowedRetries {
		c.MaxRetries = MaxAllowedRetries
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 200 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 15 * time.Second
	}
	return c
}

// Thunk is a described, future-producing operation.
type Thunk[T any] struct {
	// Description is a human-readable label used in the wrapped error
	// context when every retry is exhausted.
	Description string
	// Run performs one attempt.
	Run func(ctx context.Context) (T, error)
}

// Do executes t.Run, retrying on failure per cfg until cfg.MaxRetries
// attempts have been made or a non-retryable error occurs.
//
// Classification: if the cause is an *s3err.Error of kind ClientSide
// and cfg.RetryClientException is false, the error propagates
// immediately. Usage, MissingKey, UnsupportedVersion, Crypto,
// IntegrityIO, and LastKeyRemoval are never retried regardless of the
// flag — they indicate a problem no amount of retrying will fix.
// Transient errors (and any error that does not carry an
// *s3err.Error, since the SDK adapter is responsible for
// classification) are retried with exponential backoff and full
// jitter.
func Do[T any](ctx context.Context, cfg Config, t Thunk[T]) (T, error) {
	cfg = cfg.normalized()

	var zero T
	var lastErr error

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, s3err.New(s3err.Cancelled, t.Description, err)
		}

		result, err := t.Run(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !shouldRetry(err, cfg.RetryClientException) {
			return zero, err
		}

		if attempt == cfg.MaxRetries-1 {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err)
		}

		delay := backoff(attempt, cfg.InitialDelay, cfg.MaxDelay)
		select {
		case <-ctx.Done():
			return zero, s3err.New(s3err.Cancelled, t.Description, ctx.Err())
		case <-time.After(delay):
		}
	}

	return zero, fmt.Errorf("%s: exhausted %d attempts: %w", t.Description, cfg.MaxRetries, lastErr)
}

// shouldRetry classifies err and reports whether Do should retry it.
func shouldRetry(err error, retryClientException bool) bool {
	switch {
	case s3err.Is(err, s3err.Usage),
		s3err.Is(err, s3err.MissingKey),
		s3err.Is(err, s3err.UnsupportedVersion),
		s3err.Is(err, s3err.Crypto),
		s3err.Is(err, s3err.IntegrityIO),
		s3err.Is(err, s3err.LastKeyRemoval),
		s3err.Is(err, s3err.Cancelled):
		return false
	case s3err.Is(err, s3err.ClientSide):
		return retryClientException
	default:
		// Transient, or unclassified (treated as transient so the
		// SDK adapter doesn't need to classify every possible error).
		return true
	}
}

// backoff returns an exponential delay with full jitter: a random
// value in [0, min(maxDelay, initialDelay*2^attempt)).
func backoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	base := initialDelay * time.Duration(1<<uint(attempt))
	if base <= 0 || base > maxDelay {
		base = maxDelay
	}
	if base <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(base)))
}
