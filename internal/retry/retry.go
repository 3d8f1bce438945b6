// Package retry runs gateway calls with a fixed attempt count and a fixed delay.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"
)

// Policy configures Do.
type Policy struct {
	Attempts    int           // total calls, including the first
	Delay       time.Duration // wait between attempts
	CallTimeout time.Duration // deadline for each call; 0 means none
}

// DefaultPolicy matches the gateway's usual tolerance: 3 tries, 5s apart.
var DefaultPolicy = Policy{
	Attempts:    3,
	Delay:       5 * time.Second,
	CallTimeout: 20 * time.Second,
}

var (
	// ErrExhausted wraps the last error once every attempt has failed.
	ErrExhausted = errors.New("retries exhausted")
	// ErrEmptyResult signals a call that succeeded but returned nothing usable. It is retryable.
	ErrEmptyResult = errors.New("empty result")
)

// Outcome classifies the result of one attempt.
type Outcome int

const (
	Ok Outcome = iota
	Retryable
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Ok:
		return "ok"
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as Fatal so Do stops immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Classify maps an attempt error to its Outcome. Errors are Retryable unless
// marked Permanent; cancellation of the parent context is Fatal.
func Classify(ctx context.Context, err error) Outcome {
	switch {
	case err == nil:
		return Ok
	case IsPermanent(err):
		return Fatal
	case ctx.Err() != nil:
		return Fatal
	default:
		return Retryable
	}
}

// IsTransientError reports whether err looks like a network or venue hiccup.
// Used for log levels only; Do retries any non-permanent error.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrEmptyResult) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"not connected",
		"pacing violation",
		"circuit breaker is open",
		"too many requests",
		"network",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// Do calls fn until it succeeds, returns a Fatal error, or the policy's attempts run out.
func Do[T any](
	ctx context.Context,
	p Policy,
	logger logrus.FieldLogger,
	op string,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := &backoff.Backoff{Min: p.Delay, Max: p.Delay, Factor: 1}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%s canceled: %w", op, err)
		}

		v, err := call(ctx, p.CallTimeout, fn)
		switch Classify(ctx, err) {
		case Ok:
			if attempt > 1 {
				logger.WithField("op", op).Infof("Succeeded on attempt %d/%d", attempt, attempts)
			}
			return v, nil
		case Fatal:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, fmt.Errorf("%s canceled: %w: %w", op, ctxErr, err)
			}
			return zero, fmt.Errorf("%s: %w", op, err)
		}

		lastErr = err
		entry := logger.WithError(err).WithField("op", op)
		if attempt == attempts {
			entry.Warnf("Attempt %d/%d failed", attempt, attempts)
			break
		}
		if IsTransientError(err) {
			entry.Infof("Attempt %d/%d failed, retrying in %v", attempt, attempts, p.Delay)
		} else {
			entry.Warnf("Attempt %d/%d failed, retrying in %v", attempt, attempts, p.Delay)
		}

		if p.Delay > 0 {
			select {
			case <-time.After(delay.Duration()):
			case <-ctx.Done():
				return zero, fmt.Errorf("%s canceled during retry delay: %w", op, ctx.Err())
			}
		}
	}

	return zero, fmt.Errorf("%s: %w after %d attempts: %w", op, ErrExhausted, attempts, lastErr)
}

func call[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}
