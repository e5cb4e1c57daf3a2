// Package retry runs external calls under a per-attempt timeout and a bounded
// number of attempts. Only transient failures are retried.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	defaultAttempts = 2
	defaultBackoff  = time.Second
	defaultTimeout  = 60 * time.Second
)

// Policy bounds a single external call site
type Policy struct {
	Attempts int           // total tries including the first one
	Backoff  time.Duration // sleep before attempt n is n*Backoff
	Timeout  time.Duration // per attempt; zero disables it
}

// DefaultPolicy retries a transient failure once
func DefaultPolicy() Policy {
	return Policy{
		Attempts: defaultAttempts,
		Backoff:  defaultBackoff,
		Timeout:  defaultTimeout,
	}
}

// StatusError is a non-2xx answer from an HTTP provider
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned error %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the status is worth another attempt
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type transient interface {
	Transient() bool
}

// IsTransient reports whether err looks like a failure that could succeed on
// the next attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var t transient
	if errors.As(err, &t) {
		return t.Transient()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

// Do runs fn until it succeeds, fails permanently, or the attempts run out
func Do(ctx context.Context, policy Policy, logger *zap.Logger, operation string, fn func(ctx context.Context) error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * policy.Backoff
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", operation, ctx.Err())
			case <-time.After(wait):
			}
		}

		err = runOnce(ctx, policy.Timeout, fn)
		if err == nil {
			return nil
		}

		if !IsTransient(err) || ctx.Err() != nil {
			return err
		}

		logger.Warn("Transient failure, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Int("maxAttempts", attempts),
			zap.Error(err))
	}

	return err
}

func runOnce(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
