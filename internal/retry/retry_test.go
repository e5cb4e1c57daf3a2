package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDo_RetriesTransientOnce(t *testing.T) {
	logger := zaptest.NewLogger(t)
	policy := Policy{Attempts: 2, Backoff: time.Millisecond, Timeout: time.Second}

	calls := 0
	err := Do(context.Background(), policy, logger, "test", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &StatusError{StatusCode: http.StatusServiceUnavailable, Body: "busy"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_DoesNotRetryPermanentFailure(t *testing.T) {
	logger := zaptest.NewLogger(t)
	policy := Policy{Attempts: 3, Backoff: time.Millisecond}

	calls := 0
	err := Do(context.Background(), policy, logger, "test", func(ctx context.Context) error {
		calls++
		return &StatusError{StatusCode: http.StatusUnauthorized, Body: "bad key"}
	})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestDo_GivesUpAfterAttempts(t *testing.T) {
	logger := zaptest.NewLogger(t)
	policy := Policy{Attempts: 2, Backoff: time.Millisecond}

	calls := 0
	err := Do(context.Background(), policy, logger, "test", func(ctx context.Context) error {
		calls++
		return &StatusError{StatusCode: http.StatusBadGateway}
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_AppliesPerAttemptTimeout(t *testing.T) {
	logger := zaptest.NewLogger(t)
	policy := Policy{Attempts: 1, Timeout: 10 * time.Millisecond}

	err := Do(context.Background(), policy, logger, "test", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"rate limited", &StatusError{StatusCode: http.StatusTooManyRequests}, true},
		{"server error", &StatusError{StatusCode: http.StatusInternalServerError}, true},
		{"bad request", &StatusError{StatusCode: http.StatusBadRequest}, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
