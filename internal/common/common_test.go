package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/pouchspec/internal/service"
)

func TestStateError(t *testing.T) {
	err := NewStateError("t1", "approved", "approve")
	assert.EqualError(t, err, "task t1: cannot approve while approved: illegal state transition")
	assert.ErrorIs(t, err, ErrIllegalTransition)

	var se *StateError
	require.ErrorAs(t, fmt.Errorf("wrapped: %w", err), &se)
	assert.Equal(t, "t1", se.TaskID)

	concurrent := &StateError{TaskID: "t2", From: "pending", Attempted: "update", Err: ErrConcurrentModification}
	assert.ErrorIs(t, concurrent, ErrConcurrentModification)
	assert.NotErrorIs(t, concurrent, ErrIllegalTransition)
}

func TestDataIntegrityError(t *testing.T) {
	err := NewDataIntegrityError("process decision", ErrNotFound)
	assert.ErrorIs(t, err, ErrDataIntegrity)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "process decision")

	var die *DataIntegrityError
	assert.ErrorAs(t, err, &die)
}

func TestUserError(t *testing.T) {
	err := NewUserError("could not open database", ErrDatabaseCorrupted)
	assert.EqualError(t, err, "could not open database: database corrupted")
	assert.ErrorIs(t, err, ErrDatabaseCorrupted)
	assert.EqualError(t, NewUserError("plain", nil), "plain")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&RetryableError{Err: errors.New("busy"), Retryable: true}))
	assert.True(t, IsRetryable(fmt.Errorf("tx: %w", &RetryableError{Err: errors.New("busy"), Retryable: true})))
	assert.False(t, IsRetryable(&RetryableError{Err: errors.New("bad"), Retryable: false}))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(context.Canceled))
}

func TestWithRetry(t *testing.T) {
	opts := service.RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

	t.Run("succeeds after retryable failures", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return &RetryableError{Err: errors.New("busy"), Retryable: true}
			}
			return nil
		}, opts)
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on non retryable error", func(t *testing.T) {
		calls := 0
		sentinel := errors.New("fatal")
		err := WithRetry(context.Background(), func() error {
			calls++
			return sentinel
		}, opts)
		require.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return &RetryableError{Err: errors.New("busy"), Retryable: true}
		}, opts)
		require.ErrorIs(t, err, ErrMaxRetries)
		assert.Equal(t, 3, calls)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := WithRetry(ctx, func() error {
			return &RetryableError{Err: errors.New("busy"), Retryable: true}
		}, service.RetryOptions{MaxAttempts: 5, InitialDelay: time.Second})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, slog.LevelInfo, "json")
	require.NoError(t, err)
	logger.Info("hello", "task_id", "t1")
	assert.Contains(t, buf.String(), `"task_id":"t1"`)

	_, err = NewLogger(&buf, slog.LevelInfo, "xml")
	require.ErrorIs(t, err, ErrInvalidConfig)
}
