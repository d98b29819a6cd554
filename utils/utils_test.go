package utils

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func TestRetrySucceedsAfterFailures(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}
	calls := 0
	err := r.Do(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhausted(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond}
	calls := 0
	err := r.Do(context.Background(), "op", func() error {
		calls++
		return errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Contains(t, err.Error(), "op failed after 2 attempts")
	assert.Equal(t, 2, calls)
}

func TestRetrySingleAttemptReturnsRawError(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 0}
	err := r.Do(context.Background(), "op", func() error { return errTransient })
	assert.Same(t, errTransient, err)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	r := &RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		Retryable:   func(err error) bool { return !errors.Is(err, permanent) },
	}
	calls := 0
	err := r.Do(context.Background(), "op", func() error {
		calls++
		return permanent
	})
	assert.Same(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour}
	calls := 0
	err := r.Do(ctx, "op", func() error {
		calls++
		cancel()
		return errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Contains(t, err.Error(), "interrupted")
	assert.Equal(t, 1, calls)
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter(&buf, "info").With("loader")

	log.Debug("hidden %d", 1)
	log.Info("loaded %d records", 42)
	log.Warn("careful")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "loaded 42 records")
	assert.Contains(t, out, "careful")
	assert.Contains(t, out, "loader")
}

func TestLoggerUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter(&buf, "chatty")
	log.Debug("hidden")
	log.Error("boom")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "boom")
}

func TestNopLogger(t *testing.T) {
	log := NewNopLogger()
	log.With("x").Error("nothing %s", "happens")
}
