package logger_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/phrazzld/tokensmith/internal/config"
	"github.com/phrazzld/tokensmith/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		want  slog.Level
		valid bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"Warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
	}

	for _, tc := range tests {
		level, ok := logger.ParseLevel(tc.name)
		assert.Equal(t, tc.want, level, tc.name)
		assert.Equal(t, tc.valid, ok, tc.name)
	}
}

func TestSetup(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	log, err := logger.Setup(config.ServerConfig{LogLevel: "warn"})
	require.NoError(t, err)
	require.NotNil(t, log)

	assert.Same(t, log, slog.Default())
	assert.True(t, log.Enabled(context.Background(), slog.LevelWarn))
	assert.False(t, log.Enabled(context.Background(), slog.LevelInfo))
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	log, buf := logger.GetTestLogger(t)
	fallback, fallbackBuf := logger.GetTestLogger(t)

	ctx := logger.WithLogger(context.Background(), log)
	logger.FromContextOrDefault(ctx, fallback).Info("from context")
	logger.AssertLogContains(t, buf, "from context")
	assert.Empty(t, fallbackBuf.String())

	logger.FromContextOrDefault(context.Background(), fallback).Info("from fallback")
	logger.AssertLogContains(t, fallbackBuf, "from fallback")
}

func TestFromContext_RequestID(t *testing.T) {
	t.Parallel()

	log, buf := logger.GetTestLogger(t)
	ctx := logger.WithLogger(context.Background(), log)
	ctx = logger.WithRequestID(ctx, "req-42")

	assert.Equal(t, "req-42", logger.GetRequestID(ctx))
	logger.FromContext(ctx).Info("tagged")

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-42", entries[0]["request_id"])
	assert.Equal(t, "tagged", entries[0]["msg"])
}
