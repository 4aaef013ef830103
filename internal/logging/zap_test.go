package logging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_LevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapLogger(zap.New(core))
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)

	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "dbg", entries[0].Message)
	assert.EqualValues(t, 1, entries[0].ContextMap()["a"])
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.EqualValues(t, 4, entries[3].ContextMap()["d"])
}

func TestZapLogger_With_AddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewZapLogger(zap.New(core)).With("component", "syncer")

	log.Info(context.Background(), "tick", "n", 3)
	log.Debug(context.Background(), "hidden")

	entries := logs.AllUntimed()
	require.Len(t, entries, 1)
	ctxMap := entries[0].ContextMap()
	assert.Equal(t, "syncer", ctxMap["component"])
	assert.EqualValues(t, 3, ctxMap["n"])
}

func TestNew_Backends(t *testing.T) {
	for _, backend := range []string{"", "slog", "zap"} {
		t.Run("backend="+backend, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sync.log")
			log, closer, err := New(Options{Backend: backend, Level: "debug", File: path, MaxSizeMB: 1})
			require.NoError(t, err)

			log.Info(context.Background(), "hello", "k", "v")
			require.NoError(t, closer.Close())

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Contains(t, string(data), "hello")
		})
	}
}

func TestNew_Errors(t *testing.T) {
	_, _, err := New(Options{Backend: "log4j"})
	require.Error(t, err)

	_, _, err = New(Options{Backend: "slog", Level: "loud"})
	require.Error(t, err)

	_, _, err = New(Options{Backend: "zap", Level: "loud"})
	require.Error(t, err)
}
