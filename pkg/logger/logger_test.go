package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetCapturesHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(nil) })

	Info("path started", zap.String("tourist_id", "T1"))
	Named("alert-worker").Warn("archive failed")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "path started", entries[0].Message)
	assert.Equal(t, "T1", entries[0].ContextMap()["tourist_id"])
	assert.Equal(t, "alert-worker", entries[1].LoggerName)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestSetNilFallsBackToNop(t *testing.T) {
	Set(nil)
	assert.NotPanics(t, func() { Error("dropped") })
}

func TestInitWritesRotatingFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "overwatch.log")
	lg, err := Init(LogConfig{Level: "debug", Format: "json", Filename: file})
	require.NoError(t, err)
	t.Cleanup(func() { Set(nil) })

	assert.True(t, lg.Core().Enabled(zapcore.DebugLevel))
	Info("written to file")
	_ = lg.Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestInitDefaultsToInfo(t *testing.T) {
	lg, err := Init(LogConfig{Level: "bogus"})
	require.NoError(t, err)
	t.Cleanup(func() { Set(nil) })

	assert.False(t, lg.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, lg.Core().Enabled(zapcore.InfoLevel))
}
