package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_DisabledDiscards(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(Options{Enabled: false, Output: &buf}))
	Info("hello")
	assert.Empty(t, buf.String())
}

func TestInit_TextAndJSON(t *testing.T) {
	t.Cleanup(func() { _ = Init(Options{}) })

	var text bytes.Buffer
	require.NoError(t, Init(Options{Enabled: true, Output: &text}))
	Info("grew heap", "bytes", 4096)
	Debug("hidden")
	assert.Contains(t, text.String(), "msg=\"grew heap\" bytes=4096")
	assert.NotContains(t, text.String(), "hidden")

	var js bytes.Buffer
	require.NoError(t, Init(Options{Enabled: true, JSON: true, Level: slog.LevelDebug, Output: &js}))
	Debug("shown", "n", 1)
	assert.Contains(t, js.String(), `"msg":"shown"`)
	assert.Contains(t, js.String(), `"n":1`)
}

func TestInit_LogDir(t *testing.T) {
	t.Cleanup(func() { _ = Init(Options{}) })
	dir := t.TempDir()

	require.NoError(t, Init(Options{Enabled: true, LogDir: dir}))
	Warn("to file")

	name := filepath.Join(dir, logPrefix+time.Now().Format("2006-01-02")+logSuffix)
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestInit_ReinitClosesLogFile(t *testing.T) {
	t.Cleanup(func() { _ = Init(Options{}) })
	dir := t.TempDir()

	require.NoError(t, Init(Options{Enabled: true, LogDir: dir}))
	first := logFile
	require.NotNil(t, first)

	require.NoError(t, Init(Options{Enabled: true, LogDir: dir}))
	second := logFile
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
	require.ErrorIs(t, first.Close(), os.ErrClosed, "previous file is closed on re-init")

	var buf bytes.Buffer
	require.NoError(t, Init(Options{Enabled: true, Output: &buf}))
	assert.Nil(t, logFile)
	require.ErrorIs(t, second.Close(), os.ErrClosed)
	Info("to buffer")
	assert.Contains(t, buf.String(), "to buffer")
}

func TestCleanOldLogs(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	old := logPrefix + "2024-01-01" + logSuffix
	recent := logPrefix + "2024-02-25" + logSuffix
	other := "notes.txt"
	for _, name := range []string{old, recent, other} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	cleanOldLogs(dir, now)

	assert.NoFileExists(t, filepath.Join(dir, old))
	assert.FileExists(t, filepath.Join(dir, recent))
	assert.FileExists(t, filepath.Join(dir, other))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
