package logging

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"cdr.dev/slog/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/ulogme/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tc := range tests {
		got, err := ParseLevel(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewWritesToStderrAndFile(t *testing.T) {
	var stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "ulogme.log")

	logger, closeLog, err := New(&stderr, config.LoggingConfig{
		Level:      "info",
		File:       path,
		MaxSize:    1,
		MaxBackups: 1,
	}, false)
	require.NoError(t, err)

	logger.Info(context.Background(), "rebuild finished", slog.F("rewritten", 2))
	logger.Debug(context.Background(), "hidden at info level")
	logger.Sync()
	closeLog()

	assert.Contains(t, stderr.String(), "rebuild finished")
	assert.NotContains(t, stderr.String(), "hidden at info level")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rebuild finished")
}

func TestNewVerboseEnablesDebug(t *testing.T) {
	var stderr bytes.Buffer
	logger, closeLog, err := New(&stderr, config.LoggingConfig{Level: "error"}, true)
	require.NoError(t, err)
	defer closeLog()

	logger.Debug(context.Background(), "debug line")
	logger.Sync()
	assert.Contains(t, stderr.String(), "debug line")
}

func TestCloseGuardRejectsLateWrites(t *testing.T) {
	g := &closeGuard{w: nopWriteCloser{io.Discard}}
	_, err := g.Write([]byte("a"))
	require.NoError(t, err)
	require.NoError(t, g.Close())
	_, err = g.Write([]byte("b"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
