package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testLogger returns a slog.Logger that discards output, used across the
// package's tests so assertions focus on returned values/errors.
func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeTestConfig writes body to a temp config.toml and returns its path.
func writeTestConfig(t *testing.T, body string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	return path
}

func TestDefaultConfig_AllFieldsPopulated(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	require.Equal(t, 300, cfg.Retry.RetrySeconds)
	require.Equal(t, 30, cfg.Retry.CrashRetryMinutes)
	require.Equal(t, "1m", cfg.Retry.ScanInterval)
	require.Equal(t, "5s", cfg.Retry.ReplyTimeout)
	require.Equal(t, "30s", cfg.Retry.ShutdownTimeout)

	require.Equal(t, []string{"jpg", "jpeg", "png", "tif", "tiff"}, cfg.Filter.PhotoExtensions)
	require.Empty(t, cfg.Filter.ExceptionNames)

	require.NotEmpty(t, cfg.OAuth.TokenPath)

	require.Equal(t, "info", cfg.Logging.LogLevel)
	require.Equal(t, "auto", cfg.Logging.LogFormat)
	require.Empty(t, cfg.Logging.LogFile)

	require.Equal(t, "10s", cfg.Network.ConnectTimeout)
	require.Equal(t, "60s", cfg.Network.DataTimeout)
}
