package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohnJocoo/gdrive-dormouse/internal/config"
)

func testLoggerMain(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestCountJobDirs_CountsOnlyDirectories(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.Mkdir(filepath.Join(dir, "job-a"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "job-b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray-file"), nil, 0o644))

	n, err := countJobDirs(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCountJobDirs_EmptyRootReturnsZero(t *testing.T) {
	n, err := countJobDirs("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCountJobDirs_NonexistentRootErrors(t *testing.T) {
	_, err := countJobDirs(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestCheckTokenState_MissingTokenFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OAuth.TokenPath = filepath.Join(t.TempDir(), "token.json")

	state := checkTokenState(context.Background(), cfg, testLoggerMain(t))
	assert.Equal(t, tokenStateMissing, state)
}

func TestNewStatusCmd_Structure(t *testing.T) {
	cmd := newStatusCmd()
	assert.Equal(t, "status", cmd.Name())
	assert.NotEmpty(t, cmd.Short)
	assert.NotNil(t, cmd.RunE)
}
