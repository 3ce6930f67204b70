package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDefault_CreatesFileAndDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	require.NoError(t, WriteDefault(path))

	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestWriteConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := validConfig()
	cfg.Retry.RetrySeconds = 600

	require.NoError(t, WriteConfig(cfg, path))

	loaded, err := Load(path, testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, cfg.JobsRoot, loaded.JobsRoot)
	assert.Equal(t, 600, loaded.Retry.RetrySeconds)
}

func TestWriteConfig_OverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	require.NoError(t, WriteConfig(validConfig(), path))

	cfg2 := validConfig()
	cfg2.Destination = "/Backups/other"
	require.NoError(t, WriteConfig(cfg2, path))

	loaded, err := Load(path, testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "/Backups/other", loaded.Destination)
}

func TestWriteConfig_NoLeftoverTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	require.NoError(t, WriteConfig(validConfig(), path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "config.toml", entries[0].Name())
}
