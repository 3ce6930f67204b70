package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinuxConfigDir_RespectsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/xdg")
	assert.Equal(t, filepath.Join("/custom/xdg", appName), linuxConfigDir("/home/user"))
}

func TestLinuxConfigDir_FallsBackToHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	assert.Equal(t, filepath.Join("/home/user", ".config", appName), linuxConfigDir("/home/user"))
}

func TestDefaultConfigPath_JoinsConfigFileName(t *testing.T) {
	path := DefaultConfigPath()
	assert.True(t, path == "" || filepath.Base(path) == configFileName)
}

func TestDefaultTokenPath_JoinsFileName(t *testing.T) {
	path := DefaultTokenPath()
	assert.True(t, path == "" || filepath.Base(path) == defaultTokenFileName)
}

func TestDefaultHistoryDBPath_JoinsFileName(t *testing.T) {
	path := DefaultHistoryDBPath()
	assert.True(t, path == "" || filepath.Base(path) == "history.db")
}

func TestDefaultPIDPath_JoinsFileName(t *testing.T) {
	path := DefaultPIDPath()
	assert.True(t, path == "" || filepath.Base(path) == "dormouse.pid")
}
