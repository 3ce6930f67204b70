package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.JobsRoot = "/srv/dormouse/jobs"
	cfg.Destination = "/Backups/dormouse"

	return cfg
}

func TestValidate_ValidConfigPasses(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidate_MissingJobsRoot(t *testing.T) {
	cfg := validConfig()
	cfg.JobsRoot = ""

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jobs_root")
}

func TestValidate_RetrySecondsBelowMinimum(t *testing.T) {
	cfg := validConfig()
	cfg.Retry.RetrySeconds = 10

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry_seconds")
}

func TestValidate_RetrySecondsAboveMaximum(t *testing.T) {
	cfg := validConfig()
	cfg.Retry.RetrySeconds = 8 * 24 * 60 * 60

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry_seconds")
}

func TestValidate_CrashRetryMinutesZero(t *testing.T) {
	cfg := validConfig()
	cfg.Retry.CrashRetryMinutes = 0

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crash_retry_minutes")
}

func TestValidate_InvalidScanInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Retry.ScanInterval = "not-a-duration"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan_interval")
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.LogLevel = "verbose"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.LogFormat = "xml"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_format")
}

func TestValidate_InvalidNetworkTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Network.ConnectTimeout = "soon"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect_timeout")
}

func TestValidate_AccumulatesMultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.JobsRoot = ""
	cfg.Retry.RetrySeconds = 1
	cfg.Logging.LogLevel = "bogus"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jobs_root")
	assert.Contains(t, err.Error(), "retry_seconds")
	assert.Contains(t, err.Error(), "log_level")
}
