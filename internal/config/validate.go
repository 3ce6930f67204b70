package config

import (
	"errors"
	"fmt"
	"time"
)

// Validation range constants. retry_seconds must lie in [30s, 7d] per the
// FUSM contract (§4.2) — this is a hard correctness bound, not a style
// preference, so it is enforced here rather than left to the caller.
const (
	minRetrySeconds      = 30
	maxRetrySeconds      = 7 * 24 * 60 * 60
	minCrashRetryMinutes = 1
	minScanInterval      = 1 * time.Second
	minReplyTimeout      = 1 * time.Second
	minShutdownTimeout   = 1 * time.Second
)

// Validate checks all configuration values and returns all errors found. It
// accumulates every error rather than stopping at the first, so users see a
// complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.JobsRoot == "" {
		errs = append(errs, errors.New("jobs_root must be set"))
	}

	errs = append(errs, validateRetry(&cfg.Retry)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)

	return errors.Join(errs...)
}

func validateRetry(r *RetryConfig) []error {
	var errs []error

	if r.RetrySeconds < minRetrySeconds || r.RetrySeconds > maxRetrySeconds {
		errs = append(errs, fmt.Errorf(
			"retry.retry_seconds must be between %d and %d, got %d",
			minRetrySeconds, maxRetrySeconds, r.RetrySeconds))
	}

	if r.CrashRetryMinutes < minCrashRetryMinutes {
		errs = append(errs, fmt.Errorf(
			"retry.crash_retry_minutes must be at least %d, got %d",
			minCrashRetryMinutes, r.CrashRetryMinutes))
	}

	if d, err := time.ParseDuration(r.ScanInterval); err != nil || d < minScanInterval {
		errs = append(errs, fmt.Errorf("retry.scan_interval %q invalid or below %s", r.ScanInterval, minScanInterval))
	}

	if d, err := time.ParseDuration(r.ReplyTimeout); err != nil || d < minReplyTimeout {
		errs = append(errs, fmt.Errorf("retry.reply_timeout %q invalid or below %s", r.ReplyTimeout, minReplyTimeout))
	}

	if d, err := time.ParseDuration(r.ShutdownTimeout); err != nil || d < minShutdownTimeout {
		errs = append(errs, fmt.Errorf(
			"retry.shutdown_timeout %q invalid or below %s", r.ShutdownTimeout, minShutdownTimeout))
	}

	return errs
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	switch l.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.log_level %q is not one of debug, info, warn, error", l.LogLevel))
	}

	switch l.LogFormat {
	case "auto", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.log_format %q is not one of auto, json, text", l.LogFormat))
	}

	return errs
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	if _, err := time.ParseDuration(n.ConnectTimeout); err != nil {
		errs = append(errs, fmt.Errorf("network.connect_timeout %q invalid: %w", n.ConnectTimeout, err))
	}

	if _, err := time.ParseDuration(n.DataTimeout); err != nil {
		errs = append(errs, fmt.Errorf("network.data_timeout %q invalid: %w", n.DataTimeout, err))
	}

	return errs
}
