package config

import (
	"fmt"
	"io"
	"strings"
)

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. Powers the "config show" command.
func RenderEffective(cfg *Config, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration\n\n")
	ew.printf("jobs_root   = %q\n", cfg.JobsRoot)
	ew.printf("destination = %q\n\n", cfg.Destination)

	renderRetrySection(ew, &cfg.Retry)
	renderFilterSection(ew, &cfg.Filter)
	renderOAuthSection(ew, &cfg.OAuth)
	renderLoggingSection(ew, &cfg.Logging)
	renderNetworkSection(ew, &cfg.Network)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error, so callers
// can chain printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderRetrySection(ew *errWriter, r *RetryConfig) {
	ew.printf("[retry]\n")
	ew.printf("  retry_seconds       = %d\n", r.RetrySeconds)
	ew.printf("  crash_retry_minutes = %d\n", r.CrashRetryMinutes)
	ew.printf("  scan_interval       = %q\n", r.ScanInterval)
	ew.printf("  reply_timeout       = %q\n", r.ReplyTimeout)
	ew.printf("  shutdown_timeout    = %q\n", r.ShutdownTimeout)
	ew.printf("\n")
}

func renderFilterSection(ew *errWriter, f *FilterConfig) {
	ew.printf("[filter]\n")

	if len(f.ExceptionNames) > 0 {
		ew.printf("  exception_names  = [%s]\n", joinQuoted(f.ExceptionNames))
	}

	ew.printf("  photo_extensions = [%s]\n", joinQuoted(f.PhotoExtensions))
	ew.printf("\n")
}

func renderOAuthSection(ew *errWriter, o *OAuthConfig) {
	ew.printf("[oauth]\n")
	ew.printf("  client_id  = %q\n", o.ClientID)
	ew.printf("  token_path = %q\n", o.TokenPath)
	ew.printf("\n")
}

func renderLoggingSection(ew *errWriter, l *LoggingConfig) {
	ew.printf("[logging]\n")
	ew.printf("  log_level  = %q\n", l.LogLevel)
	ew.printf("  log_format = %q\n", l.LogFormat)

	if l.LogFile != "" {
		ew.printf("  log_file   = %q\n", l.LogFile)
	}

	ew.printf("\n")
}

func renderNetworkSection(ew *errWriter, n *NetworkConfig) {
	ew.printf("[network]\n")
	ew.printf("  connect_timeout = %q\n", n.ConnectTimeout)
	ew.printf("  data_timeout    = %q\n", n.DataTimeout)
}

func joinQuoted(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}

	return strings.Join(quoted, ", ")
}
