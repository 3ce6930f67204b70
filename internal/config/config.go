// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for gdrive-dormouse.
package config

// Config is the top-level configuration structure for the uploader daemon.
type Config struct {
	JobsRoot    string       `toml:"jobs_root"`
	Destination string       `toml:"destination"`
	Retry       RetryConfig  `toml:"retry"`
	Filter      FilterConfig `toml:"filter"`
	OAuth       OAuthConfig  `toml:"oauth"`
	Logging     LoggingConfig `toml:"logging"`
	Network     NetworkConfig `toml:"network"`
}

// RetryConfig controls the FUSM retry policy and supervisor timing.
type RetryConfig struct {
	RetrySeconds      int    `toml:"retry_seconds"`
	CrashRetryMinutes int    `toml:"crash_retry_minutes"`
	ScanInterval      string `toml:"scan_interval"`
	ReplyTimeout      string `toml:"reply_timeout"`
	ShutdownTimeout   string `toml:"shutdown_timeout"`
}

// FilterConfig controls which local entries are skipped while listing a
// job's data/ tree, and how files are classified for remote spaces.
type FilterConfig struct {
	ExceptionNames  []string `toml:"exception_names"`
	PhotoExtensions []string `toml:"photo_extensions"`
}

// OAuthConfig holds the OAuth2 client settings used to authenticate against
// Google Drive.
type OAuthConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	TokenPath    string `toml:"token_path"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"log_file"`
}

// NetworkConfig controls HTTP client timeouts for the drive capability.
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	DataTimeout    string `toml:"data_timeout"`
}
