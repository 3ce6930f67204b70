package config

// Default values for configuration options. Chosen to be safe, reasonable
// starting points that work without any config file.
const (
	defaultRetrySeconds      = 5 * 60
	defaultCrashRetryMinutes = 30
	defaultScanInterval      = "1m"
	defaultReplyTimeout      = "5s"
	defaultShutdownTimeout   = "30s"
	defaultLogLevel          = "info"
	defaultLogFormat         = "auto"
	defaultConnectTimeout    = "10s"
	defaultDataTimeout       = "60s"
	defaultTokenFileName     = "token.json"
)

// defaultPhotoExtensions is the fixed spaces-classification set from the
// original implementation, kept as the default but overridable.
func defaultPhotoExtensions() []string {
	return []string{"jpg", "jpeg", "png", "tif", "tiff"}
}

// DefaultConfig returns a Config populated with all default values. Used both
// as the starting point for TOML decoding (so unset fields retain defaults)
// and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Retry:   defaultRetryConfig(),
		Filter:  defaultFilterConfig(),
		OAuth:   defaultOAuthConfig(),
		Logging: defaultLoggingConfig(),
		Network: defaultNetworkConfig(),
	}
}

func defaultRetryConfig() RetryConfig {
	return RetryConfig{
		RetrySeconds:      defaultRetrySeconds,
		CrashRetryMinutes: defaultCrashRetryMinutes,
		ScanInterval:      defaultScanInterval,
		ReplyTimeout:      defaultReplyTimeout,
		ShutdownTimeout:   defaultShutdownTimeout,
	}
}

func defaultFilterConfig() FilterConfig {
	return FilterConfig{
		PhotoExtensions: defaultPhotoExtensions(),
	}
}

func defaultOAuthConfig() OAuthConfig {
	return OAuthConfig{
		TokenPath: DefaultTokenPath(),
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}

func defaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		ConnectTimeout: defaultConnectTimeout,
		DataTimeout:    defaultDataTimeout,
	}
}
