package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are treated as fatal errors with "did you
// mean?" suggestions.
func Load(path string, logger *slog.Logger) (*Config, error) {
	logger.Debug("loading config file", slog.String("path", path))

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger.Debug("config file parsed successfully", slog.String("path", path))

	return cfg, nil
}

// LoadOrDefault loads the config at path, falling back to DefaultConfig (with
// JobsRoot unset) if the file does not exist. A missing file is not an error
// for read-only commands such as "status" or "config show".
func LoadOrDefault(path string, logger *slog.Logger) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	cfg, err := Load(path, logger)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || isReadNotExist(err) {
			logger.Debug("no config file found, using defaults", slog.String("path", path))

			return DefaultConfig(), nil
		}

		return nil, err
	}

	return cfg, nil
}

// isReadNotExist unwraps the fmt.Errorf("reading config file %s: %w") chain
// Load produces for os.ReadFile's not-exist error.
func isReadNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
