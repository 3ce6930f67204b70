package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// WriteDefault writes a fully-populated default config file to path, creating
// parent directories as needed. Used by first-run setup so the file on disk
// documents every available key, not just the ones a user has touched.
func WriteDefault(path string) error {
	return WriteConfig(DefaultConfig(), path)
}

// WriteConfig serializes cfg as TOML and writes it to path atomically (via a
// temp file in the same directory, then rename), mirroring the token file's
// write discipline so a crash mid-write never corrupts the existing config.
func WriteConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.toml.tmp")
	if err != nil {
		return fmt.Errorf("creating temp config file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("writing temp config file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("closing temp config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("renaming temp config file into place: %w", err)
	}

	return nil
}
