package jobexecutor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/JohnJocoo/gdrive-dormouse/internal/uploadsm"
)

// listFiles walks dataDir recursively and returns every regular file found,
// skipping symlinks (file or directory) and any entry whose name is in
// exceptionNames.
func listFiles(dataDir string, exceptionNames map[string]struct{}) ([]uploadsm.FileEntry, error) {
	var entries []uploadsm.FileEntry

	walkErr := filepath.WalkDir(dataDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if p == dataDir {
			return nil
		}

		if _, skip := exceptionNames[d.Name()]; skip {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if d.IsDir() {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}

		entries = append(entries, uploadsm.FileEntry{Path: p, Size: info.Size()})

		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("jobexecutor: listing %s: %w", dataDir, walkErr)
	}

	return entries, nil
}

// pathExists reports whether p exists on disk.
func pathExists(p string) bool {
	_, err := os.Stat(p)

	return err == nil
}
