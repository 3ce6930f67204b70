package jobexecutor

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/JohnJocoo/gdrive-dormouse/internal/drive"
)

// DirectoryCache memoizes logical remote directory path to Drive folder id,
// so repeated uploads into the same directory don't re-walk the remote tree.
// Cleared after any per-file upload failure (an upload failure may reflect
// remote state changing under us).
type DirectoryCache struct {
	mu  sync.Mutex
	ids map[string]string
}

// NewDirectoryCache returns an empty cache.
func NewDirectoryCache() *DirectoryCache {
	return &DirectoryCache{ids: make(map[string]string)}
}

// Clear empties the cache.
func (c *DirectoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.ids)
}

func (c *DirectoryCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.ids[key]

	return id, ok
}

func (c *DirectoryCache) set(key, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ids[key] = id
}

// resolveParent returns the Drive folder id for the logical remote directory
// path join(destination, relDir), creating any missing folders along the
// way. An empty joined path resolves to drive.RootID. The walk is an
// explicit loop over path components, never recursive.
func resolveParent(
	ctx context.Context, cap RemoteDriveCapability, cache *DirectoryCache, destination, relDir string,
) (string, error) {
	full := path.Join(destination, relDir)
	if full == "" || full == "." {
		return drive.RootID, nil
	}

	if id, ok := cache.get(full); ok {
		return id, nil
	}

	components := normalizedComponents(full)

	currentID := drive.RootID

	for _, comp := range components {
		id, err := findOrCreateChild(ctx, cap, currentID, comp)
		if err != nil {
			return "", fmt.Errorf("jobexecutor: resolving remote folder %q: %w", full, err)
		}

		currentID = id
	}

	cache.set(full, currentID)

	return currentID, nil
}

func findOrCreateChild(ctx context.Context, cap RemoteDriveCapability, parentID, title string) (string, error) {
	children, err := cap.ListChildren(ctx, parentID)
	if err != nil {
		return "", err
	}

	for _, child := range children {
		if child.Title == title {
			return child.ID, nil
		}
	}

	return cap.CreateFolder(ctx, drive.NewFolder{Title: title, ParentID: parentID})
}

func normalizedComponents(full string) []string {
	parts := strings.Split(full, "/")
	components := make([]string, 0, len(parts))

	for _, p := range parts {
		if p == "" {
			continue
		}

		components = append(components, norm.NFC.String(p))
	}

	return components
}
