package jobexecutor

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFiles_WalksNestedTree(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("world!"), 0o600))

	entries, err := listFiles(dir, map[string]struct{}{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	sizes := map[string]int64{}
	for _, e := range entries {
		sizes[filepath.Base(e.Path)] = e.Size
	}

	assert.Equal(t, int64(5), sizes["a.txt"])
	assert.Equal(t, int64(6), sizes["b.txt"])
}

func TestListFiles_SkipsExceptionNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "config"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".DS_Store"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("x"), 0o600))

	entries, err := listFiles(dir, map[string]struct{}{".git": {}, ".DS_Store": {}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep.txt", filepath.Base(entries[0].Path))
}

func TestListFiles_SkipsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "real.txt"), []byte("x"), 0o600))
	require.NoError(t, os.Symlink(filepath.Join(dir, "real.txt"), filepath.Join(dir, "link.txt")))

	entries, err := listFiles(dir, map[string]struct{}{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "real.txt", filepath.Base(entries[0].Path))
}

func TestListFiles_EmptyDir(t *testing.T) {
	dir := t.TempDir()

	entries, err := listFiles(dir, map[string]struct{}{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}
