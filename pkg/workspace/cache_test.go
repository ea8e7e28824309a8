package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveCache_StoreAndHas(t *testing.T) {
	cache, err := NewArchiveCache(t.TempDir())
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "download.tmp")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	assert.False(t, cache.Has("sample-1.0.tar.gz"))
	require.NoError(t, cache.Store("sample-1.0.tar.gz", src))
	assert.True(t, cache.Has("sample-1.0.tar.gz"))
}

func TestArchiveCache_Lock_ScopedToFilename(t *testing.T) {
	cache, err := NewArchiveCache(t.TempDir())
	require.NoError(t, err)

	lock := cache.Lock("sample-1.0.tar.gz")
	ok, err := lock.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, lock.Unlock())
}

func TestArchiveCache_Clear_RemovesEntriesKeepsRoot(t *testing.T) {
	root := t.TempDir()
	cache, err := NewArchiveCache(root)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "download.tmp")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))
	require.NoError(t, cache.Store("sample-1.0.tar.gz", src))

	require.NoError(t, cache.Clear())
	assert.False(t, cache.Has("sample-1.0.tar.gz"))
	_, err = os.Stat(root)
	assert.NoError(t, err)
}
