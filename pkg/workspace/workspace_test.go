package workspace

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CreatesAndCanonicalizes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pkgwork")
	w, err := New(dir)
	require.NoError(t, err)
	_, err = os.Stat(w.Root())
	require.NoError(t, err)
}

func TestGetOrCreateDirs(t *testing.T) {
	w, err := New(t.TempDir())
	require.NoError(t, err)

	for _, get := range []func() (string, error){w.DownloadDir, w.BuildDir, w.PrototypeDir, w.ManifestDir} {
		p, err := get()
		require.NoError(t, err)
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestFilePathForURL(t *testing.T) {
	w, err := New(t.TempDir())
	require.NoError(t, err)

	u, err := url.Parse("https://example.com/dist/foo-1.0.tar.gz")
	require.NoError(t, err)

	p, err := w.FilePathForURL(u)
	require.NoError(t, err)
	assert.Equal(t, "foo-1.0.tar.gz", filepath.Base(p))
}

func TestFilePathForURL_NoFilenameErrors(t *testing.T) {
	w, err := New(t.TempDir())
	require.NoError(t, err)

	u, err := url.Parse("https://example.com/")
	require.NoError(t, err)

	_, err = w.FilePathForURL(u)
	assert.Error(t, err)
}
