package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadFile_HashMatchesContent(t *testing.T) {
	w, err := New(t.TempDir())
	require.NoError(t, err)

	u, err := url.Parse("https://example.com/artifact-1.0.tar.gz")
	require.NoError(t, err)

	d, err := w.OpenDownload(u, HasherSHA256)
	require.NoError(t, err)

	content := "hello, gatebuild"
	n, err := d.ReadFrom(strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)
	require.NoError(t, d.Close())

	want := sha256.Sum256([]byte(content))
	assert.Equal(t, hex.EncodeToString(want[:]), d.Hash())

	data, err := os.ReadFile(d.Path())
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestDownloadFile_HashKindSticky(t *testing.T) {
	w, err := New(t.TempDir())
	require.NoError(t, err)
	u, err := url.Parse("https://example.com/artifact-2.0.tar.gz")
	require.NoError(t, err)

	d, err := w.OpenDownload(u, HasherSHA512)
	require.NoError(t, err)
	assert.Equal(t, HasherSHA512, d.Kind())
}

func TestDownloadFile_Discard(t *testing.T) {
	w, err := New(t.TempDir())
	require.NoError(t, err)
	u, err := url.Parse("https://example.com/partial.tar.gz")
	require.NoError(t, err)

	d, err := w.OpenDownload(u, HasherSHA256)
	require.NoError(t, err)
	_, _ = d.ReadFrom(strings.NewReader("partial"))
	require.NoError(t, d.Discard())

	_, err = os.Stat(d.Path())
	assert.True(t, os.IsNotExist(err))
}
