package bundle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBundle(t *testing.T, pkg *Package) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "package.kdl")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, WritePackage(f, pkg))
	return path
}

func TestOpen_ValidatesOnLoad(t *testing.T) {
	path := writeBundle(t, &Package{Name: "sample", Version: "1.0"})
	b, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "sample", b.Package.Name)
	assert.Equal(t, "1.0", b.Package.Version)
}

func TestBundle_AddSource_PersistsAndRereads(t *testing.T) {
	path := writeBundle(t, &Package{Name: "sample"})
	b, err := Open(path)
	require.NoError(t, err)

	err = b.AddSource(SourceNode{Kind: SourceKindArchive, Archive: &ArchiveSource{
		Src:    "https://example.com/sample-1.0.tar.gz",
		SHA256: "abc123",
	}})
	require.NoError(t, err)

	require.Len(t, b.Package.Sources, 1)
	require.Len(t, b.Package.Sources[0].Sources, 1)
	assert.Equal(t, "https://example.com/sample-1.0.tar.gz", b.Package.Sources[0].Sources[0].Archive.Src)

	reopened, err := Open(path)
	require.NoError(t, err)
	require.Len(t, reopened.Package.Sources[0].Sources, 1)
	assert.Equal(t, "abc123", reopened.Package.Sources[0].Sources[0].Archive.SHA256)
}

func TestBundle_SetField_Persists(t *testing.T) {
	path := writeBundle(t, &Package{Name: "sample"})
	b, err := Open(path)
	require.NoError(t, err)

	err = b.SetField(func(p *Package) { p.Summary = "updated summary" })
	require.NoError(t, err)

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "updated summary", reopened.Package.Summary)
}
