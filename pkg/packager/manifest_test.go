package packager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openflowlabs/gatebuild/pkg/bundle"
	"github.com/openflowlabs/gatebuild/pkg/gbuild"
)

func fullPackage() *bundle.Package {
	return &bundle.Package{
		Name:           "library/zlib",
		Version:        "1.3",
		Revision:       "2",
		Summary:        "Compression library",
		Classification: "System/Libraries",
		ProjectURL:     "https://zlib.net",
		License:        "zlib",
		LicenseFile:    "LICENSE",
		Sources: []bundle.SourceSection{
			{Sources: []bundle.SourceNode{
				{Kind: bundle.SourceKindArchive, Archive: &bundle.ArchiveSource{Src: "https://zlib.net/zlib-1.3.tar.gz"}},
			}},
		},
	}
}

func TestRenderManifestVars_Defaults(t *testing.T) {
	pkg := fullPackage()
	pkg.Version = ""
	pkg.Revision = ""

	vars, err := renderManifestVars(pkg, nil)
	require.NoError(t, err)
	assert.Equal(t, "0.5.11", vars.Version)
	assert.Equal(t, "1", vars.Revision)
}

func TestRenderManifestVars_PullsGateVersionAndBranch(t *testing.T) {
	pkg := fullPackage()
	gate := &bundle.Gate{Version: "2024.0.0", Branch: "5.11"}

	vars, err := renderManifestVars(pkg, gate)
	require.NoError(t, err)
	assert.Equal(t, "2024.0.0", vars.BuildVersion)
	assert.Equal(t, "5.11", vars.BranchVersion)
}

func TestRenderManifestVars_MissingRequiredFieldFails(t *testing.T) {
	pkg := fullPackage()
	pkg.Summary = ""

	_, err := renderManifestVars(pkg, nil)
	require.Error(t, err)
	var missing *gbuild.MissingRequiredField
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "summary", missing.Field)
}

func TestRenderManifest_ContainsExpectedFields(t *testing.T) {
	pkg := fullPackage()
	out, err := renderManifest(pkg, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "pkg:/library/zlib@1.3")
	assert.Contains(t, out, `set name=pkg.summary value="Compression library"`)
	assert.Contains(t, out, "license LICENSE license='zlib'")
	assert.Contains(t, out, "https://zlib.net/zlib-1.3.tar.gz")
}

func TestRenderTransforms_SerializesActionsAndIncludes(t *testing.T) {
	out := renderTransforms([]bundle.Transform{
		{Action: "dir -> drop"},
		{Action: "file path=usr/share/doc/.* -> drop", Include: "doc.mog"},
	})
	assert.Contains(t, out, "<transform dir -> drop>")
	assert.Contains(t, out, "<transform file path=usr/share/doc/.* -> drop>")
	assert.Contains(t, out, "<include doc.mog>")
}
