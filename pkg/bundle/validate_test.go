package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openflowlabs/gatebuild/pkg/gbuild"
)

func TestValidate_EmptyNameRejected(t *testing.T) {
	err := Validate(&Package{})
	require.Error(t, err)
	var se *gbuild.SchemaError
	assert.ErrorAs(t, err, &se)
}

func TestValidate_SecondGitSourceNeedsDirectory(t *testing.T) {
	pkg := &Package{
		Name: "p",
		Sources: []SourceSection{
			{Sources: []SourceNode{
				{Kind: SourceKindGit, Git: &GitSource{Repository: "https://example.com/a.git"}},
				{Kind: SourceKindGit, Git: &GitSource{Repository: "https://example.com/b.git"}},
			}},
		},
	}
	err := Validate(pkg)
	require.Error(t, err)

	pkg.Sources[0].Sources[1].Git.Directory = "b"
	require.NoError(t, Validate(pkg))
}

func TestValidate_LicenseMustBeValidSPDX(t *testing.T) {
	good := &Package{Name: "p", License: "Apache-2.0"}
	assert.NoError(t, Validate(good))

	bad := &Package{Name: "p", License: "Not A Real License"}
	assert.Error(t, Validate(bad))
}
