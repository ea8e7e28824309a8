package bundle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGate(t *testing.T, gate *Gate) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "gate.kdl")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, WriteGate(f, gate))
	return path
}

func TestOpenGate_ParsesPackages(t *testing.T) {
	path := writeGate(t, &Gate{
		Name:         "userland",
		Distribution: DistributionTarball,
		Packages:     []Package{{Name: "sample", Summary: "stub"}},
	})
	gate, err := OpenGate(path)
	require.NoError(t, err)
	assert.Equal(t, DistributionTarball, gate.Distribution)
	require.Len(t, gate.Packages, 1)
}

func TestGate_Resolve_MergesStubOntoBundle(t *testing.T) {
	gate := &Gate{
		Packages: []Package{
			{Name: "sample", Prefix: "/usr", Build: BuildSection{Kind: BuildKindNoBuild}},
		},
	}
	b := &Package{
		Name:    "sample",
		Version: "1.0",
		Build: BuildSection{
			Kind:      BuildKindConfigure,
			Configure: &ConfigureSection{},
		},
	}

	merged, err := gate.Resolve(b)
	require.NoError(t, err)
	assert.Equal(t, "/usr", merged.Prefix)
	assert.Equal(t, "1.0", merged.Version)
	assert.Equal(t, BuildKindConfigure, merged.Build.Kind)
}

func TestGate_Resolve_StubOverridesBundleScalars(t *testing.T) {
	gate := &Gate{
		Packages: []Package{
			{Name: "sample", Summary: "gate-wide summary", Build: BuildSection{Kind: BuildKindNoBuild}},
		},
	}
	b := &Package{Name: "sample", Summary: "bundle-local summary", Version: "1.0"}

	merged, err := gate.Resolve(b)
	require.NoError(t, err)
	// The stub is release-wide policy: its set fields must win over
	// the bundle's, not the other way around.
	assert.Equal(t, "gate-wide summary", merged.Summary)
	assert.Equal(t, "1.0", merged.Version)
}

func TestGate_Resolve_ConfigureOptionOrderAndStubCompilerWins(t *testing.T) {
	gate := &Gate{
		Packages: []Package{
			{
				Name: "sample",
				Build: BuildSection{
					Kind:      BuildKindConfigure,
					Configure: &ConfigureSection{ConfigureOptions: ConfigureOptions{Options: []string{"Y"}, Compiler: "gcc"}},
				},
			},
		},
	}
	b := &Package{
		Name: "sample",
		Build: BuildSection{
			Kind:      BuildKindConfigure,
			Configure: &ConfigureSection{ConfigureOptions: ConfigureOptions{Options: []string{"X"}, Linker: "ld.gold"}},
		},
	}

	merged, err := gate.Resolve(b)
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y"}, merged.Build.Configure.Options)
	assert.Equal(t, "gcc", merged.Build.Configure.Compiler)
	assert.Equal(t, "ld.gold", merged.Build.Configure.Linker)
}

func TestGate_Resolve_DoesNotMutateBundleOrStoredStub(t *testing.T) {
	gate := &Gate{
		Packages: []Package{
			{
				Name: "sample",
				Build: BuildSection{
					Kind:      BuildKindConfigure,
					Configure: &ConfigureSection{ConfigureOptions: ConfigureOptions{Options: []string{"Y"}}},
				},
			},
		},
	}
	b := &Package{
		Name: "sample",
		Build: BuildSection{
			Kind:      BuildKindConfigure,
			Configure: &ConfigureSection{ConfigureOptions: ConfigureOptions{Options: []string{"X"}}},
		},
	}

	_, err := gate.Resolve(b)
	require.NoError(t, err)

	// Neither the bundle passed in nor the gate's own stored stub may
	// have been mutated by the merge (spec §3.5/§5 immutability).
	assert.Equal(t, []string{"X"}, b.Build.Configure.Options)
	assert.Equal(t, []string{"Y"}, gate.Packages[0].Build.Configure.Options)

	// Resolving a second time (as RunMany would, sharing one *Gate
	// across concurrent jobs) must reproduce the same result.
	merged2, err := gate.Resolve(b)
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y"}, merged2.Build.Configure.Options)
}

func TestGate_Resolve_NoStubReturnsBundleUnchanged(t *testing.T) {
	gate := &Gate{}
	b := &Package{Name: "sample", Version: "2.0"}

	merged, err := gate.Resolve(b)
	require.NoError(t, err)
	assert.Same(t, b, merged)
}
