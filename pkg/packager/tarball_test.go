package packager

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openflowlabs/gatebuild/pkg/workspace"
)

func TestDerivedTarballName_WithAndWithoutVersion(t *testing.T) {
	pkg := fullPackage()
	assert.Equal(t, "library_zlib-1.3.tar.gz", derivedTarballName(pkg))

	pkg.Version = ""
	assert.Equal(t, "library_zlib.tar.gz", derivedTarballName(pkg))
}

func TestTarballPackager_Run_InvokesGtarWithProtoChildren(t *testing.T) {
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	protoDir, err := ws.PrototypeDir()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(protoDir, "usr", "bin"), 0o755))

	runner := &fakeRunner{}
	outputDir := t.TempDir()
	tp := &TarballPackager{Workspace: ws, Runner: runner, OutputDir: outputDir}

	require.NoError(t, tp.Run(context.Background(), fullPackage()))
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "gtar", runner.calls[0].Tool)
	assert.Equal(t, protoDir, runner.calls[0].Dir)
	assert.Contains(t, runner.calls[0].Args, "usr")
	assert.Contains(t, runner.calls[0].Args, filepath.Join(outputDir, "library_zlib-1.3.tar.gz"))
}

func TestTarballPackager_Run_EmptyPrototypeFails(t *testing.T) {
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	_, err = ws.PrototypeDir()
	require.NoError(t, err)

	tp := &TarballPackager{Workspace: ws, Runner: &fakeRunner{}, OutputDir: t.TempDir()}
	err = tp.Run(context.Background(), fullPackage())
	require.Error(t, err)
}
