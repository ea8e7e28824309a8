package packager

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openflowlabs/gatebuild/pkg/bundle"
	"github.com/openflowlabs/gatebuild/pkg/workspace"
)

func TestPackager_Run_SelectsTarballPathFromGateDistribution(t *testing.T) {
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	protoDir, err := ws.PrototypeDir()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(protoDir, "bin"), 0o755))

	runner := &fakeRunner{}
	p := &Packager{Workspace: ws, Runner: runner, OutputDir: t.TempDir()}
	gate := &bundle.Gate{Distribution: bundle.DistributionTarball}

	require.NoError(t, p.Run(context.Background(), fullPackage(), gate))
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "gtar", runner.calls[0].Tool)
}

func TestPackager_Run_DefaultsToIPSPathWithoutGate(t *testing.T) {
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	runner := &fakeRunner{}
	p := &Packager{Workspace: ws, Runner: runner, RepoRoot: filepath.Join(t.TempDir(), "repo"), Publisher: "openflowlabs"}

	require.NoError(t, p.Run(context.Background(), fullPackage(), nil))
	assert.Contains(t, toolNames(runner.calls), "pkgsend")
}
