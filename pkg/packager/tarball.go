package packager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openflowlabs/gatebuild/pkg/bundle"
	"github.com/openflowlabs/gatebuild/pkg/gbuild"
	"github.com/openflowlabs/gatebuild/pkg/toolexec"
	"github.com/openflowlabs/gatebuild/pkg/workspace"
)

// TarballPackager implements the release-tarball path of spec §4.6.1,
// used when the active gate declares distribution type tarball.
type TarballPackager struct {
	Workspace *workspace.Workspace
	Runner    toolexec.Runner
	OutputDir string
}

// NewTarballPackager builds a TarballPackager with the production exec-based Runner.
func NewTarballPackager(ws *workspace.Workspace, outputDir string) *TarballPackager {
	return &TarballPackager{Workspace: ws, Runner: toolexec.NewExecRunner(), OutputDir: outputDir}
}

// derivedTarballName mirrors the original's name-with-slashes-as-
// underscores, version-suffixed naming rule.
func derivedTarballName(pkg *bundle.Package) string {
	name := strings.ReplaceAll(pkg.Name, "/", "_")
	if pkg.Version == "" {
		return name + ".tar.gz"
	}
	return fmt.Sprintf("%s-%s.tar.gz", name, pkg.Version)
}

// Run lists proto's direct children and archives them with gtar.
func (t *TarballPackager) Run(ctx context.Context, pkg *bundle.Package) error {
	protoDir, err := t.Workspace.PrototypeDir()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(protoDir)
	if err != nil {
		return &gbuild.IOError{Op: "read prototype dir", Err: err}
	}
	if len(entries) == 0 {
		return &gbuild.SchemaError{Reason: "prototype directory is empty, nothing to package"}
	}

	if err := os.MkdirAll(t.OutputDir, 0o755); err != nil {
		return &gbuild.IOError{Op: "create output dir", Err: err}
	}
	outputPath := filepath.Join(t.OutputDir, derivedTarballName(pkg))

	args := []string{"-czf", outputPath}
	for _, e := range entries {
		args = append(args, e.Name())
	}

	_, err = t.Runner.Run(ctx, toolexec.Invocation{Tool: "gtar", Args: args, Dir: protoDir})
	return err
}
