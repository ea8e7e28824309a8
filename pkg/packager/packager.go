package packager

import (
	"context"

	"github.com/openflowlabs/gatebuild/pkg/bundle"
	"github.com/openflowlabs/gatebuild/pkg/toolexec"
	"github.com/openflowlabs/gatebuild/pkg/workspace"
)

// Packager selects and runs the packaging branch for a package,
// choosing the IPS or tarball path by the active gate's distribution
// type (spec §4.7 stage-4 selection).
type Packager struct {
	Workspace   *workspace.Workspace
	Runner      toolexec.Runner
	RepoRoot    string
	Publisher   string
	IncludeDir  string
	ManifestMog string
	OutputDir   string
}

// Run packages pkg according to gate's distribution type. gate may be
// nil, in which case the IPS path is used (spec default).
func (p *Packager) Run(ctx context.Context, pkg *bundle.Package, gate *bundle.Gate) error {
	if gate != nil && gate.Distribution == bundle.DistributionTarball {
		t := &TarballPackager{Workspace: p.Workspace, Runner: p.Runner, OutputDir: p.OutputDir}
		return t.Run(ctx, pkg)
	}
	ips := &IPSPackager{
		Workspace: p.Workspace, Runner: p.Runner, RepoRoot: p.RepoRoot,
		Publisher: p.Publisher, IncludeDir: p.IncludeDir, ManifestMog: p.ManifestMog,
	}
	return ips.Run(ctx, pkg, gate)
}
