// Package orchestrator drives the linear Download → Unpack → Build →
// Pack → Publish pipeline described in spec §4.7, one package at a
// time, with optional early stop and cross-package parallel fan-out.
package orchestrator

import (
	"context"
	"os"
	"path/filepath"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/openflowlabs/gatebuild/pkg/bundle"
	"github.com/openflowlabs/gatebuild/pkg/builder"
	"github.com/openflowlabs/gatebuild/pkg/gbuild"
	"github.com/openflowlabs/gatebuild/pkg/httpclient"
	"github.com/openflowlabs/gatebuild/pkg/packager"
	"github.com/openflowlabs/gatebuild/pkg/provenance"
	"github.com/openflowlabs/gatebuild/pkg/source"
	"github.com/openflowlabs/gatebuild/pkg/toolexec"
	"github.com/openflowlabs/gatebuild/pkg/unpack"
	"github.com/openflowlabs/gatebuild/pkg/workspace"
)

// Stage identifies a pipeline stop-point.
type Stage int

const (
	StageDownload Stage = iota + 1
	StageUnpack
	StageBuild
	StagePack
	StagePublish
)

func (s Stage) String() string {
	switch s {
	case StageDownload:
		return "download"
	case StageUnpack:
		return "unpack"
	case StageBuild:
		return "build"
	case StagePack:
		return "pack"
	case StagePublish:
		return "publish"
	default:
		return "unknown"
	}
}

// Options configures one orchestrator run (spec §4.7).
type Options struct {
	Workspace     *workspace.Workspace
	Cache         *workspace.ArchiveCache
	BundleRoot    string // directory containing package.kdl
	Gate          *bundle.Gate
	StopAfter     Stage // zero value, like StagePublish, runs to completion
	Clean         bool  // wipe downloads/build/proto/manifests before stage 1
	ArchiveClean  bool  // clear cached archives but keep the rest of the workspace
	RepoRoot      string
	Publisher     string
	OutputDir     string
	// Runner overrides the external-process Runner used by every
	// shelling stage (source, unpack, build, package). Nil means the
	// production os/exec-backed ExecRunner; tests substitute a fake.
	Runner toolexec.Runner
}

// Orchestrator runs the pipeline for a single package.
type Orchestrator struct {
	opts Options
}

// New builds an Orchestrator from opts.
func New(opts Options) *Orchestrator {
	return &Orchestrator{opts: opts}
}

// Run executes stages in order, stopping after opts.StopAfter or on
// the first error. Side effects within a stage occur strictly in
// document order (spec §5).
func (o *Orchestrator) Run(ctx context.Context, pkg *bundle.Package) error {
	log := clog.FromContext(ctx)
	ctx, span := otel.Tracer("gatebuild").Start(ctx, "Orchestrator.Run")
	defer span.End()

	if o.opts.Clean {
		if err := o.clean(); err != nil {
			return gbuild.WrapStage("clean", err)
		}
	} else if o.opts.ArchiveClean {
		if err := o.opts.Cache.Clear(); err != nil {
			return gbuild.WrapStage("clean", err)
		}
	}

	if prov, err := provenance.Detect(o.opts.BundleRoot); err != nil {
		log.Warnf("provenance detection failed: %v", err)
	} else if prov != nil {
		pkg.Provenance = prov
	}

	if o.opts.Gate != nil {
		resolved, err := o.opts.Gate.Resolve(pkg)
		if err != nil {
			return gbuild.WrapStage("gate-merge", err)
		}
		pkg = resolved
	}

	runStage := func(name Stage, fn func() error) error {
		_, span := otel.Tracer("gatebuild").Start(ctx, name.String())
		defer span.End()
		log.Infof("stage %s starting for %s", name, pkg.Name)
		return fn()
	}

	runner := o.opts.Runner
	if runner == nil {
		runner = toolexec.NewExecRunner()
	}

	acquirer := source.New(o.opts.Workspace, o.opts.Cache, httpclient.NewClient(rate.NewLimiter(rate.Inf, 1)))
	acquirer.Runner = runner
	acquirer.ArchiveClean = o.opts.ArchiveClean
	if err := runStage(StageDownload, func() error { return acquirer.AcquireAll(ctx, pkg) }); err != nil {
		return err
	}
	if o.opts.StopAfter == StageDownload {
		return nil
	}

	unpacker := unpack.New(o.opts.Workspace, o.opts.Cache, o.opts.BundleRoot)
	unpacker.Runner = runner
	if err := runStage(StageUnpack, func() error { return unpacker.UnpackAll(ctx, pkg) }); err != nil {
		return err
	}
	if o.opts.StopAfter == StageUnpack {
		return nil
	}

	b := builder.New(o.opts.Workspace, o.opts.BundleRoot)
	b.Runner = runner
	if err := runStage(StageBuild, func() error { return b.Build(ctx, pkg) }); err != nil {
		return err
	}
	if o.opts.StopAfter == StageBuild {
		return nil
	}

	pk := &packager.Packager{
		Workspace: o.opts.Workspace, Runner: runner, RepoRoot: o.opts.RepoRoot,
		Publisher: o.opts.Publisher, OutputDir: o.opts.OutputDir,
	}
	if err := runStage(StagePack, func() error { return pk.Run(ctx, pkg, o.opts.Gate) }); err != nil {
		return err
	}

	// Publish is folded into the IPS packager's own final step
	// (pkgsend publish); the tarball path has no separate publish
	// step, so StagePublish is a no-op stop-point marker only.
	return nil
}

func (o *Orchestrator) clean() error {
	for _, dir := range []string{"downloads", "build", "proto", "manifests"} {
		if err := os.RemoveAll(filepath.Join(o.opts.Workspace.Root(), dir)); err != nil {
			return &gbuild.IOError{Op: "clean " + dir, Err: err}
		}
	}
	return nil
}
