package packager

import (
	"context"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/openflowlabs/gatebuild/pkg/bundle"
	"github.com/openflowlabs/gatebuild/pkg/gbuild"
	"github.com/openflowlabs/gatebuild/pkg/toolexec"
	"github.com/openflowlabs/gatebuild/pkg/workspace"
)

// IPSPackager drives the 9-step pkgsend/pkgmogrify/pkgdepend/pkglint/
// pkgrepo pipeline described in spec §4.6.
type IPSPackager struct {
	Workspace   *workspace.Workspace
	Runner      toolexec.Runner
	RepoRoot    string // <data>/repo
	Publisher   string
	IncludeDir  string // optional -I argument to pkgmogrify
	ManifestMog string // optional <bundle>/manifest.mog path, "" if absent
}

// NewIPSPackager builds an IPSPackager with the production exec-based Runner.
func NewIPSPackager(ws *workspace.Workspace, repoRoot, publisher string) *IPSPackager {
	return &IPSPackager{Workspace: ws, Runner: toolexec.NewExecRunner(), RepoRoot: repoRoot, Publisher: publisher}
}

// Run executes all nine steps in sequence against pkg.
func (p *IPSPackager) Run(ctx context.Context, pkg *bundle.Package, gate *bundle.Gate) error {
	protoDir, err := p.Workspace.PrototypeDir()
	if err != nil {
		return err
	}
	manifestDir, err := p.Workspace.ManifestDir()
	if err != nil {
		return err
	}
	buildDir, err := p.Workspace.BuildDir()
	if err != nil {
		return err
	}
	unpackDir, err := p.unpackDir(pkg, buildDir)
	if err != nil {
		return err
	}

	if err := p.generateFilelist(ctx, protoDir, manifestDir); err != nil {
		return err
	}
	if err := p.renderAndWriteManifest(pkg, gate, manifestDir); err != nil {
		return err
	}
	if gate != nil && len(gate.DefaultTransforms) > 0 {
		if err := os.WriteFile(filepath.Join(manifestDir, "includes.mog"), []byte(renderTransforms(gate.DefaultTransforms)), 0o644); err != nil {
			return &gbuild.IOError{Op: "write includes.mog", Err: err}
		}
	}
	if err := p.mogrify(ctx, manifestDir, gate); err != nil {
		return err
	}
	if err := p.generateDependencies(ctx, protoDir, manifestDir); err != nil {
		return err
	}
	if err := p.resolveDependencies(ctx, manifestDir); err != nil {
		return err
	}
	if err := p.lint(ctx, manifestDir); err != nil {
		return err
	}
	if err := p.ensureRepo(ctx); err != nil {
		return err
	}
	return p.publish(ctx, protoDir, unpackDir, manifestDir)
}

// unpackDir is the per-package extracted source tree under buildDir,
// the same derivation builder.Builder uses to locate it for the build
// stage (spec glossary: "Unpack directory").
func (p *IPSPackager) unpackDir(pkg *bundle.Package, buildDir string) (string, error) {
	if len(pkg.Sources) == 0 {
		return "", &gbuild.SchemaError{Reason: "package has no source sections to build from"}
	}
	return filepath.Join(buildDir, bundle.DerivedSourceName(pkg.Name, pkg.Sources[0])), nil
}

func (p *IPSPackager) generateFilelist(ctx context.Context, protoDir, manifestDir string) error {
	res, err := p.Runner.Run(ctx, toolexec.Invocation{Tool: "pkgsend", Args: []string{"generate", protoDir}})
	if err != nil {
		return err
	}
	fmtRes, err := p.runPkgfmt(ctx, res.Stdout)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(manifestDir, "filelist.fmt"), []byte(fmtRes), 0o644)
}

func (p *IPSPackager) renderAndWriteManifest(pkg *bundle.Package, gate *bundle.Gate, manifestDir string) error {
	manifest, err := renderManifest(pkg, gate)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(manifestDir, "generated.p5m"), []byte(manifest), 0o644)
}

func (p *IPSPackager) mogrify(ctx context.Context, manifestDir string, gate *bundle.Gate) error {
	args := []string{}
	if p.IncludeDir != "" {
		args = append(args, "-I", p.IncludeDir)
	}
	args = append(args, filepath.Join(manifestDir, "generated.p5m"), filepath.Join(manifestDir, "filelist.fmt"))
	if gate != nil && len(gate.DefaultTransforms) > 0 {
		args = append(args, filepath.Join(manifestDir, "includes.mog"))
	}
	if p.ManifestMog != "" {
		args = append(args, p.ManifestMog)
	}
	res, err := p.Runner.Run(ctx, toolexec.Invocation{Tool: "pkgmogrify", Args: args})
	if err != nil {
		return err
	}
	fmtRes, err := p.runPkgfmt(ctx, res.Stdout)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(manifestDir, "mogrified.mog"), []byte(fmtRes), 0o644)
}

func (p *IPSPackager) generateDependencies(ctx context.Context, protoDir, manifestDir string) error {
	res, err := p.Runner.Run(ctx, toolexec.Invocation{
		Tool: "pkgdepend",
		Args: []string{"generate", "-m", "-d", protoDir, filepath.Join(manifestDir, "mogrified.mog")},
	})
	if err != nil {
		return err
	}
	fmtRes, err := p.runPkgfmt(ctx, res.Stdout)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(manifestDir, "generated.dep"), []byte(fmtRes), 0o644)
}

func (p *IPSPackager) resolveDependencies(ctx context.Context, manifestDir string) error {
	_, err := p.Runner.Run(ctx, toolexec.Invocation{
		Tool: "pkgdepend",
		Args: []string{"resolve", "-m", filepath.Join(manifestDir, "generated.dep")},
	})
	return err
}

func (p *IPSPackager) lint(ctx context.Context, manifestDir string) error {
	_, err := p.Runner.Run(ctx, toolexec.Invocation{
		Tool: "pkglint",
		Args: []string{filepath.Join(manifestDir, "generated.dep.res")},
	})
	return err
}

func (p *IPSPackager) ensureRepo(ctx context.Context) error {
	lock := flock.New(p.RepoRoot + ".lock")
	if err := lock.Lock(); err != nil {
		return &gbuild.IOError{Op: "lock ips repo root", Err: err}
	}
	defer lock.Unlock()

	if _, err := os.Stat(filepath.Join(p.RepoRoot, "pkg5.repository")); err == nil {
		return p.addPublisherIfMissing(ctx)
	}
	if _, err := p.Runner.Run(ctx, toolexec.Invocation{Tool: "pkgrepo", Args: []string{"create", p.RepoRoot}}); err != nil {
		return err
	}
	return p.addPublisherIfMissing(ctx)
}

func (p *IPSPackager) addPublisherIfMissing(ctx context.Context) error {
	_, err := p.Runner.Run(ctx, toolexec.Invocation{
		Tool: "pkgrepo",
		Args: []string{"add-publisher", "-s", p.RepoRoot, p.Publisher},
	})
	return err
}

func (p *IPSPackager) publish(ctx context.Context, protoDir, unpackDir, manifestDir string) error {
	lock := flock.New(p.RepoRoot + ".lock")
	if err := lock.Lock(); err != nil {
		return &gbuild.IOError{Op: "lock ips repo root for publish", Err: err}
	}
	defer lock.Unlock()

	_, err := p.Runner.Run(ctx, toolexec.Invocation{
		Tool: "pkgsend",
		Args: []string{
			"publish", "-d", protoDir, "-d", unpackDir, "-s", p.RepoRoot,
			filepath.Join(manifestDir, "generated.dep.res"),
		},
	})
	return err
}

// runPkgfmt formats input with pkgfmt and returns its stdout.
// toolexec.Invocation has no stdin field, so input is staged to a
// temp file whose path is passed to pkgfmt as its positional argument.
func (p *IPSPackager) runPkgfmt(ctx context.Context, input string) (string, error) {
	tmp, err := os.CreateTemp("", "gatebuild-pkgfmt-*.tmp")
	if err != nil {
		return "", &gbuild.IOError{Op: "create pkgfmt staging file", Err: err}
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(input); err != nil {
		tmp.Close()
		return "", &gbuild.IOError{Op: "write pkgfmt staging file", Err: err}
	}
	tmp.Close()

	res, err := p.Runner.Run(ctx, toolexec.Invocation{Tool: "pkgfmt", Args: []string{tmp.Name()}})
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}
