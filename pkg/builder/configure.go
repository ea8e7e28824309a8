package builder

import (
	"context"
	"os"
	"path/filepath"

	"github.com/openflowlabs/gatebuild/pkg/bundle"
	"github.com/openflowlabs/gatebuild/pkg/gbuild"
	"github.com/openflowlabs/gatebuild/pkg/toolexec"
	"github.com/openflowlabs/gatebuild/pkg/workspace"
)

// Builder drives the build step for one package.
type Builder struct {
	Workspace  *workspace.Workspace
	BundleRoot string
	Runner     toolexec.Runner
	// CrossTriple selects a ConfigureSection.CrossOptions overlay to
	// union into the primary configure options (§12 supplement).
	CrossTriple string
}

// New builds a Builder with the production exec-based Runner.
func New(ws *workspace.Workspace, bundleRoot string) *Builder {
	return &Builder{Workspace: ws, BundleRoot: bundleRoot, Runner: toolexec.NewExecRunner()}
}

// Build dispatches on pkg's build-section kind.
func (b *Builder) Build(ctx context.Context, pkg *bundle.Package) error {
	switch pkg.Build.Kind {
	case bundle.BuildKindConfigure:
		return gbuild.WrapStage("build", b.buildConfigure(ctx, pkg))
	case bundle.BuildKindScript:
		return gbuild.WrapStage("build", b.buildScript(ctx, pkg))
	case bundle.BuildKindNoBuild, bundle.BuildKindNone:
		return nil
	default:
		return gbuild.WrapStage("build", &gbuild.UnknownVariant{Kind: "build", Value: pkg.Build.Kind.String()})
	}
}

func (b *Builder) unpackPath(pkg *bundle.Package) (string, error) {
	buildDir, err := b.Workspace.BuildDir()
	if err != nil {
		return "", err
	}
	if len(pkg.Sources) == 0 {
		return "", &gbuild.SchemaError{Reason: "package has no source sections to build from"}
	}
	return filepath.Join(buildDir, bundle.DerivedSourceName(pkg.Name, pkg.Sources[0])), nil
}

func (b *Builder) buildConfigure(ctx context.Context, pkg *bundle.Package) error {
	cs := pkg.Build.Configure
	unpackPath, err := b.unpackPath(pkg)
	if err != nil {
		return err
	}

	env := NewEnvironment(defaultSearchPath)
	if err := env.LoadEnvJSON(b.BundleRoot); err != nil {
		return err
	}
	if err := env.LoadDotEnv(b.BundleRoot); err != nil {
		return err
	}
	if err := env.LoadVarsYAML(b.BundleRoot); err != nil {
		return err
	}

	opts := append([]string(nil), cs.Options...)
	env.ApplyFlags(cs.Flags)

	if b.CrossTriple != "" {
		if overlay, ok := cs.CrossOptions[b.CrossTriple]; ok {
			opts = append(opts, overlay.Options...)
			env.ApplyFlags(overlay.Flags)
		}
	}

	protoDir, err := b.Workspace.PrototypeDir()
	if err != nil {
		return err
	}
	env.Set("DESTDIR", protoDir)

	configureArgs := make([]string, 0, len(opts)+1)
	for _, o := range opts {
		configureArgs = append(configureArgs, "--"+o)
	}
	if pkg.Prefix != "" {
		configureArgs = append(configureArgs, "--prefix="+pkg.Prefix)
	}

	buildDir := unpackPath
	if pkg.SeparateBuildDir {
		buildDir = filepath.Join(unpackPath, "out")
		if err := os.MkdirAll(buildDir, 0o755); err != nil {
			return &gbuild.IOError{Op: "create separate build dir", Err: err}
		}
	}

	configureTool := "./configure"
	if pkg.SeparateBuildDir {
		configureTool = filepath.Join(unpackPath, "configure")
	}
	if _, err := b.Runner.Run(ctx, toolexec.Invocation{
		Tool: configureTool, Args: configureArgs, Env: env.Slice(), Dir: buildDir,
	}); err != nil {
		return err
	}

	driver, err := detectDriver(buildDir)
	if err != nil {
		return err
	}

	if _, err := b.Runner.Run(ctx, toolexec.Invocation{Tool: driver, Env: env.Slice(), Dir: buildDir}); err != nil {
		return err
	}

	installEnv := append(env.Slice(), "DESTDIR="+protoDir)
	_, err = b.Runner.Run(ctx, toolexec.Invocation{
		Tool: driver, Args: []string{"install", "DESTDIR=" + protoDir}, Env: installEnv, Dir: buildDir,
	})
	return err
}

func detectDriver(dir string) (string, error) {
	if _, err := os.Stat(filepath.Join(dir, "Makefile")); err == nil {
		return "make", nil
	}
	if _, err := os.Stat(filepath.Join(dir, "build.ninja")); err == nil {
		return "ninja", nil
	}
	return "", &gbuild.SchemaError{Reason: "neither Makefile nor build.ninja found after configure"}
}
