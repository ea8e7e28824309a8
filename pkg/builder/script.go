package builder

import (
	"context"
	"os"
	"path/filepath"
	"regexp"

	"github.com/openflowlabs/gatebuild/pkg/bundle"
	"github.com/openflowlabs/gatebuild/pkg/gbuild"
	"github.com/openflowlabs/gatebuild/pkg/toolexec"
)

func (b *Builder) buildScript(ctx context.Context, pkg *bundle.Package) error {
	ss := pkg.Build.Script
	unpackPath, err := b.unpackPath(pkg)
	if err != nil {
		return err
	}

	protoDir, err := b.Workspace.PrototypeDir()
	if err != nil {
		return err
	}

	for _, script := range ss.Scripts {
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
		env.Set("UNPACK_DIR", unpackPath)
		env.Set("PROTO_DIR", protoDir)

		if _, err := b.Runner.Run(ctx, toolexec.Invocation{
			Tool: filepath.Join(b.BundleRoot, script.Name),
			Env:  env.Slice(),
			Dir:  unpackPath,
		}); err != nil {
			return err
		}

		if script.PrototypeDir != "" {
			src := filepath.Join(unpackPath, script.PrototypeDir)
			dst := protoDir
			if pkg.Prefix != "" {
				dst = filepath.Join(protoDir, pkg.Prefix)
			}
			if err := copyTreeContentOnly(src, dst); err != nil {
				return err
			}
		}
	}

	for _, d := range ss.InstallDirectives {
		if err := b.runInstallDirective(ctx, d, unpackPath, protoDir); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) runInstallDirective(ctx context.Context, d bundle.InstallDirective, unpackPath, protoDir string) error {
	src := filepath.Join(unpackPath, d.Src)
	target := d.Target
	if target == "" {
		target = d.Src
	}
	dst := filepath.Join(protoDir, target)

	if d.Pattern == "" && d.Match == "" {
		return copyTreeContentOnly(src, dst)
	}

	list, err := matchInstallFiles(src, d.Pattern, d.Match)
	if err != nil {
		return err
	}
	listFile, err := os.CreateTemp("", "gatebuild-install-*.list")
	if err != nil {
		return &gbuild.IOError{Op: "create rsync file list", Err: err}
	}
	defer os.Remove(listFile.Name())
	for _, f := range list {
		if _, err := listFile.WriteString(f + "\n"); err != nil {
			listFile.Close()
			return &gbuild.IOError{Op: "write rsync file list", Err: err}
		}
	}
	listFile.Close()

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return &gbuild.IOError{Op: "create install target dir", Err: err}
	}
	_, err = b.Runner.Run(ctx, toolexec.Invocation{
		Tool: "rsync",
		Args: []string{"-avp", "--files-from=" + listFile.Name(), src, dst},
	})
	return err
}

func matchInstallFiles(root, pattern, glob string) ([]string, error) {
	var names []string
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			return nil, &gbuild.SchemaError{Reason: "invalid install pattern: " + err.Error()}
		}
	}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if re != nil && re.MatchString(rel) {
			names = append(names, rel)
			return nil
		}
		if glob != "" {
			if ok, _ := filepath.Match(glob, filepath.Base(rel)); ok {
				names = append(names, rel)
			}
		}
		return nil
	})
	if err != nil {
		return nil, &gbuild.IOError{Op: "walk install source tree", Err: err}
	}
	return names, nil
}

// copyTreeContentOnly mirrors the unpack package's overlay-copy
// semantics: content-only, overwriting on conflict.
func copyTreeContentOnly(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return &gbuild.IOError{Op: "read install source dir", Err: err}
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return &gbuild.IOError{Op: "create install target dir", Err: err}
	}
	for _, e := range entries {
		srcPath := filepath.Join(src, e.Name())
		dstPath := filepath.Join(dst, e.Name())
		if e.IsDir() {
			if err := copyTreeContentOnly(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if err := copyFileInto(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

func copyFileInto(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return &gbuild.IOError{Op: "read install source file", Err: err}
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return &gbuild.IOError{Op: "write install target file", Err: err}
	}
	return nil
}
