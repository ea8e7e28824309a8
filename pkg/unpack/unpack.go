package unpack

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/openflowlabs/gatebuild/pkg/bundle"
	"github.com/openflowlabs/gatebuild/pkg/gbuild"
	"github.com/openflowlabs/gatebuild/pkg/toolexec"
	"github.com/openflowlabs/gatebuild/pkg/workspace"
)

// Unpacker runs the unpack pass for one package.
type Unpacker struct {
	Workspace  *workspace.Workspace
	Cache      *workspace.ArchiveCache
	BundleRoot string // directory containing package.kdl, for File/Patch/Overlay bundle-relative paths
	Runner     toolexec.Runner
}

// New builds an Unpacker with the production exec-based Runner.
func New(ws *workspace.Workspace, cache *workspace.ArchiveCache, bundleRoot string) *Unpacker {
	return &Unpacker{Workspace: ws, Cache: cache, BundleRoot: bundleRoot, Runner: toolexec.NewExecRunner()}
}

// UnpackAll runs the pass described in spec §4.4 over every source
// section of pkg, in document order.
func (u *Unpacker) UnpackAll(ctx context.Context, pkg *bundle.Package) error {
	buildDir, err := u.Workspace.BuildDir()
	if err != nil {
		return err
	}

	for _, sec := range pkg.Sources {
		unpackName := bundle.DerivedSourceName(pkg.Name, sec)
		unpackPath := filepath.Join(buildDir, unpackName)

		extractedThisSection := false
		gitCount := 0
		for _, node := range sec.Sources {
			switch node.Kind {
			case bundle.SourceKindArchive:
				if extractedThisSection {
					continue
				}
				if err := u.unpackArchiveNode(node.Archive, unpackPath); err != nil {
					return gbuild.WrapStage("unpack", err)
				}
				extractedThisSection = true
			case bundle.SourceKindGit:
				gitCount++
				target := unpackPath
				if gitCount > 1 {
					if node.Git.Directory == "" {
						return gbuild.WrapStage("unpack", &gbuild.SchemaError{
							Reason: "second or later git source in a section requires an explicit directory",
						})
					}
					target = filepath.Join(buildDir, node.Git.Directory)
				} else if extractedThisSection {
					continue
				}
				if err := u.unpackGitNode(node.Git, target); err != nil {
					return gbuild.WrapStage("unpack", err)
				}
				if gitCount == 1 {
					extractedThisSection = true
				}
			case bundle.SourceKindFile:
				if err := u.unpackFileNode(node.File, unpackPath); err != nil {
					return gbuild.WrapStage("unpack", err)
				}
			case bundle.SourceKindDirectory:
				if err := u.unpackDirectoryNode(node.Directory, unpackPath); err != nil {
					return gbuild.WrapStage("unpack", err)
				}
			case bundle.SourceKindPatch:
				if err := u.applyPatch(ctx, node.Patch, unpackPath); err != nil {
					return gbuild.WrapStage("unpack", err)
				}
			case bundle.SourceKindOverlay:
				if err := u.applyOverlay(node.Overlay, unpackPath); err != nil {
					return gbuild.WrapStage("unpack", err)
				}
			}
		}
	}
	return nil
}

func (u *Unpacker) unpackArchiveNode(a *bundle.ArchiveSource, unpackPath string) error {
	src, err := url.Parse(a.Src)
	if err != nil {
		return &gbuild.URLError{URL: a.Src, Err: err}
	}
	filename := filepath.Base(src.Path)
	return extractArchive(u.Cache.Path(filename), unpackPath, filename)
}

func (u *Unpacker) unpackGitNode(g *bundle.GitSource, unpackPath string) error {
	filename := bundle.GitRepoPrefix(g) + ".tar.gz"
	return extractArchive(u.Cache.Path(filename), unpackPath, filename)
}

func (u *Unpacker) unpackFileNode(f *bundle.FileSource, unpackPath string) error {
	src := filepath.Join(u.BundleRoot, f.BundlePath)
	target := f.TargetPath
	if target == "" {
		target = filepath.Base(f.BundlePath)
	}
	dst := filepath.Join(unpackPath, target)
	return copyFile(src, dst)
}

func (u *Unpacker) unpackDirectoryNode(d *bundle.DirectorySource, unpackPath string) error {
	src := filepath.Join(u.BundleRoot, d.BundlePath)
	target := d.TargetPath
	if target == "" {
		target = filepath.Base(d.BundlePath)
	}
	dst := filepath.Join(unpackPath, target)
	return copyDirectory(src, dst)
}

func (u *Unpacker) applyPatch(ctx context.Context, p *bundle.PatchSource, unpackPath string) error {
	args := []string{"-d", unpackPath}
	if p.DropDirectories != 0 {
		args = append(args, patchStripArg(p.DropDirectories))
	}
	args = append(args, "-i", filepath.Join(u.BundleRoot, p.BundlePath))
	_, err := u.Runner.Run(ctx, toolexec.Invocation{Tool: "gpatch", Args: args})
	return err
}

func patchStripArg(n int) string {
	return "-p" + strconv.Itoa(n)
}

func (u *Unpacker) applyOverlay(o *bundle.OverlaySource, unpackPath string) error {
	src := filepath.Join(u.BundleRoot, o.BundlePath)
	return copyDirectoryContents(src, unpackPath)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return &gbuild.IOError{Op: "open source file", Err: err}
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &gbuild.IOError{Op: "create destination dir", Err: err}
	}
	out, err := os.Create(dst)
	if err != nil {
		return &gbuild.IOError{Op: "create destination file", Err: err}
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return &gbuild.IOError{Op: "copy file", Err: err}
	}
	return nil
}

func copyDirectory(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(path, target)
	})
}

// copyDirectoryContents copies src's direct children into dst,
// content-only, overwriting existing files (spec §4.4 overlay
// semantics).
func copyDirectoryContents(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return &gbuild.IOError{Op: "read overlay source dir", Err: err}
	}
	for _, e := range entries {
		srcPath := filepath.Join(src, e.Name())
		dstPath := filepath.Join(dst, e.Name())
		if e.IsDir() {
			if err := copyDirectory(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}
