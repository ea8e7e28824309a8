// Package workspace implements the per-package on-disk layout spec
// §4.2: a fixed sub-directory tree (downloads/build/proto/manifests),
// a process-wide archive cache outside the workspace, advisory
// per-path locking, and the streaming download
// handle with a sticky hash algorithm.
package workspace

import (
	"net/url"
	"os"
	"path/filepath"

	"github.com/openflowlabs/gatebuild/pkg/gbuild"
)

// Workspace owns one package's mutable build-time state.
type Workspace struct {
	root string
}

// New canonicalizes root, creating it (and its parents) if absent.
func New(root string) (*Workspace, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, &gbuild.IOError{Op: "create workspace root", Err: err}
		}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &gbuild.IOError{Op: "resolve workspace root", Err: err}
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, &gbuild.IOError{Op: "canonicalize workspace root", Err: err}
	}
	return &Workspace{root: real}, nil
}

// Name is the workspace root's base directory name, used as a default
// label for logging and tracing spans.
func (w *Workspace) Name() string {
	return filepath.Base(w.root)
}

// Root returns the workspace's canonical root path.
func (w *Workspace) Root() string { return w.root }

func (w *Workspace) getOrCreate(sub string) (string, error) {
	p := filepath.Join(w.root, sub)
	if _, err := os.Stat(p); os.IsNotExist(err) {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return "", &gbuild.IOError{Op: "create " + sub + " dir", Err: err}
		}
	}
	return p, nil
}

// DownloadDir is <root>/downloads.
func (w *Workspace) DownloadDir() (string, error) { return w.getOrCreate("downloads") }

// BuildDir is <root>/build.
func (w *Workspace) BuildDir() (string, error) { return w.getOrCreate("build") }

// PrototypeDir is <root>/proto.
func (w *Workspace) PrototypeDir() (string, error) { return w.getOrCreate("proto") }

// ManifestDir is <root>/manifests.
func (w *Workspace) ManifestDir() (string, error) { return w.getOrCreate("manifests") }

// FilePathForURL returns the path downloads/<basename of u's path> would
// occupy, without creating the download handle.
func (w *Workspace) FilePathForURL(u *url.URL) (string, error) {
	dir, err := w.DownloadDir()
	if err != nil {
		return "", err
	}
	base := filepath.Base(u.Path)
	if base == "" || base == "." || base == "/" {
		return "", &gbuild.URLError{URL: u.String(), Err: errNoFilename}
	}
	return filepath.Join(dir, base), nil
}

var errNoFilename = filenameError{}

type filenameError struct{}

func (filenameError) Error() string {
	return "url has no filename component"
}
