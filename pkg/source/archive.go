// Package source implements acquisition of a package's declared
// sources (spec §4.3): downloading and verifying archives, and
// cloning or archiving git repositories, into the process-wide
// archive cache. File/Directory/Patch/Overlay sources are no-ops here
// — they are consumed during unpack (pkg/unpack).
package source

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/openflowlabs/gatebuild/internal/contextreader"
	"github.com/openflowlabs/gatebuild/pkg/bundle"
	"github.com/openflowlabs/gatebuild/pkg/gbuild"
	"github.com/openflowlabs/gatebuild/pkg/httpclient"
	"github.com/openflowlabs/gatebuild/pkg/toolexec"
	"github.com/openflowlabs/gatebuild/pkg/workspace"
)

// Acquirer drives source acquisition for one package in document
// order, sequentially (spec §4.3: "acquisition is sequential within a
// package").
type Acquirer struct {
	Workspace    *workspace.Workspace
	Cache        *workspace.ArchiveCache
	HTTP         *httpclient.RLHTTPClient
	Runner       toolexec.Runner
	ArchiveClean bool
}

// New builds an Acquirer with the production exec-based Runner.
func New(ws *workspace.Workspace, cache *workspace.ArchiveCache, httpClient *httpclient.RLHTTPClient) *Acquirer {
	return &Acquirer{Workspace: ws, Cache: cache, HTTP: httpClient, Runner: toolexec.NewExecRunner()}
}

// AcquireAll walks pkg's source sections in document order, acquiring
// every Archive and Git node. File/Directory/Patch/Overlay nodes are
// skipped (they are unpack-time concerns).
func (a *Acquirer) AcquireAll(ctx context.Context, pkg *bundle.Package) error {
	for _, sec := range pkg.Sources {
		for i := range sec.Sources {
			node := &sec.Sources[i]
			switch node.Kind {
			case bundle.SourceKindArchive:
				if err := a.acquireArchive(ctx, node.Archive); err != nil {
					return gbuild.WrapStage("download", err)
				}
			case bundle.SourceKindGit:
				if err := a.acquireGit(ctx, node.Git); err != nil {
					return gbuild.WrapStage("download", err)
				}
			}
		}
	}
	return nil
}

func (a *Acquirer) acquireArchive(ctx context.Context, src *bundle.ArchiveSource) error {
	u, err := url.Parse(src.Src)
	if err != nil {
		return &gbuild.URLError{URL: src.Src, Err: err}
	}
	filename := filepath.Base(u.Path)
	if filename == "" || filename == "." || filename == "/" {
		return &gbuild.URLError{URL: src.Src, Err: errNoFilename{}}
	}

	lock := a.Cache.Lock(filename)
	if err := lock.Lock(); err != nil {
		return &gbuild.IOError{Op: "lock archive cache entry", Err: err}
	}
	defer lock.Unlock()

	if a.Cache.Has(filename) && !a.ArchiveClean {
		return nil
	}

	kind := workspace.HasherSHA512
	wantDigest := src.SHA512
	if wantDigest == "" && src.SHA256 != "" {
		kind = workspace.HasherSHA256
		wantDigest = src.SHA256
	}

	dl, err := a.Workspace.OpenDownload(u, kind)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Src, nil)
	if err != nil {
		dl.Discard() //nolint:errcheck
		return &gbuild.URLError{URL: src.Src, Err: err}
	}
	resp, err := a.HTTP.Do(req)
	if err != nil {
		dl.Discard() //nolint:errcheck
		return &gbuild.IOError{Op: "download archive", Err: err}
	}
	defer resp.Body.Close()

	if _, err := dl.ReadFrom(contextreader.New(ctx, resp.Body)); err != nil {
		dl.Discard() //nolint:errcheck
		return err
	}
	if err := dl.Close(); err != nil {
		return err
	}

	got := dl.Hash()
	// I3 / O2: if the bundle declared no digest at all, record the
	// computed one as the source of truth for this acquisition rather
	// than failing.
	if wantDigest != "" && got != wantDigest {
		_ = os.Remove(dl.Path())
		return &gbuild.IntegrityError{URL: src.Src, Expected: wantDigest, Actual: got}
	}
	if src.SHA256 == "" && src.SHA512 == "" {
		src.SHA512 = got
	}

	return a.Cache.Store(filename, dl.Path())
}

type errNoFilename struct{}

func (errNoFilename) Error() string { return "url has no filename component" }
