package source

import (
	"context"
	"os"
	"path/filepath"

	"github.com/openflowlabs/gatebuild/pkg/bundle"
	"github.com/openflowlabs/gatebuild/pkg/gbuild"
	"github.com/openflowlabs/gatebuild/pkg/toolexec"
)

// acquireGit implements spec §4.3's Git acquisition branch: compute
// the repo prefix, reuse a cached archive if present, else build one
// from an existing checkout, else clone (or server-side archive) and
// then build one.
func (a *Acquirer) acquireGit(ctx context.Context, g *bundle.GitSource) error {
	prefix := bundle.GitRepoPrefix(g)
	archiveName := prefix + ".tar.gz"

	lock := a.Cache.Lock(archiveName)
	if err := lock.Lock(); err != nil {
		return &gbuild.IOError{Op: "lock archive cache entry", Err: err}
	}
	defer lock.Unlock()

	if a.Cache.Has(archiveName) && !a.ArchiveClean {
		return nil
	}

	downloadDir, err := a.Workspace.DownloadDir()
	if err != nil {
		return err
	}
	checkoutPath := filepath.Join(downloadDir, prefix)

	if _, err := os.Stat(checkoutPath); err == nil {
		return a.repackageGitCheckout(ctx, g, downloadDir, prefix, archiveName)
	}

	if g.Archive {
		return a.gitArchiveRemote(ctx, g, downloadDir, prefix, archiveName)
	}

	if err := a.gitClone(ctx, g, downloadDir, prefix); err != nil {
		return err
	}
	return a.repackageGitCheckout(ctx, g, downloadDir, prefix, archiveName)
}

func (a *Acquirer) gitClone(ctx context.Context, g *bundle.GitSource, downloadDir, prefix string) error {
	args := []string{"clone", "--single-branch"}
	if g.Tag != "" {
		args = append(args, "--branch", g.Tag)
	} else if g.Branch != "" {
		args = append(args, "--branch", g.Branch)
	}
	args = append(args, g.Repository, prefix)

	_, err := a.Runner.Run(ctx, toolexec.Invocation{Tool: "git", Args: args, Dir: downloadDir})
	return err
}

// repackageGitCheckout turns an existing checkout at
// <downloadDir>/<prefix> into a deterministic archive in the cache,
// via `tar czf` (must_stay_as_repo, preserving .git) or
// `git archive` (detached, no history) per spec §4.3.
func (a *Acquirer) repackageGitCheckout(ctx context.Context, g *bundle.GitSource, downloadDir, prefix, archiveName string) error {
	cachePath := a.Cache.Path(archiveName)
	if g.MustStayAsRepo {
		_, err := a.Runner.Run(ctx, toolexec.Invocation{
			Tool: "tar",
			Args: []string{"czf", cachePath, prefix},
			Dir:  downloadDir,
		})
		return err
	}
	_, err := a.Runner.Run(ctx, toolexec.Invocation{
		Tool: "git",
		Args: []string{"archive", "--format=tar.gz", "--prefix=" + prefix + "/", "--output=" + cachePath, "HEAD"},
		Dir:  filepath.Join(downloadDir, prefix),
	})
	return err
}

// gitArchiveRemote implements the archive=true branch: a server-side
// `git archive --remote=...` with no local checkout at all.
func (a *Acquirer) gitArchiveRemote(ctx context.Context, g *bundle.GitSource, downloadDir, prefix, archiveName string) error {
	cachePath := a.Cache.Path(archiveName)
	ref := g.Tag
	if ref == "" {
		ref = g.Branch
	}
	if ref == "" {
		ref = "HEAD"
	}
	args := []string{
		"archive", "--format=tar.gz",
		"--prefix=" + prefix + "/",
		"--output=" + cachePath,
		"--remote=" + g.Repository,
		ref,
	}
	_, err := a.Runner.Run(ctx, toolexec.Invocation{Tool: "git", Args: args, Dir: downloadDir})
	return err
}
