// Package provenance detects the git repository a bundle document
// lives in, so the orchestrator can stamp a built package with the
// commit and remote it came from (§12 supplement). This is
// introspection of the *bundle's own* enclosing repo — never the
// repository a Git source node points at, which spec §4.3 mandates
// acquiring by shelling to the git binary instead (see pkg/source).
package provenance

import (
	"github.com/go-git/go-git/v5"

	"github.com/openflowlabs/gatebuild/pkg/bundle"
	"github.com/openflowlabs/gatebuild/pkg/gbuild"
)

// Detect opens the git repository enclosing dir (walking up to find
// .git, as go-git's PlainOpenWithOptions does) and returns its HEAD
// commit and first configured remote URL. It returns (nil, nil) — not
// an error — when dir isn't inside a git repository at all, since
// provenance is optional metadata, not a hard requirement.
func Detect(dir string) (*bundle.Provenance, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err == git.ErrRepositoryNotExists {
		return nil, nil
	}
	if err != nil {
		return nil, &gbuild.IOError{Op: "open enclosing git repository", Err: err}
	}

	head, err := repo.Head()
	if err != nil {
		return nil, &gbuild.IOError{Op: "resolve HEAD", Err: err}
	}

	p := &bundle.Provenance{Commit: head.Hash().String()}

	remotes, err := repo.Remotes()
	if err == nil && len(remotes) > 0 {
		cfg := remotes[0].Config()
		if len(cfg.URLs) > 0 {
			p.RepositoryURL = cfg.URLs[0]
		}
	}
	return p, nil
}
