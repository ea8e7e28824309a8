package workspace

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/openflowlabs/gatebuild/pkg/gbuild"
)

// ArchiveCache is the process-wide cache of acquired archives, keyed
// by archive filename and kept outside any single package's workspace
// (spec §4.2/§6) so it can be shared across parallel package builds.
type ArchiveCache struct {
	root string
}

// NewArchiveCache creates (if absent) and canonicalizes root.
func NewArchiveCache(root string) (*ArchiveCache, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &gbuild.IOError{Op: "create archive cache", Err: err}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &gbuild.IOError{Op: "resolve archive cache path", Err: err}
	}
	return &ArchiveCache{root: abs}, nil
}

// Path returns the cache location for the given archive filename
// (e.g. a source URL's basename, or a derived "<prefix>.tar.gz").
func (c *ArchiveCache) Path(filename string) string {
	return filepath.Join(c.root, filename)
}

// Has reports whether filename is already cached.
func (c *ArchiveCache) Has(filename string) bool {
	_, err := os.Stat(c.Path(filename))
	return err == nil
}

// Lock returns an advisory file lock scoped to filename's cache entry.
// Multiple packages built in parallel must serialize access to the
// archive cache at per-file granularity (spec §4.3); the lock file
// itself lives alongside the cache entry with a ".lock" suffix so it
// never collides with a real archive name.
func (c *ArchiveCache) Lock(filename string) *flock.Flock {
	return flock.New(c.Path(filename) + ".lock")
}

// Store moves src (typically a verified workspace download) into the
// cache under filename, replacing any stale entry.
func (c *ArchiveCache) Store(filename, src string) error {
	dst := c.Path(filename)
	if err := os.Rename(src, dst); err != nil {
		return &gbuild.IOError{Op: "move into archive cache", Err: err}
	}
	return nil
}

// Clear removes every cached archive (and its lock sidecar) while
// leaving the cache root itself in place, implementing the
// orchestrator's archive_clean flag (spec §4.7).
func (c *ArchiveCache) Clear() error {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return &gbuild.IOError{Op: "read archive cache", Err: err}
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(c.root, e.Name())); err != nil {
			return &gbuild.IOError{Op: "clear archive cache entry", Err: err}
		}
	}
	return nil
}
