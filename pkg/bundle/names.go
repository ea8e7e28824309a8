package bundle

import (
	"path"
	"strings"
)

// DerivedSourceName implements spec §3.4: the package name with every
// "/" replaced by "_", unless the section carries its own name.
func DerivedSourceName(pkgName string, section SourceSection) string {
	if section.Name != "" {
		return section.Name
	}
	return strings.ReplaceAll(pkgName, "/", "_")
}

// GitRepoPrefix implements spec §3.4: the last path segment of the
// repository URL, stripped of a trailing ".git" extension, joined to
// the tag or branch (preferring tag), or bare if neither is set.
func GitRepoPrefix(g *GitSource) string {
	last := path.Base(strings.TrimSuffix(g.Repository, "/"))
	last = strings.TrimSuffix(last, ".git")
	ref := g.Tag
	if ref == "" {
		ref = g.Branch
	}
	if ref == "" {
		return last
	}
	return last + "-" + ref
}
