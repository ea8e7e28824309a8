package bundle

import (
	"fmt"

	spdxexp "github.com/github/go-spdx/v2/spdxexp"

	"github.com/openflowlabs/gatebuild/pkg/gbuild"
)

// Validate checks the structural invariants I1 and I2 from spec §3.3
// plus SPDX validity of the license field. I4 (build-section merge
// compatibility) is checked by ValidateMerge and MergeInto, not here.
// I3 (archive digest presence) is enforced during acquisition,
// not here, since it depends on a network round trip this package
// never performs.
func Validate(pkg *Package) error {
	if pkg.Name == "" {
		return &gbuild.SchemaError{Reason: "package name must not be empty (I1)"}
	}
	for _, sec := range pkg.Sources {
		gitCount := 0
		for _, n := range sec.Sources {
			if n.Kind != SourceKindGit {
				continue
			}
			gitCount++
			if gitCount > 1 && n.Git.Directory == "" {
				return &gbuild.SchemaError{
					Reason: fmt.Sprintf("source section %q: second or later git source must set directory (I2)", sec.Name),
				}
			}
		}
	}
	if pkg.License != "" {
		if valid, invalid := spdxexp.ValidateLicenses([]string{pkg.License}); !valid {
			return &gbuild.SchemaError{Reason: fmt.Sprintf("license %q is not a valid SPDX expression: %v", pkg.License, invalid)}
		}
	}
	return nil
}

// ValidateMerge is I4: a merge is only permitted between compatible
// build-section kinds. MergeInto already enforces this at merge time;
// ValidateMerge lets callers pre-flight check without mutating.
func ValidateMerge(stub, b *Package) error {
	if b.Build.Kind == BuildKindNone {
		return nil
	}
	if !buildSectionCompat(stub.Build.Kind, b.Build.Kind) {
		return &gbuild.NonMergeableError{Self: stub.Build.Kind.String(), Other: b.Build.Kind.String()}
	}
	return nil
}
