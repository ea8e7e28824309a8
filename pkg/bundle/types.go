// Package bundle implements the document model described in spec §3-4.1:
// the per-package bundle and the release-wide gate, their KDL-like
// on-disk grammar, and the merge semantics between a gate's package
// stub and a bundle.
package bundle

// DependencyKind enumerates the three ways a bundle can depend on
// another package.
type DependencyKind string

const (
	DependencyRequire     DependencyKind = "require"
	DependencyIncorporate DependencyKind = "incorporate"
	DependencyOptional    DependencyKind = "optional"
)

// Dependency is a single `dependency` node.
type Dependency struct {
	Name string
	Kind DependencyKind
	Dev  bool
}

// Maintainer mirrors the teacher's config.Copyright shape: a free-form
// maintainer or attribution line. Bundles carry these verbatim.
type Maintainer struct {
	Name string
}

// ArchiveSource is a `source { archive ... }` node.
type ArchiveSource struct {
	Src                   string
	SHA256                string
	SHA512                string
	SignatureURL          string
	SignatureURLExtension string
}

// GitSource is a `source { git ... }` node.
type GitSource struct {
	Repository      string
	Branch          string
	Tag             string
	Archive         bool
	MustStayAsRepo  bool
	Directory       string
}

// FileSource is a `source { file ... }` node.
type FileSource struct {
	BundlePath string
	TargetPath string
}

// DirectorySource is a `source { directory ... }` node.
type DirectorySource struct {
	BundlePath string
	TargetPath string
}

// PatchSource is a `source { patch ... }` node.
type PatchSource struct {
	BundlePath      string
	DropDirectories int
}

// OverlaySource is a `source { overlay ... }` node.
type OverlaySource struct {
	BundlePath string
}

// SourceNodeKind tags which variant a SourceNode holds. Go has no sum
// types, so SourceNode is a tagged struct with exactly one populated
// payload field selected by Kind — the idiomatic stand-in the teacher
// itself uses for config.BuildSection-shaped variants (see
// config.Pipeline's mutually exclusive fields).
type SourceNodeKind int

const (
	SourceKindArchive SourceNodeKind = iota
	SourceKindGit
	SourceKindFile
	SourceKindDirectory
	SourceKindPatch
	SourceKindOverlay
)

func (k SourceNodeKind) String() string {
	switch k {
	case SourceKindArchive:
		return "archive"
	case SourceKindGit:
		return "git"
	case SourceKindFile:
		return "file"
	case SourceKindDirectory:
		return "directory"
	case SourceKindPatch:
		return "patch"
	case SourceKindOverlay:
		return "overlay"
	default:
		return "unknown"
	}
}

// SourceNode is one entry in a SourceSection's ordered node list.
type SourceNode struct {
	Kind      SourceNodeKind
	Archive   *ArchiveSource
	Git       *GitSource
	File      *FileSource
	Directory *DirectorySource
	Patch     *PatchSource
	Overlay   *OverlaySource
}

// SourceSection is an ordered list of SourceNodes, optionally named.
type SourceSection struct {
	Name    string
	Sources []SourceNode
}

// BuildSectionKind tags which build-type variant a BuildSection holds.
type BuildSectionKind int

const (
	BuildKindNone BuildSectionKind = iota
	BuildKindConfigure
	BuildKindScript
	BuildKindCMake
	BuildKindMeson
	BuildKindNoBuild
)

func (k BuildSectionKind) String() string {
	switch k {
	case BuildKindConfigure:
		return "configure"
	case BuildKindScript:
		return "script"
	case BuildKindCMake:
		return "cmake"
	case BuildKindMeson:
		return "meson"
	case BuildKindNoBuild:
		return "no-build"
	default:
		return "none"
	}
}

// ConfigureFlag is a `flag` node inside a `configure` build section.
type ConfigureFlag struct {
	Value    string
	FlagName string // empty means "apply to the standard four"
}

// ConfigureOptions groups the option/flag/compiler/linker fields
// shared between the primary Configure section and a cross-triple
// overlay section (§12 supplement: cross-compilation).
type ConfigureOptions struct {
	Options  []string
	Flags    []ConfigureFlag
	Compiler string
	Linker   string
}

// ConfigureSection is the `configure { ... }` build-type variant.
type ConfigureSection struct {
	ConfigureOptions

	// CrossOptions holds the supplemented per-triple overlay sections
	// (§12): additional options/flags unioned in when building for a
	// given host/cross triple, e.g. "x86_64-solaris2.11-gnu".
	CrossOptions map[string]ConfigureOptions
}

// ScriptEntry is a single `script` node inside a `build { ... }` section.
type ScriptEntry struct {
	Name          string
	PrototypeDir  string
}

// InstallDirective is an `install` node inside a `build { ... }` section.
type InstallDirective struct {
	Src     string
	Target  string
	Name    string
	Pattern string
	Match   string
}

// ScriptSection is the `build { script ...; install ... }` build-type
// variant.
type ScriptSection struct {
	Scripts           []ScriptEntry
	InstallDirectives []InstallDirective
}

// CMakeSection and MesonSection are reserved variants (spec §3.3):
// present in the type system so parse/serialize round-trips, but the
// build orchestrator has no driver for them (§9 O1: their merge rules
// are unspecified upstream, so this spec marks them NonMergeable).
type CMakeSection struct {
	Options []string
}

type MesonSection struct {
	Options []string
}

// BuildSection is the tagged-variant build description on a Package.
type BuildSection struct {
	Kind      BuildSectionKind
	Configure *ConfigureSection
	Script    *ScriptSection
	CMake     *CMakeSection
	Meson     *MesonSection
}

// Package is the parsed form of package.kdl (spec §3.1, §6 grammar).
type Package struct {
	Name              string
	ProjectName       string
	Classification    string
	Maintainers       []string
	Summary           string
	License           string
	LicenseFile       string
	Prefix            string
	Version           string
	Revision          string
	ProjectURL        string
	SeparateBuildDir  bool
	Sources           []SourceSection
	Dependencies      []Dependency
	Build             BuildSection

	// Provenance is supplemented metadata (§12): the bundle's own
	// enclosing git repository's commit/remote, when detected. It is
	// never itself part of the bundle document grammar (§6) — it is
	// recorded by the orchestrator at build time, not parsed from
	// package.kdl.
	Provenance *Provenance
}

// Provenance records where the bundle document itself lives in git,
// mirroring the teacher's ConfigFileRepositoryURL/Commit fields.
type Provenance struct {
	RepositoryURL string
	Commit        string
}

// Transform is a gate-level `transform "<action>" include="..."?` node.
type Transform struct {
	Action  string
	Include string
}

// DistributionType is the value of the gate's `distribution { type ... }` node.
type DistributionType string

const (
	DistributionIPS     DistributionType = "ips"
	DistributionTarball DistributionType = "tarball"
)

// Gate is the parsed form of a gate document (spec §3.2, §6 grammar).
type Gate struct {
	Name              string
	Version           string
	Branch            string
	Publisher         string
	Distribution      DistributionType
	DefaultTransforms []Transform
	Packages          []Package // package stubs, bundle-shaped
}
