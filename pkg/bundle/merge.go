package bundle

import "github.com/openflowlabs/gatebuild/pkg/gbuild"

// buildSectionCompat reports whether self's and other's build
// sections may be merged, per the compatibility table in spec §4.1.
// A None/NoBuild section on either side always accepts the other
// side's kind (a NoBuild self yields entirely to other; a NoBuild
// other leaves a concrete self untouched), two sections of the
// identical kind merge field-by-field, and CMake/Meson meeting any
// concrete kind, itself included, is a scheme change neither side can
// silently absorb (§9 O1).
func buildSectionCompat(self, other BuildSectionKind) bool {
	if self == BuildKindNone || self == BuildKindNoBuild {
		return true
	}
	if other == BuildKindNone || other == BuildKindNoBuild {
		return true
	}
	if self == BuildKindCMake || self == BuildKindMeson || other == BuildKindCMake || other == BuildKindMeson {
		return false
	}
	return self == other
}

// MergeInto merges other onto self in place, mirroring the original's
// merge_into_mut: scalar fields present on other override self's,
// slices are appended with self's items first (sources, dependencies,
// maintainers), and the build section is merged according to
// buildSectionCompat or rejected with NonMergeableError. Per spec
// §4.1, self is the bundle and other is the gate's package stub — the
// stub's set fields win. Callers must pass a self that owns its Build
// section independently of any stored bundle or gate document; see
// clonePackage.
func MergeInto(self *Package, other *Package) error {
	if other.Name != "" {
		self.Name = other.Name
	}
	if other.ProjectName != "" {
		self.ProjectName = other.ProjectName
	}
	if other.Classification != "" {
		self.Classification = other.Classification
	}
	if other.Summary != "" {
		self.Summary = other.Summary
	}
	if other.License != "" {
		self.License = other.License
	}
	if other.LicenseFile != "" {
		self.LicenseFile = other.LicenseFile
	}
	if other.Prefix != "" {
		self.Prefix = other.Prefix
	}
	if other.Version != "" {
		self.Version = other.Version
	}
	if other.Revision != "" {
		self.Revision = other.Revision
	}
	if other.ProjectURL != "" {
		self.ProjectURL = other.ProjectURL
	}
	if other.SeparateBuildDir {
		self.SeparateBuildDir = true
	}
	self.Maintainers = append(self.Maintainers, other.Maintainers...)
	self.Dependencies = append(self.Dependencies, other.Dependencies...)
	self.Sources = append(self.Sources, other.Sources...)
	if other.Provenance != nil {
		self.Provenance = other.Provenance
	}

	if other.Build.Kind == BuildKindNone {
		return nil
	}
	if !buildSectionCompat(self.Build.Kind, other.Build.Kind) {
		return &gbuild.NonMergeableError{Self: self.Build.Kind.String(), Other: other.Build.Kind.String()}
	}
	switch {
	case self.Build.Kind == other.Build.Kind:
		mergeSameKindBuild(&self.Build, &other.Build)
	case self.Build.Kind == BuildKindNone || self.Build.Kind == BuildKindNoBuild:
		// self had no concrete build of its own; other's wins wholesale.
		self.Build = cloneBuildSection(other.Build)
	case other.Build.Kind == BuildKindNoBuild:
		// other explicitly declares no build; self's concrete section stands.
	default:
		self.Build = cloneBuildSection(other.Build)
	}
	return nil
}

func mergeSameKindBuild(self, other *BuildSection) {
	switch self.Kind {
	case BuildKindConfigure:
		if self.Configure == nil {
			self.Configure = &ConfigureSection{}
		}
		mergeConfigureOptions(&self.Configure.ConfigureOptions, &other.Configure.ConfigureOptions)
		if len(other.Configure.CrossOptions) > 0 {
			if self.Configure.CrossOptions == nil {
				self.Configure.CrossOptions = make(map[string]ConfigureOptions)
			}
			for triple, opts := range other.Configure.CrossOptions {
				opts.Options = append([]string(nil), opts.Options...)
				opts.Flags = append([]ConfigureFlag(nil), opts.Flags...)
				self.Configure.CrossOptions[triple] = opts
			}
		}
	case BuildKindScript:
		if self.Script == nil {
			self.Script = &ScriptSection{}
		}
		self.Script.Scripts = append(self.Script.Scripts, other.Script.Scripts...)
		self.Script.InstallDirectives = append(self.Script.InstallDirectives, other.Script.InstallDirectives...)
	case BuildKindCMake, BuildKindMeson, BuildKindNoBuild:
		// no mergeable sub-state
	}
}

func mergeConfigureOptions(self, other *ConfigureOptions) {
	self.Options = append(self.Options, other.Options...)
	self.Flags = append(self.Flags, other.Flags...)
	if other.Compiler != "" {
		self.Compiler = other.Compiler
	}
	if other.Linker != "" {
		self.Linker = other.Linker
	}
}

// clonePackage deep-copies pkg's slice and build-section pointer
// fields so the result shares no mutable memory with pkg, making it
// safe to pass as MergeInto's self even when pkg is a stored bundle or
// gate document that must stay untouched (spec §3.5/§5).
func clonePackage(pkg *Package) *Package {
	clone := *pkg
	clone.Maintainers = append([]string(nil), pkg.Maintainers...)
	clone.Dependencies = append([]Dependency(nil), pkg.Dependencies...)
	clone.Sources = append([]SourceSection(nil), pkg.Sources...)
	clone.Build = cloneBuildSection(pkg.Build)
	return &clone
}

// cloneBuildSection deep-copies a BuildSection's pointer variants so
// the clone's Options/Flags/Scripts/InstallDirectives slices and
// CrossOptions map are independent backing storage, never aliasing b's.
func cloneBuildSection(b BuildSection) BuildSection {
	clone := b
	if b.Configure != nil {
		c := *b.Configure
		c.Options = append([]string(nil), b.Configure.Options...)
		c.Flags = append([]ConfigureFlag(nil), b.Configure.Flags...)
		if b.Configure.CrossOptions != nil {
			c.CrossOptions = make(map[string]ConfigureOptions, len(b.Configure.CrossOptions))
			for triple, opts := range b.Configure.CrossOptions {
				opts.Options = append([]string(nil), opts.Options...)
				opts.Flags = append([]ConfigureFlag(nil), opts.Flags...)
				c.CrossOptions[triple] = opts
			}
		}
		clone.Configure = &c
	}
	if b.Script != nil {
		s := *b.Script
		s.Scripts = append([]ScriptEntry(nil), b.Script.Scripts...)
		s.InstallDirectives = append([]InstallDirective(nil), b.Script.InstallDirectives...)
		clone.Script = &s
	}
	if b.CMake != nil {
		c := *b.CMake
		c.Options = append([]string(nil), b.CMake.Options...)
		clone.CMake = &c
	}
	if b.Meson != nil {
		m := *b.Meson
		m.Options = append([]string(nil), b.Meson.Options...)
		clone.Meson = &m
	}
	return clone
}
