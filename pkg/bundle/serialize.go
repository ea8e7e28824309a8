package bundle

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// kdlWriter renders the KDL-like grammar by hand, the way the original
// Rust implementation builds nodes field-by-field with to_node()/
// to_document() rather than deriving a generic serializer. Doing this
// ourselves, rather than trusting a library's default formatting,
// keeps the on-disk document stable byte-for-byte across a
// parse/serialize round trip (property P1).
type kdlWriter struct {
	b      strings.Builder
	indent int
}

func (w *kdlWriter) line(format string, args ...interface{}) {
	w.b.WriteString(strings.Repeat("    ", w.indent))
	fmt.Fprintf(&w.b, format, args...)
	w.b.WriteByte('\n')
}

func (w *kdlWriter) open(format string, args ...interface{}) {
	w.b.WriteString(strings.Repeat("    ", w.indent))
	fmt.Fprintf(&w.b, format, args...)
	w.b.WriteString(" {\n")
	w.indent++
}

func (w *kdlWriter) close() {
	w.indent--
	w.b.WriteString(strings.Repeat("    ", w.indent))
	w.b.WriteString("}\n")
}

// quote renders s as a KDL string literal, escaping backslashes and
// double quotes.
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func prop(key, value string) string {
	return fmt.Sprintf("%s=%s", key, quote(value))
}

func propBoolLit(key string, value bool) string {
	return fmt.Sprintf("%s=%s", key, strconv.FormatBool(value))
}

func propIntLit(key string, value int) string {
	return fmt.Sprintf("%s=%d", key, value)
}

// WritePackage serializes pkg as a package.kdl document.
func WritePackage(w io.Writer, pkg *Package) error {
	kw := &kdlWriter{}
	kw.writePackageBody(pkg)
	_, err := io.WriteString(w, kw.b.String())
	return err
}

func (w *kdlWriter) writePackageBody(pkg *Package) {
	if pkg.Name != "" {
		w.line("name %s", quote(pkg.Name))
	}
	if pkg.ProjectName != "" {
		w.line("project-name %s", quote(pkg.ProjectName))
	}
	if pkg.Classification != "" {
		w.line("classification %s", quote(pkg.Classification))
	}
	for _, m := range pkg.Maintainers {
		w.line("maintainer %s", quote(m))
	}
	if pkg.Summary != "" {
		w.line("summary %s", quote(pkg.Summary))
	}
	if pkg.License != "" {
		if pkg.LicenseFile != "" {
			w.line("license %s %s", quote(pkg.License), prop("file", pkg.LicenseFile))
		} else {
			w.line("license %s", quote(pkg.License))
		}
	}
	if pkg.Prefix != "" {
		w.line("prefix %s", quote(pkg.Prefix))
	}
	if pkg.Version != "" {
		w.line("version %s", quote(pkg.Version))
	}
	if pkg.Revision != "" {
		w.line("revision %s", quote(pkg.Revision))
	}
	if pkg.ProjectURL != "" {
		w.line("project-url %s", quote(pkg.ProjectURL))
	}
	if pkg.SeparateBuildDir {
		w.line("separate-build-dir %s", strconv.FormatBool(pkg.SeparateBuildDir))
	}
	for _, dep := range pkg.Dependencies {
		parts := []string{quote(dep.Name)}
		if dep.Kind != "" && dep.Kind != DependencyRequire {
			parts = append(parts, prop("kind", string(dep.Kind)))
		}
		if dep.Dev {
			parts = append(parts, propBoolLit("dev", true))
		}
		w.line("dependency %s", strings.Join(parts, " "))
	}
	for _, sec := range pkg.Sources {
		w.writeSourceSection(sec)
	}
	w.writeBuildSection(pkg.Build)
}

func (w *kdlWriter) writeSourceSection(sec SourceSection) {
	if sec.Name != "" {
		w.open("source %s", quote(sec.Name))
	} else {
		w.open("source")
	}
	for _, n := range sec.Sources {
		w.writeSourceNode(n)
	}
	w.close()
}

func (w *kdlWriter) writeSourceNode(n SourceNode) {
	switch n.Kind {
	case SourceKindArchive:
		a := n.Archive
		parts := []string{quote(a.Src)}
		if a.SHA256 != "" {
			parts = append(parts, prop("sha256", a.SHA256))
		}
		if a.SHA512 != "" {
			parts = append(parts, prop("sha512", a.SHA512))
		}
		if a.SignatureURL != "" {
			parts = append(parts, prop("signature_url", a.SignatureURL))
		}
		if a.SignatureURLExtension != "" {
			parts = append(parts, prop("signature_url_extension", a.SignatureURLExtension))
		}
		w.line("archive %s", strings.Join(parts, " "))
	case SourceKindGit:
		g := n.Git
		parts := []string{quote(g.Repository)}
		if g.Branch != "" {
			parts = append(parts, prop("branch", g.Branch))
		}
		if g.Tag != "" {
			parts = append(parts, prop("tag", g.Tag))
		}
		if g.Archive {
			parts = append(parts, propBoolLit("archive", true))
		}
		if g.MustStayAsRepo {
			parts = append(parts, propBoolLit("must_stay_as_repo", true))
		}
		if g.Directory != "" {
			parts = append(parts, prop("directory", g.Directory))
		}
		w.line("git %s", strings.Join(parts, " "))
	case SourceKindFile:
		f := n.File
		parts := []string{quote(f.BundlePath)}
		if f.TargetPath != "" {
			parts = append(parts, prop("target", f.TargetPath))
		}
		w.line("file %s", strings.Join(parts, " "))
	case SourceKindDirectory:
		d := n.Directory
		parts := []string{quote(d.BundlePath)}
		if d.TargetPath != "" {
			parts = append(parts, prop("target", d.TargetPath))
		}
		w.line("directory %s", strings.Join(parts, " "))
	case SourceKindPatch:
		p := n.Patch
		parts := []string{quote(p.BundlePath)}
		if p.DropDirectories != 0 {
			parts = append(parts, propIntLit("drop_directories", p.DropDirectories))
		}
		w.line("patch %s", strings.Join(parts, " "))
	case SourceKindOverlay:
		w.line("overlay %s", quote(n.Overlay.BundlePath))
	}
}

func (w *kdlWriter) writeBuildSection(b BuildSection) {
	if b.Kind == BuildKindNone {
		return
	}
	w.open("build")
	switch b.Kind {
	case BuildKindConfigure:
		w.writeConfigureSection(b.Configure)
	case BuildKindScript:
		w.writeScriptSection(b.Script)
	case BuildKindCMake:
		parts := []string{"cmake"}
		for _, o := range b.CMake.Options {
			parts = append(parts, quote(o))
		}
		w.line("%s", strings.Join(parts, " "))
	case BuildKindMeson:
		parts := []string{"meson"}
		for _, o := range b.Meson.Options {
			parts = append(parts, quote(o))
		}
		w.line("%s", strings.Join(parts, " "))
	case BuildKindNoBuild:
		w.line("no-build")
	}
	w.close()
}

func (w *kdlWriter) writeConfigureOptions(o ConfigureOptions) {
	for _, opt := range o.Options {
		w.line("option %s", quote(opt))
	}
	for _, f := range o.Flags {
		if f.FlagName != "" {
			w.line("flag %s %s", quote(f.Value), prop("name", f.FlagName))
		} else {
			w.line("flag %s", quote(f.Value))
		}
	}
	if o.Compiler != "" {
		w.line("compiler %s", quote(o.Compiler))
	}
	if o.Linker != "" {
		w.line("linker %s", quote(o.Linker))
	}
}

func (w *kdlWriter) writeConfigureSection(c *ConfigureSection) {
	w.open("configure")
	w.writeConfigureOptions(c.ConfigureOptions)
	triples := make([]string, 0, len(c.CrossOptions))
	for triple := range c.CrossOptions {
		triples = append(triples, triple)
	}
	sort.Strings(triples)
	for _, triple := range triples {
		w.open("cross %s", quote(triple))
		w.writeConfigureOptions(c.CrossOptions[triple])
		w.close()
	}
	w.close()
}

func (w *kdlWriter) writeScriptSection(s *ScriptSection) {
	for _, e := range s.Scripts {
		if e.PrototypeDir != "" {
			w.line("script %s %s", quote(e.Name), prop("prototype_dir", e.PrototypeDir))
		} else {
			w.line("script %s", quote(e.Name))
		}
	}
	for _, d := range s.InstallDirectives {
		parts := []string{quote(d.Src)}
		if d.Target != "" {
			parts = append(parts, prop("target", d.Target))
		}
		if d.Name != "" {
			parts = append(parts, prop("name", d.Name))
		}
		if d.Pattern != "" {
			parts = append(parts, prop("pattern", d.Pattern))
		}
		if d.Match != "" {
			parts = append(parts, prop("match", d.Match))
		}
		w.line("install %s", strings.Join(parts, " "))
	}
}

// WriteGate serializes gate as a gate document.
func WriteGate(w io.Writer, gate *Gate) error {
	kw := &kdlWriter{}
	if gate.Name != "" {
		kw.line("name %s", quote(gate.Name))
	}
	if gate.Version != "" {
		kw.line("version %s", quote(gate.Version))
	}
	if gate.Branch != "" {
		kw.line("branch %s", quote(gate.Branch))
	}
	if gate.Publisher != "" {
		kw.line("publisher %s", quote(gate.Publisher))
	}
	if gate.Distribution != "" {
		kw.open("distribution")
		kw.line("type %s", quote(string(gate.Distribution)))
		kw.close()
	}
	for _, t := range gate.DefaultTransforms {
		if t.Include != "" {
			kw.line("transform %s %s", quote(t.Action), prop("include", t.Include))
		} else {
			kw.line("transform %s", quote(t.Action))
		}
	}
	for _, p := range gate.Packages {
		p := p
		kw.open("package %s", quote(p.Name))
		p.Name = "" // carried as the package node's argument, not a body field
		kw.writePackageBody(&p)
		kw.close()
	}
	_, err := io.WriteString(w, kw.b.String())
	return err
}
