package bundle

import (
	"fmt"
	"io"
	"strconv"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	"github.com/openflowlabs/gatebuild/pkg/gbuild"
)

// ParsePackage reads a package.kdl document (spec §6 grammar) from r.
func ParsePackage(r io.Reader) (*Package, error) {
	doc, err := kdl.Parse(r)
	if err != nil {
		return nil, &gbuild.SchemaError{Reason: fmt.Sprintf("parse package document: %v", err)}
	}
	pkg := &Package{}
	for _, n := range doc.Nodes {
		if err := applyPackageNode(pkg, n); err != nil {
			return nil, err
		}
	}
	return pkg, nil
}

// ParseGate reads a gate document (spec §6 grammar) from r.
func ParseGate(r io.Reader) (*Gate, error) {
	doc, err := kdl.Parse(r)
	if err != nil {
		return nil, &gbuild.SchemaError{Reason: fmt.Sprintf("parse gate document: %v", err)}
	}
	gate := &Gate{}
	for _, n := range doc.Nodes {
		if err := applyGateNode(gate, n); err != nil {
			return nil, err
		}
	}
	return gate, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstStringArg(n *document.Node) (string, bool) {
	if n == nil || len(n.Arguments) == 0 {
		return "", false
	}
	s, ok := n.Arguments[0].Value.(string)
	return s, ok
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if n == nil || len(n.Arguments) == 0 {
		return false, false
	}
	b, ok := n.Arguments[0].Value.(bool)
	return b, ok
}

func firstIntArg(n *document.Node) (int, bool) {
	if n == nil || len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case int:
		return v, true
	case float64:
		return int(v), true
	case string:
		if i, err := strconv.Atoi(v); err == nil {
			return i, true
		}
	}
	return 0, false
}

// propString looks up a `key=value` property on n, the KDL form used
// throughout the package.kdl grammar for named arguments such as
// `archive "url" sha256="..."`.
func propString(n *document.Node, key string) (string, bool) {
	if n == nil || n.Properties == nil {
		return "", false
	}
	v, ok := n.Properties[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.Value.(string)
	return s, ok
}

func propBool(n *document.Node, key string) (bool, bool) {
	if n == nil || n.Properties == nil {
		return false, false
	}
	v, ok := n.Properties[key]
	if !ok || v == nil {
		return false, false
	}
	b, ok := v.Value.(bool)
	return b, ok
}

func propInt(n *document.Node, key string) (int, bool) {
	if n == nil || n.Properties == nil {
		return 0, false
	}
	v, ok := n.Properties[key]
	if !ok || v == nil {
		return 0, false
	}
	switch vv := v.Value.(type) {
	case int64:
		return int(vv), true
	case int:
		return vv, true
	case float64:
		return int(vv), true
	}
	return 0, false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func applyPackageNode(pkg *Package, n *document.Node) error {
	switch nodeName(n) {
	case "name":
		if s, ok := firstStringArg(n); ok {
			pkg.Name = s
		}
	case "project-name", "project_name":
		if s, ok := firstStringArg(n); ok {
			pkg.ProjectName = s
		}
	case "classification":
		if s, ok := firstStringArg(n); ok {
			pkg.Classification = s
		}
	case "maintainer":
		if s, ok := firstStringArg(n); ok {
			pkg.Maintainers = append(pkg.Maintainers, s)
		}
	case "summary":
		if s, ok := firstStringArg(n); ok {
			pkg.Summary = s
		}
	case "license":
		if s, ok := firstStringArg(n); ok {
			pkg.License = s
		}
		if s, ok := propString(n, "file"); ok {
			pkg.LicenseFile = s
		}
	case "prefix":
		if s, ok := firstStringArg(n); ok {
			pkg.Prefix = s
		}
	case "version":
		if s, ok := firstStringArg(n); ok {
			pkg.Version = s
		}
	case "revision":
		if s, ok := firstStringArg(n); ok {
			pkg.Revision = s
		}
	case "project-url", "project_url":
		if s, ok := firstStringArg(n); ok {
			pkg.ProjectURL = s
		}
	case "separate-build-dir", "separate_build_dir":
		if b, ok := firstBoolArg(n); ok {
			pkg.SeparateBuildDir = b
		}
	case "dependency":
		dep := Dependency{Kind: DependencyRequire}
		if s, ok := firstStringArg(n); ok {
			dep.Name = s
		}
		if s, ok := propString(n, "kind"); ok {
			dep.Kind = DependencyKind(s)
		}
		if b, ok := propBool(n, "dev"); ok {
			dep.Dev = b
		}
		pkg.Dependencies = append(pkg.Dependencies, dep)
	case "source":
		sec, err := parseSourceSection(n)
		if err != nil {
			return err
		}
		pkg.Sources = append(pkg.Sources, sec)
	case "build":
		sec, err := parseBuildSection(n)
		if err != nil {
			return err
		}
		pkg.Build = sec
	default:
		return &gbuild.SchemaError{Reason: fmt.Sprintf("unknown package field %q", nodeName(n))}
	}
	return nil
}

func parseSourceSection(n *document.Node) (SourceSection, error) {
	sec := SourceSection{}
	if s, ok := firstStringArg(n); ok {
		sec.Name = s
	}
	for _, cn := range n.Children {
		node, err := parseSourceNode(cn)
		if err != nil {
			return sec, err
		}
		sec.Sources = append(sec.Sources, node)
	}
	return sec, nil
}

func parseSourceNode(n *document.Node) (SourceNode, error) {
	switch nodeName(n) {
	case "archive":
		a := &ArchiveSource{}
		a.Src, _ = firstStringArg(n)
		a.SHA256, _ = propString(n, "sha256")
		a.SHA512, _ = propString(n, "sha512")
		a.SignatureURL, _ = propString(n, "signature_url")
		a.SignatureURLExtension, _ = propString(n, "signature_url_extension")
		return SourceNode{Kind: SourceKindArchive, Archive: a}, nil
	case "git":
		g := &GitSource{}
		g.Repository, _ = firstStringArg(n)
		g.Branch, _ = propString(n, "branch")
		g.Tag, _ = propString(n, "tag")
		g.Archive, _ = propBool(n, "archive")
		g.MustStayAsRepo, _ = propBool(n, "must_stay_as_repo")
		g.Directory, _ = propString(n, "directory")
		return SourceNode{Kind: SourceKindGit, Git: g}, nil
	case "file":
		f := &FileSource{}
		f.BundlePath, _ = firstStringArg(n)
		f.TargetPath, _ = propString(n, "target")
		return SourceNode{Kind: SourceKindFile, File: f}, nil
	case "directory":
		d := &DirectorySource{}
		d.BundlePath, _ = firstStringArg(n)
		d.TargetPath, _ = propString(n, "target")
		return SourceNode{Kind: SourceKindDirectory, Directory: d}, nil
	case "patch":
		p := &PatchSource{}
		p.BundlePath, _ = firstStringArg(n)
		if v, ok := propInt(n, "drop_directories"); ok {
			p.DropDirectories = v
		}
		return SourceNode{Kind: SourceKindPatch, Patch: p}, nil
	case "overlay":
		o := &OverlaySource{}
		o.BundlePath, _ = firstStringArg(n)
		return SourceNode{Kind: SourceKindOverlay, Overlay: o}, nil
	default:
		return SourceNode{}, &gbuild.UnknownVariant{Kind: "source", Value: nodeName(n)}
	}
}

func parseBuildSection(n *document.Node) (BuildSection, error) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "configure":
			cs, err := parseConfigureSection(cn)
			if err != nil {
				return BuildSection{}, err
			}
			return BuildSection{Kind: BuildKindConfigure, Configure: cs}, nil
		case "script", "install":
			ss, err := parseScriptSection(n)
			if err != nil {
				return BuildSection{}, err
			}
			return BuildSection{Kind: BuildKindScript, Script: ss}, nil
		case "cmake":
			return BuildSection{Kind: BuildKindCMake, CMake: &CMakeSection{Options: collectStringArgs(cn)}}, nil
		case "meson":
			return BuildSection{Kind: BuildKindMeson, Meson: &MesonSection{Options: collectStringArgs(cn)}}, nil
		case "no-build", "no_build":
			return BuildSection{Kind: BuildKindNoBuild}, nil
		}
	}
	return BuildSection{Kind: BuildKindNone}, nil
}

func parseConfigureOptions(n *document.Node) ConfigureOptions {
	opts := ConfigureOptions{}
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "option":
			opts.Options = append(opts.Options, collectStringArgs(cn)...)
		case "flag":
			f := ConfigureFlag{}
			f.Value, _ = firstStringArg(cn)
			f.FlagName, _ = propString(cn, "name")
			opts.Flags = append(opts.Flags, f)
		case "compiler":
			opts.Compiler, _ = firstStringArg(cn)
		case "linker":
			opts.Linker, _ = firstStringArg(cn)
		}
	}
	return opts
}

func parseConfigureSection(n *document.Node) (*ConfigureSection, error) {
	cs := &ConfigureSection{ConfigureOptions: parseConfigureOptions(n)}
	for _, cn := range n.Children {
		if nodeName(cn) != "cross" {
			continue
		}
		triple, ok := firstStringArg(cn)
		if !ok {
			return nil, &gbuild.SchemaError{Reason: "cross overlay missing triple argument"}
		}
		if cs.CrossOptions == nil {
			cs.CrossOptions = make(map[string]ConfigureOptions)
		}
		cs.CrossOptions[triple] = parseConfigureOptions(cn)
	}
	return cs, nil
}

func parseScriptSection(buildNode *document.Node) (*ScriptSection, error) {
	ss := &ScriptSection{}
	for _, cn := range buildNode.Children {
		switch nodeName(cn) {
		case "script":
			e := ScriptEntry{}
			e.Name, _ = firstStringArg(cn)
			e.PrototypeDir, _ = propString(cn, "prototype_dir")
			ss.Scripts = append(ss.Scripts, e)
		case "install":
			d := InstallDirective{}
			d.Src, _ = firstStringArg(cn)
			d.Target, _ = propString(cn, "target")
			d.Name, _ = propString(cn, "name")
			d.Pattern, _ = propString(cn, "pattern")
			d.Match, _ = propString(cn, "match")
			ss.InstallDirectives = append(ss.InstallDirectives, d)
		}
	}
	return ss, nil
}

func applyGateNode(gate *Gate, n *document.Node) error {
	switch nodeName(n) {
	case "name":
		gate.Name, _ = firstStringArg(n)
	case "version":
		gate.Version, _ = firstStringArg(n)
	case "branch":
		gate.Branch, _ = firstStringArg(n)
	case "publisher":
		gate.Publisher, _ = firstStringArg(n)
	case "distribution":
		for _, cn := range n.Children {
			if nodeName(cn) == "type" {
				if s, ok := firstStringArg(cn); ok {
					switch s {
					case string(DistributionIPS):
						gate.Distribution = DistributionIPS
					case string(DistributionTarball):
						gate.Distribution = DistributionTarball
					default:
						return &gbuild.UnknownVariant{Kind: "distribution", Value: s}
					}
				}
			}
		}
	case "transform":
		t := Transform{}
		t.Action, _ = firstStringArg(n)
		t.Include, _ = propString(n, "include")
		gate.DefaultTransforms = append(gate.DefaultTransforms, t)
	case "package":
		stub := &Package{}
		if s, ok := firstStringArg(n); ok {
			stub.Name = s
		}
		for _, cn := range n.Children {
			if err := applyPackageNode(stub, cn); err != nil {
				return err
			}
		}
		gate.Packages = append(gate.Packages, *stub)
	default:
		return &gbuild.SchemaError{Reason: fmt.Sprintf("unknown gate field %q", nodeName(n))}
	}
	return nil
}
