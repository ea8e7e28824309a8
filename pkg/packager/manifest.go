// Package packager implements the IPS and tarball packaging paths of
// spec §4.6/§4.6.1: rendering the manifest template, driving the
// pkgsend/pkgmogrify/pkgdepend/pkglint/pkgrepo pipeline, and the
// tarball fallback for gates that declare distribution type tarball.
package packager

import (
	"strings"
	"text/template"

	"github.com/openflowlabs/gatebuild/pkg/bundle"
	"github.com/openflowlabs/gatebuild/pkg/gbuild"
)

// defaultIPSTemplate mirrors the fixed CDDL-headed manifest template
// the original tool renders before handing off to pkgmogrify.
const defaultIPSTemplate = `
#
# This file and its contents are supplied under the terms of the
# Common Development and Distribution License ("CDDL"), version 1.0.
# You may only use this file in accordance with the terms of version
# 1.0 of the CDDL.
#
# A full copy of the text of the CDDL should have accompanied this
# source.  A copy of the CDDL is also available via the Internet at
# http://www.illumos.org/license/CDDL.
#

set name=pkg.fmri value=pkg:/{{.Name}}@{{.Version}},{{.BuildVersion}}-{{.BranchVersion}}.{{.Revision}}
set name=pkg.summary value="{{.Summary}}"
set name=info.classification value="org.opensolaris.category.2008:{{.Classification}}"
set name=info.upstream-url value="{{.ProjectURL}}"
set name=info.source-url value="{{.SourceURL}}"

license {{.LicenseFileName}} license='{{.LicenseName}}'

<transform dir -> drop>
`

var ipsTemplate = template.Must(template.New("ips-manifest").Parse(defaultIPSTemplate))

// manifestVars is the substitution set for defaultIPSTemplate (spec
// §4.6 step 2).
type manifestVars struct {
	Name            string
	Version         string
	BuildVersion    string
	BranchVersion   string
	Revision        string
	Summary         string
	Classification  string
	ProjectURL      string
	SourceURL       string
	LicenseFileName string
	LicenseName     string
}

// firstSourceURL returns the canonical URL of the package's first
// source node (archive src or git repository), or "" if neither.
func firstSourceURL(pkg *bundle.Package) string {
	if len(pkg.Sources) == 0 || len(pkg.Sources[0].Sources) == 0 {
		return ""
	}
	n := pkg.Sources[0].Sources[0]
	switch n.Kind {
	case bundle.SourceKindArchive:
		return n.Archive.Src
	case bundle.SourceKindGit:
		return n.Git.Repository
	default:
		return ""
	}
}

// renderManifestVars assembles manifestVars from pkg, defaulting
// version/revision and pulling build_version/branch_version from
// gate when present (spec §4.6 step 2), and fails hard on any
// missing required field.
func renderManifestVars(pkg *bundle.Package, gate *bundle.Gate) (manifestVars, error) {
	version := pkg.Version
	if version == "" {
		version = "0.5.11"
	}
	revision := pkg.Revision
	if revision == "" {
		revision = "1"
	}

	var buildVersion, branchVersion string
	if gate != nil {
		buildVersion = gate.Version
		branchVersion = gate.Branch
	}

	required := map[string]string{
		"summary":        pkg.Summary,
		"classification": pkg.Classification,
		"project_url":    pkg.ProjectURL,
		"license_file":   pkg.LicenseFile,
		"license":        pkg.License,
	}
	for field, value := range required {
		if value == "" {
			return manifestVars{}, &gbuild.MissingRequiredField{Field: field}
		}
	}

	return manifestVars{
		Name:            pkg.Name,
		Version:         version,
		BuildVersion:    buildVersion,
		BranchVersion:   branchVersion,
		Revision:        revision,
		Summary:         pkg.Summary,
		Classification:  pkg.Classification,
		ProjectURL:      pkg.ProjectURL,
		SourceURL:       firstSourceURL(pkg),
		LicenseFileName: pkg.LicenseFile,
		LicenseName:     pkg.License,
	}, nil
}

// renderManifest renders the IPS manifest template for pkg.
func renderManifest(pkg *bundle.Package, gate *bundle.Gate) (string, error) {
	vars, err := renderManifestVars(pkg, gate)
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	if err := ipsTemplate.Execute(&buf, vars); err != nil {
		return "", &gbuild.IOError{Op: "render ips manifest template", Err: err}
	}
	return buf.String(), nil
}

// renderTransforms serializes a gate's default transforms into the
// `<transform ...>` include-mog format (spec §4.6 step 3).
func renderTransforms(transforms []bundle.Transform) string {
	var buf strings.Builder
	for _, t := range transforms {
		buf.WriteString("<transform ")
		buf.WriteString(t.Action)
		buf.WriteString(">")
		if t.Include != "" {
			buf.WriteString("\n<include ")
			buf.WriteString(t.Include)
			buf.WriteString(">")
		}
		buf.WriteString("\n")
	}
	return buf.String()
}
