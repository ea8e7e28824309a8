package bundle

import (
	"os"

	"github.com/openflowlabs/gatebuild/pkg/gbuild"
)

// OpenGate reads and validates the gate document at path. Package
// stubs are checked for a self-mergeable build section and validated
// structurally (I2, license) but not for I1,
// since a stub need not itself carry a name distinct from the one it
// will receive via merge with its bundle.
func OpenGate(path string) (*Gate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &gbuild.IOError{Op: "open gate", Err: err}
	}
	defer f.Close()

	gate, err := ParseGate(f)
	if err != nil {
		return nil, err
	}
	for i := range gate.Packages {
		if err := ValidateMerge(&gate.Packages[i], &gate.Packages[i]); err != nil {
			return nil, err
		}
		stub := gate.Packages[i]
		if stub.Name == "" {
			stub.Name = "<stub>"
		}
		if err := Validate(&stub); err != nil {
			return nil, err
		}
	}
	return gate, nil
}

// StubFor returns the gate's package stub matching name, or nil.
func (g *Gate) StubFor(name string) *Package {
	for i := range g.Packages {
		if g.Packages[i].Name == name {
			return &g.Packages[i]
		}
	}
	return nil
}

// Resolve produces the effective Package for a bundle under this
// gate: the bundle (self) with the gate's stub for its name (other)
// merged on top, so the stub's set fields win (spec §4.1). If the
// gate carries no matching stub, the bundle is returned unchanged — a
// gate is an overlay, not a requirement. The merge runs against a
// clone of b so neither the bundle nor the gate's stored stub is
// mutated; both stay immutable once handed to the orchestrator
// (spec §3.5/§5), which matters in particular when RunMany shares one
// *Gate across concurrent per-package jobs.
func (g *Gate) Resolve(b *Package) (*Package, error) {
	stub := g.StubFor(b.Name)
	if stub == nil {
		return b, nil
	}
	merged := clonePackage(b)
	if err := MergeInto(merged, stub); err != nil {
		return nil, err
	}
	if err := Validate(merged); err != nil {
		return nil, err
	}
	return merged, nil
}
