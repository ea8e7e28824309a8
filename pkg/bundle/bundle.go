package bundle

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/openflowlabs/gatebuild/pkg/gbuild"
)

// Bundle wraps a parsed Package together with the on-disk location it
// was loaded from, providing the mutation API spec §3.5 reserves:
// add_source and the field setters implied by merge. Every mutation
// writes the document back atomically and re-reads it, so the
// in-memory Package always reflects exactly what is on disk.
type Bundle struct {
	Path    string
	Package *Package
}

// Open reads and validates the package.kdl document at path.
func Open(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &gbuild.IOError{Op: "open bundle", Err: err}
	}
	defer f.Close()

	pkg, err := ParsePackage(f)
	if err != nil {
		return nil, err
	}
	if err := Validate(pkg); err != nil {
		return nil, err
	}
	return &Bundle{Path: path, Package: pkg}, nil
}

// save writes b.Package to b.Path using write-to-temp-then-rename
// semantics, then re-opens it so the in-memory state is provably what
// landed on disk (spec §4.1's "Bundle mutation" requirement).
func (b *Bundle) save() error {
	var buf bytes.Buffer
	if err := WritePackage(&buf, b.Package); err != nil {
		return &gbuild.IOError{Op: "serialize bundle", Err: err}
	}

	dir := filepath.Dir(b.Path)
	tmp, err := os.CreateTemp(dir, ".bundle-*.kdl.tmp")
	if err != nil {
		return &gbuild.IOError{Op: "create temp bundle file", Err: err}
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &gbuild.IOError{Op: "write temp bundle file", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &gbuild.IOError{Op: "close temp bundle file", Err: err}
	}
	if err := os.Rename(tmpPath, b.Path); err != nil {
		os.Remove(tmpPath)
		return &gbuild.IOError{Op: "rename temp bundle file", Err: err}
	}

	reopened, err := Open(b.Path)
	if err != nil {
		return err
	}
	b.Package = reopened.Package
	return nil
}

// AddSource appends node to the first source section, creating an
// unnamed one if none exists, then persists and re-reads the bundle.
func (b *Bundle) AddSource(node SourceNode) error {
	if len(b.Package.Sources) == 0 {
		b.Package.Sources = append(b.Package.Sources, SourceSection{})
	}
	idx := 0
	b.Package.Sources[idx].Sources = append(b.Package.Sources[idx].Sources, node)
	return b.save()
}

// SetField is a typed setter used by callers that mutate a bundle
// field and want the write-then-reread semantics save() provides,
// rather than editing b.Package directly and forgetting to persist.
func (b *Bundle) SetField(mutate func(*Package)) error {
	mutate(b.Package)
	return b.save()
}
