// Package unpack implements the deterministic, document-order unpack
// pass from spec §4.4: for each source section, extract its first
// archive/git node into build/<unpack_name>/, then apply file copies,
// patches, and overlays on top.
package unpack

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/openflowlabs/gatebuild/pkg/gbuild"
)

// extractArchive decompresses localFile into finalPath, which must
// not already exist (idempotent re-runs skip extraction entirely —
// spec §4.4). The archive is expected to contain exactly one
// top-level directory, which is renamed into place.
func extractArchive(localFile, finalPath, label string) error {
	if _, err := os.Stat(localFile); err != nil {
		return &gbuild.IOError{Op: "locate archive " + label, Err: err}
	}
	if _, err := os.Stat(finalPath); err == nil {
		return nil
	}

	stagingDir, err := os.MkdirTemp(filepath.Dir(finalPath), "unpack-staging-")
	if err != nil {
		return &gbuild.IOError{Op: "create unpack staging dir", Err: err}
	}
	defer os.RemoveAll(stagingDir)

	if err := uncompressInto(localFile, stagingDir); err != nil {
		return err
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		return &gbuild.IOError{Op: "read unpack staging dir", Err: err}
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return &gbuild.IOError{Op: "unpack " + label, Err: errNoTopLevelDir{}}
	}
	top := filepath.Join(stagingDir, entries[0].Name())

	if err := os.Rename(top, finalPath); err != nil {
		return &gbuild.IOError{Op: "move unpacked " + label + " into place", Err: err}
	}
	return nil
}

type errNoTopLevelDir struct{}

func (errNoTopLevelDir) Error() string { return "archive does not contain exactly one top-level directory" }

// uncompressInto picks a decoder by file extension and extracts
// archivePath's contents into destDir. Grounded on the original's use
// of the compress_tools crate for a single "detect and extract
// anything" entry point; Go has no equivalent single crate, so this
// dispatches by extension across stdlib tar/zip/gzip/bzip2 plus
// ulikunitz/xz for .tar.xz.
func uncompressInto(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return &gbuild.IOError{Op: "open archive", Err: err}
	}
	defer f.Close()

	lower := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return extractZip(archivePath, destDir)
	case strings.HasSuffix(lower, ".tar.xz") || strings.HasSuffix(lower, ".txz"):
		xr, err := xz.NewReader(f)
		if err != nil {
			return &gbuild.IOError{Op: "open xz stream", Err: err}
		}
		return extractTar(xr, destDir)
	case strings.HasSuffix(lower, ".tar.bz2") || strings.HasSuffix(lower, ".tbz2"):
		return extractTar(bzip2.NewReader(f), destDir)
	case strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz"):
		gr, err := gzip.NewReader(f)
		if err != nil {
			return &gbuild.IOError{Op: "open gzip stream", Err: err}
		}
		defer gr.Close()
		return extractTar(gr, destDir)
	case strings.HasSuffix(lower, ".tar"):
		return extractTar(f, destDir)
	default:
		return &gbuild.UnknownVariant{Kind: "archive format", Value: filepath.Ext(archivePath)}
	}
}

func extractTar(r io.Reader, destDir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &gbuild.IOError{Op: "read tar entry", Err: err}
		}
		target := filepath.Join(destDir, filepath.Clean("/"+hdr.Name)[1:])
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return &gbuild.IOError{Op: "create dir from tar", Err: err}
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return &gbuild.IOError{Op: "create parent dir from tar", Err: err}
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return &gbuild.IOError{Op: "create file from tar", Err: err}
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return &gbuild.IOError{Op: "write file from tar", Err: err}
			}
			out.Close()
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return &gbuild.IOError{Op: "create parent dir for symlink", Err: err}
			}
			_ = os.Symlink(hdr.Linkname, target)
		}
	}
}

func extractZip(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return &gbuild.IOError{Op: "open zip archive", Err: err}
	}
	defer zr.Close()

	for _, f := range zr.File {
		target := filepath.Join(destDir, filepath.Clean("/"+f.Name)[1:])
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, f.Mode()); err != nil {
				return &gbuild.IOError{Op: "create dir from zip", Err: err}
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return &gbuild.IOError{Op: "create parent dir from zip", Err: err}
		}
		rc, err := f.Open()
		if err != nil {
			return &gbuild.IOError{Op: "open zip entry", Err: err}
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return &gbuild.IOError{Op: "create file from zip", Err: err}
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return &gbuild.IOError{Op: "write file from zip", Err: copyErr}
		}
	}
	return nil
}

