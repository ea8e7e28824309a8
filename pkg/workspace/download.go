package workspace

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"net/url"
	"os"

	"github.com/openflowlabs/gatebuild/pkg/gbuild"
)

// HasherKind selects the digest algorithm a DownloadFile commits to at
// open time (spec §4.2: "hash choice is sticky per handle").
type HasherKind int

const (
	HasherSHA256 HasherKind = iota
	HasherSHA512
)

// DownloadFile is a streaming sink into the workspace's downloads/
// directory: writes update both the file and a running hash.
type DownloadFile struct {
	path   string
	file   *os.File
	hasher hash.Hash
	kind   HasherKind
}

// OpenDownload creates (exclusively — it errors if the path exists) a
// new DownloadFile for u inside the workspace's download directory.
func (w *Workspace) OpenDownload(u *url.URL, kind HasherKind) (*DownloadFile, error) {
	path, err := w.FilePathForURL(u)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, &gbuild.IOError{Op: "open download file", Err: err}
	}
	var h hash.Hash
	switch kind {
	case HasherSHA512:
		h = sha512.New()
	default:
		h = sha256.New()
	}
	return &DownloadFile{path: path, file: f, hasher: h, kind: kind}, nil
}

// Write implements io.Writer, updating the hash alongside the file.
func (d *DownloadFile) Write(p []byte) (int, error) {
	n, err := d.file.Write(p)
	if n > 0 {
		d.hasher.Write(p[:n])
	}
	if err != nil {
		return n, &gbuild.IOError{Op: "write download file", Err: err}
	}
	return n, nil
}

// ReadFrom streams r into the download file, returning the number of
// bytes copied. Used instead of io.Copy(d, r) directly so callers get
// a typed error on failure.
func (d *DownloadFile) ReadFrom(r io.Reader) (int64, error) {
	n, err := io.Copy(d, r)
	if err != nil {
		return n, &gbuild.IOError{Op: "stream download", Err: err}
	}
	return n, nil
}

// Hash returns the lowercase hex digest computed so far.
func (d *DownloadFile) Hash() string {
	return hex.EncodeToString(d.hasher.Sum(nil))
}

// Kind reports which algorithm this handle committed to at open time.
func (d *DownloadFile) Kind() HasherKind { return d.kind }

// Path is the on-disk location the handle is writing to.
func (d *DownloadFile) Path() string { return d.path }

// Close closes the underlying file.
func (d *DownloadFile) Close() error {
	if err := d.file.Close(); err != nil {
		return &gbuild.IOError{Op: "close download file", Err: err}
	}
	return nil
}

// Discard removes the partial download file, used when acquisition
// aborts (spec §4.3: "on mismatch, abort the whole pipeline; do not
// poison the cache").
func (d *DownloadFile) Discard() error {
	_ = d.file.Close()
	if err := os.Remove(d.path); err != nil && !os.IsNotExist(err) {
		return &gbuild.IOError{Op: "discard partial download", Err: err}
	}
	return nil
}
