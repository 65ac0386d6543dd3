// Package zipfmt implements a structural, byte-level reader for PKZip
// archives (AAR/JAR/WAR/ZIP), exposing the local header and central
// directory offsets callers need to apply in-place patches to the packed
// DOS time fields. A general-purpose ZIP library does not expose those
// offsets, so this package computes them directly from the
// end-of-central-directory record rather than by reaching into another
// library's internals.
//
// ZIP64 archives are explicitly unsupported: the central-directory-offset
// sentinel 0xFFFFFFFF is treated as a fatal FormatError rather than parsed.
package zipfmt

import (
	"os"
)

// Reader provides read-only structural access to one ZIP archive. It holds
// its file handle for the duration of analysis; call Close when done.
type Reader struct {
	f    *os.File
	size int64
	path string

	cd *CentralDirectory // built lazily, cached for the lifetime of the Reader
}

// Open opens path for structural analysis.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close() //nolint:errcheck // already returning the primary error
		return nil, err
	}
	return &Reader{f: f, size: info.Size(), path: path}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Path returns the path this Reader was opened from.
func (r *Reader) Path() string {
	return r.path
}

// CentralDirectory builds (on first call) and returns the archive's central
// directory index. The index is built once per analysis pass and is
// immutable and cached for the Reader's lifetime.
func (r *Reader) CentralDirectory() (*CentralDirectory, error) {
	if r.cd != nil {
		return r.cd, nil
	}
	cd, err := indexCentralDirectory(r.f, r.size, r.path)
	if err != nil {
		return nil, err
	}
	r.cd = cd
	return cd, nil
}
