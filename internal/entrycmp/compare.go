// Package entrycmp decides whether an entry's content changed between two
// archives: by size, by directory-child-set membership, or by comparing
// raw or decompressed byte streams.
package entrycmp

import (
	"bytes"
	"io"

	"github.com/aoapps/ztm/internal/zipfmt"
)

// Reason identifies which comparison path a Result came from, so callers
// can log it without the comparator knowing about logging.
type Reason int

const (
	ReasonSizeMismatch Reason = iota
	ReasonDirectoryChildren
	ReasonRawStream
	ReasonDecompressedStream
)

func (r Reason) String() string {
	switch r {
	case ReasonSizeMismatch:
		return "size-mismatch"
	case ReasonDirectoryChildren:
		return "directory-children"
	case ReasonRawStream:
		return "raw-stream"
	case ReasonDecompressedStream:
		return "decompressed-stream"
	default:
		return "unknown"
	}
}

// Result is the outcome of comparing one pair of entries.
type Result struct {
	Updated bool
	Reason  Reason
}

// Comparator compares entries between a build archive and a last-build
// archive. BuildEntries and LastEntries are each the full entry list for
// their archive, used for directory-child-set lookups.
type Comparator struct {
	BuildReader  *zipfmt.Reader
	BuildEntries []*zipfmt.Entry
	LastReader   *zipfmt.Reader
	LastEntries  []*zipfmt.Entry
}

// Compare decides whether build's content differs from last's: size first,
// then directory-child-set equality for directories, then stream equality
// for files.
func (c *Comparator) Compare(build, last *zipfmt.Entry) (Result, error) {
	if build.IsDir != last.IsDir {
		return Result{}, &IsDirMismatchError{Name: build.Name}
	}
	if build.UncompressedSize != last.UncompressedSize {
		return Result{Updated: true, Reason: ReasonSizeMismatch}, nil
	}
	if build.IsDir {
		return compareDirectories(c.BuildEntries, c.LastEntries, build, last)
	}
	return c.compareFiles(build, last)
}

func (c *Comparator) compareFiles(build, last *zipfmt.Entry) (Result, error) {
	sameMethod := build.Method == last.Method
	if sameMethod {
		rawEqual, err := streamsEqual(c.BuildReader.RawStream(build), c.LastReader.RawStream(last))
		if err != nil {
			return Result{}, err
		}
		if rawEqual {
			return Result{Updated: false, Reason: ReasonRawStream}, nil
		}
		if build.Method == zipfmt.MethodStored {
			// Raw comparison is authoritative for STORED entries: the raw
			// bytes are the content.
			return Result{Updated: true, Reason: ReasonRawStream}, nil
		}
	}

	buildDec, err := c.BuildReader.DecompressedStream(build)
	if err != nil {
		return Result{}, err
	}
	defer buildDec.Close() //nolint:errcheck // read-only decompression stream

	lastDec, err := c.LastReader.DecompressedStream(last)
	if err != nil {
		return Result{}, err
	}
	defer lastDec.Close() //nolint:errcheck // same

	decEqual, err := streamsEqual(buildDec, lastDec)
	if err != nil {
		return Result{}, err
	}
	return Result{Updated: !decEqual, Reason: ReasonDecompressedStream}, nil
}

// streamsEqual performs an exact byte-for-byte comparison. It is
// deliberately not hash-based: a hash collision must never be able to mask
// a real content difference.
func streamsEqual(a, b io.Reader) (bool, error) {
	da, err := io.ReadAll(a)
	if err != nil {
		return false, err
	}
	db, err := io.ReadAll(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(da, db), nil
}
