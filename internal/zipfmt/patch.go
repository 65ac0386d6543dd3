package zipfmt

import (
	"bytes"
	"os"
)

// Patch is a verified 4-byte in-place overwrite of a DOS time field.
// Expected and Replacement are never equal; a patch that would be a no-op
// is never constructed.
type Patch struct {
	Offset      int64
	Expected    [4]byte
	Replacement [4]byte
}

// PatchSet is a list of patches, in discovery order. Discovery order is
// preserved through application for deterministic logs; patches are
// otherwise independent and commutative by offset.
type PatchSet []Patch

// Apply applies every patch to path under a single read-write handle, using
// read-verify-write semantics: each patch's current bytes must match
// Expected before Replacement is written. An empty PatchSet does not open
// the file.
func (ps PatchSet) Apply(path string) error {
	if len(ps) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // best-effort close after a successful or failed write pass

	for _, p := range ps {
		var actual [4]byte
		if _, err := f.ReadAt(actual[:], p.Offset); err != nil {
			return err
		}
		if !bytes.Equal(actual[:], p.Expected[:]) {
			return &UnexpectedDataError{Path: path, Offset: p.Offset, Expected: p.Expected, Actual: actual}
		}
		if _, err := f.WriteAt(p.Replacement[:], p.Offset); err != nil {
			return err
		}
	}
	return nil
}
