package ztm

import (
	"fmt"

	"github.com/aoapps/ztm/internal/zipfmt"
)

// Re-exported from internal/zipfmt so callers can errors.As against them
// without reaching into an internal package.
type (
	FormatError                       = zipfmt.FormatError
	NoTimestampError                  = zipfmt.NoTimestampError
	ExtendedTimestampUnsupportedError = zipfmt.ExtendedTimestampUnsupportedError
	UnexpectedDataError               = zipfmt.UnexpectedDataError
)

// NotReproducibleError reports that BuildReproducible was true but an
// entry's packed time did not match the configured output timestamp.
type NotReproducibleError struct {
	Path   string
	Name   string
	Entry  int64 // UTC ms, DOS-quantum rounded
	Output int64 // UTC ms, DOS-quantum rounded
}

func (e *NotReproducibleError) Error() string {
	return fmt.Sprintf(
		"ztm: %s: entry %q time %d does not match output timestamp %d",
		e.Path, e.Name, e.Entry, e.Output,
	)
}

// DuplicateNameError reports that a last-build archive contains more than
// one entry with the same name.
type DuplicateNameError struct {
	Path string
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("ztm: %s: entry name %q appears more than once in the last-build archive", e.Path, e.Name)
}

// CentralDirectoryMismatchError reports that a central header's raw
// filename did not match the corresponding local header's raw filename at
// patch time.
type CentralDirectoryMismatchError struct {
	Path string
	Name string
}

func (e *CentralDirectoryMismatchError) Error() string {
	return fmt.Sprintf(
		"ztm: %s: central directory raw filename does not match local header raw filename for entry %q",
		e.Path, e.Name,
	)
}
