// Package dostime converts between UTC instants and the 32-bit packed
// DOS date+time fields ZIP writers have historically stored local-wall-clock
// time into.
package dostime

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrUnrepresentable is returned by Codec.Pack when an instant falls outside
// the DOS date range (1980-01-01 through 2107-12-31).
var ErrUnrepresentable = errors.New("dostime: instant not representable in DOS date/time")

// Quantum is the DOS time resolution, in milliseconds.
const Quantum = 2000

// Codec packs and unpacks DOS date+time fields using a fixed timezone
// convention.
//
// ZIP writers encode local-wall-clock time, not UTC, so a Codec must agree
// with the writer that produced (or will read) the archive on which
// timezone "local" means. The zero value uses time.Local, matching a writer
// that never configured a timezone explicitly; set Location to pin the
// convention regardless of the process's environment (useful for
// reproducible tests and builds run in varying timezones).
type Codec struct {
	Location *time.Location
}

func (c Codec) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// Pack converts a UTC millisecond instant to the 4-byte little-endian DOS
// date+time field (time word first, date word second).
func (c Codec) Pack(utcMillis int64) ([4]byte, error) {
	t := time.UnixMilli(utcMillis).In(c.location())
	year := t.Year()
	if year < 1980 || year > 2107 {
		return [4]byte{}, fmt.Errorf("%w: year %d", ErrUnrepresentable, year)
	}

	timeWord := uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2) //nolint:gosec // fields are bit-width bounded by time.Time invariants
	dateWord := uint16(year-1980)<<9 | uint16(t.Month())<<5 | uint16(t.Day())       //nolint:gosec // same

	var out [4]byte
	binary.LittleEndian.PutUint16(out[0:2], timeWord)
	binary.LittleEndian.PutUint16(out[2:4], dateWord)
	return out, nil
}

// Unpack converts a 4-byte little-endian DOS date+time field to a UTC
// millisecond instant.
func (c Codec) Unpack(b [4]byte) int64 {
	timeWord := binary.LittleEndian.Uint16(b[0:2])
	dateWord := binary.LittleEndian.Uint16(b[2:4])

	sec := int(timeWord&0x1F) * 2
	minute := int((timeWord >> 5) & 0x3F)
	hour := int((timeWord >> 11) & 0x1F)
	day := int(dateWord & 0x1F)
	month := int((dateWord >> 5) & 0x0F)
	year := int((dateWord>>9)&0x7F) + 1980

	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, c.location())
	return t.UTC().UnixMilli()
}

// RoundDownToQuantum floors a UTC millisecond instant to the 2-second DOS
// quantum. All reproducibility comparisons are performed at this
// granularity.
func RoundDownToQuantum(utcMillis int64) int64 {
	return floorDiv(utcMillis, Quantum) * Quantum
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
