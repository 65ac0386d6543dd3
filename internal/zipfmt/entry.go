package zipfmt

import (
	"encoding/binary"
	"io"
	"strings"
)

// ExtraField is one (headerId, payload) pair from an entry's extra field
// block.
type ExtraField struct {
	ID      uint16
	Payload []byte
}

// Entry is a view of one archive entry read from its local file header, in
// physical (on-disk) order.
type Entry struct {
	Name                string
	RawName             []byte // raw on-disk bytes of the name, from the local header
	IsDir               bool
	Method              uint16
	CompressedSize      uint32
	UncompressedSize    uint32
	LocalHeaderOffset   int64
	CentralHeaderOffset int64
	CentralRawName      []byte // raw on-disk bytes of the name, from the central header
	TimeBytes           [4]byte
	Extra               []ExtraField

	dataOffset int64 // physical offset of the entry's raw data, just past the local header's name and extra field
}

// HasNoTimestamp reports whether this entry carries the all-zero "no time"
// sentinel instead of a real packed date+time.
func (e *Entry) HasNoTimestamp() bool {
	return e.TimeBytes == [4]byte{}
}

// ExtendedTimestamp reports whether the entry carries an extended
// timestamp ("UT") extra field.
func (e *Entry) ExtendedTimestamp() bool {
	for _, x := range e.Extra {
		if x.ID == extendedTimestampHeaderID {
			return true
		}
	}
	return false
}

// LocalTimeFieldOffset returns the physical byte offset of the 4-byte
// packed time+date field within this entry's local file header (LOCTIM).
func (e *Entry) LocalTimeFieldOffset() int64 {
	return e.LocalHeaderOffset + locTimeOffset
}

// CentralTimeFieldOffset returns the physical byte offset of the 4-byte
// packed time+date field within this entry's central directory file header
// (CENTIM).
func (e *Entry) CentralTimeFieldOffset() int64 {
	return e.CentralHeaderOffset + centralTimeOffset
}

// Entries returns the archive's entries in physical (local-header) order.
func (r *Reader) Entries() ([]*Entry, error) {
	cd, err := r.CentralDirectory()
	if err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, cd.Len())
	for _, offset := range cd.Offsets() {
		cr := cd.records[offset]
		e, err := r.readLocalEntry(offset, cr)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *Reader) readLocalEntry(localHeaderOffset int64, cr CentralRecord) (*Entry, error) {
	hdr := make([]byte, localHeaderFixedSize)
	if _, err := r.f.ReadAt(hdr, localHeaderOffset); err != nil {
		return nil, &FormatError{Path: r.path, Reason: "truncated local file header: " + err.Error()}
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != sigLocalFileHeader {
		return nil, &FormatError{Path: r.path, Reason: "bad local file header signature"}
	}

	method := binary.LittleEndian.Uint16(hdr[8:10])
	var timeBytes [4]byte
	copy(timeBytes[:], hdr[10:14])
	nameLen := int(binary.LittleEndian.Uint16(hdr[26:28]))
	extraLen := int(binary.LittleEndian.Uint16(hdr[28:30]))

	rawName := make([]byte, nameLen)
	if _, err := r.f.ReadAt(rawName, localHeaderOffset+localHeaderFixedSize); err != nil {
		return nil, &FormatError{Path: r.path, Reason: "truncated local file header name: " + err.Error()}
	}
	extraBytes := make([]byte, extraLen)
	if extraLen > 0 {
		if _, err := r.f.ReadAt(extraBytes, localHeaderOffset+localHeaderFixedSize+int64(nameLen)); err != nil {
			return nil, &FormatError{Path: r.path, Reason: "truncated local file header extra field: " + err.Error()}
		}
	}
	extra, err := parseExtraFields(extraBytes)
	if err != nil {
		return nil, &FormatError{Path: r.path, Reason: err.Error()}
	}

	name := string(rawName)
	return &Entry{
		Name:                name,
		RawName:             rawName,
		IsDir:               strings.HasSuffix(name, "/"),
		Method:              method,
		CompressedSize:      cr.CompressedSize,
		UncompressedSize:    cr.UncompressedSize,
		LocalHeaderOffset:   localHeaderOffset,
		CentralHeaderOffset: cr.CentralHeaderOffset,
		CentralRawName:      cr.RawName,
		TimeBytes:           timeBytes,
		Extra:               extra,
		dataOffset:          localHeaderOffset + localHeaderFixedSize + int64(nameLen) + int64(extraLen),
	}, nil
}

func parseExtraFields(b []byte) ([]ExtraField, error) {
	var out []ExtraField
	for len(b) > 0 {
		if len(b) < 4 {
			return nil, errShortExtra
		}
		id := binary.LittleEndian.Uint16(b[0:2])
		size := int(binary.LittleEndian.Uint16(b[2:4]))
		if len(b) < 4+size {
			return nil, errShortExtra
		}
		out = append(out, ExtraField{ID: id, Payload: b[4 : 4+size]})
		b = b[4+size:]
	}
	return out, nil
}

var errShortExtra = io.ErrUnexpectedEOF

// RawStream returns a reader over the entry's raw (possibly compressed)
// bytes, exactly as stored on disk.
func (r *Reader) RawStream(e *Entry) io.Reader {
	return io.NewSectionReader(r.f, e.dataOffset, int64(e.CompressedSize))
}

// DecompressedStream returns a reader over the entry's decompressed
// content. For MethodStored entries this is identical to RawStream. The
// caller must Close the returned reader.
func (r *Reader) DecompressedStream(e *Entry) (io.ReadCloser, error) {
	raw := r.RawStream(e)
	switch e.Method {
	case MethodStored:
		return io.NopCloser(raw), nil
	case MethodDeflated:
		return newFlateReader(raw), nil
	default:
		return nil, &FormatError{Path: r.path, Reason: "unsupported compression method for entry " + e.Name}
	}
}
