package zipfmt

import (
	"encoding/binary"
	"io"
	"sort"
)

// CentralRecord is what the central directory records about one entry,
// keyed by local header offset.
type CentralRecord struct {
	CentralHeaderOffset int64
	RawName             []byte
	TimeBytes           [4]byte
	Method              uint16
	CompressedSize      uint32
	UncompressedSize    uint32
}

// CentralDirectory is the ordered index built once per analysis pass:
// localHeaderOffset → central directory metadata. It is immutable once
// built.
type CentralDirectory struct {
	// FirstLocalHeaderOffset biases local header offsets declared (relative
	// to the start of the ZIP data) onto physical byte offsets in the file.
	// It is non-zero when the archive is embedded in a larger file.
	FirstLocalHeaderOffset int64

	byOffset []int64 // keys of records, ascending (physical order)
	records  map[int64]CentralRecord
}

// Lookup returns the central directory record for the entry whose local
// header starts at the given physical offset.
func (cd *CentralDirectory) Lookup(localHeaderOffset int64) (CentralRecord, bool) {
	rec, ok := cd.records[localHeaderOffset]
	return rec, ok
}

// Offsets returns local header offsets in physical (ascending) order.
func (cd *CentralDirectory) Offsets() []int64 {
	return cd.byOffset
}

// Len reports the number of entries in the central directory.
func (cd *CentralDirectory) Len() int {
	return len(cd.byOffset)
}

// indexCentralDirectory walks the central directory sequentially and
// builds a CentralDirectory index.
func indexCentralDirectory(r io.ReaderAt, size int64, path string) (*CentralDirectory, error) {
	eocd, err := findEOCD(r, size, path)
	if err != nil {
		return nil, err
	}

	actualCentralDirStart := eocd.pos - eocd.centralDirSize
	if actualCentralDirStart < 0 {
		return nil, &FormatError{Path: path, Reason: "central directory size exceeds end-of-central-directory position"}
	}
	bias := actualCentralDirStart - eocd.centralDirOffset

	cd := &CentralDirectory{
		FirstLocalHeaderOffset: bias,
		records:                make(map[int64]CentralRecord, eocd.entryCount),
		byOffset:               make([]int64, 0, eocd.entryCount),
	}

	pos := actualCentralDirStart
	sec := &sectionReader{r: r, pos: pos, limit: eocd.pos}
	for pos < eocd.pos {
		n, err := readCentralEntry(sec, bias, path)
		if err != nil {
			return nil, err
		}
		if _, dup := cd.records[n.localHeaderOffset]; dup {
			return nil, &FormatError{Path: path, Reason: "duplicate local header offset in central directory"}
		}
		cd.records[n.localHeaderOffset] = CentralRecord{
			CentralHeaderOffset: n.centralHeaderOffset,
			RawName:             n.rawName,
			TimeBytes:           n.timeBytes,
			Method:              n.method,
			CompressedSize:      n.compressedSize,
			UncompressedSize:    n.uncompressedSize,
		}
		cd.byOffset = append(cd.byOffset, n.localHeaderOffset)
		pos = sec.pos
	}
	if pos != eocd.pos {
		return nil, &FormatError{Path: path, Reason: "central directory did not end at the declared end-of-central-directory position"}
	}

	sort.Slice(cd.byOffset, func(i, j int) bool { return cd.byOffset[i] < cd.byOffset[j] })
	return cd, nil
}

type centralEntry struct {
	centralHeaderOffset int64
	localHeaderOffset   int64
	rawName             []byte
	timeBytes           [4]byte
	method              uint16
	compressedSize      uint32
	uncompressedSize    uint32
}

// readCentralEntry reads one central directory file header, advancing sec.
func readCentralEntry(sec *sectionReader, bias int64, path string) (centralEntry, error) {
	headerStart := sec.pos
	hdr := make([]byte, centralHeaderFixedSize)
	if err := sec.readFull(hdr); err != nil {
		return centralEntry{}, &FormatError{Path: path, Reason: "truncated central directory file header: " + err.Error()}
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != sigCentralFileHeader {
		return centralEntry{}, &FormatError{Path: path, Reason: "bad central directory file header signature"}
	}

	method := binary.LittleEndian.Uint16(hdr[10:12])
	var timeBytes [4]byte
	copy(timeBytes[:], hdr[12:16])
	compressedSize := binary.LittleEndian.Uint32(hdr[20:24])
	uncompressedSize := binary.LittleEndian.Uint32(hdr[24:28])
	nameLen := int(binary.LittleEndian.Uint16(hdr[28:30]))
	extraLen := int(binary.LittleEndian.Uint16(hdr[30:32]))
	commentLen := int(binary.LittleEndian.Uint16(hdr[32:34]))
	relativeLocalOffset := binary.LittleEndian.Uint32(hdr[42:46])
	if relativeLocalOffset == zip64Sentinel {
		return centralEntry{}, &FormatError{Path: path, Reason: "ZIP64 archives are not supported"}
	}
	localHeaderOffset := int64(relativeLocalOffset) + bias
	if localHeaderOffset < 0 {
		return centralEntry{}, &FormatError{Path: path, Reason: "computed negative local header offset"}
	}

	rawName := make([]byte, nameLen)
	if err := sec.readFull(rawName); err != nil {
		return centralEntry{}, &FormatError{Path: path, Reason: "truncated central directory filename: " + err.Error()}
	}
	if err := sec.skip(extraLen); err != nil {
		return centralEntry{}, &FormatError{Path: path, Reason: "truncated central directory extra field: " + err.Error()}
	}
	if err := sec.skip(commentLen); err != nil {
		return centralEntry{}, &FormatError{Path: path, Reason: "truncated central directory comment: " + err.Error()}
	}

	return centralEntry{
		centralHeaderOffset: headerStart,
		localHeaderOffset:   localHeaderOffset,
		rawName:             rawName,
		timeBytes:           timeBytes,
		method:              method,
		compressedSize:      compressedSize,
		uncompressedSize:    uncompressedSize,
	}, nil
}

// sectionReader is a minimal forward-only cursor over an io.ReaderAt,
// sized to avoid pulling in bufio for what is a handful of sequential reads.
type sectionReader struct {
	r     io.ReaderAt
	pos   int64
	limit int64
}

func (s *sectionReader) readFull(buf []byte) error {
	if s.pos+int64(len(buf)) > s.limit {
		return io.ErrUnexpectedEOF
	}
	n, err := s.r.ReadAt(buf, s.pos)
	s.pos += int64(n)
	if err != nil && err != io.EOF {
		return err
	}
	if n != len(buf) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (s *sectionReader) skip(n int) error {
	if n == 0 {
		return nil
	}
	if s.pos+int64(n) > s.limit {
		return io.ErrUnexpectedEOF
	}
	s.pos += int64(n)
	return nil
}
