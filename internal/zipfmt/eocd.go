package zipfmt

import (
	"encoding/binary"
	"io"
)

// maxEOCDCommentSearch bounds how far back from EOF the end-of-central-
// directory signature is searched for: the fixed record plus the largest
// possible comment (a 16-bit length field).
const maxEOCDCommentSearch = eocdFixedSize + 0xFFFF

// eocdRecord holds the fields of the end-of-central-directory record
// needed to locate and index the central directory.
type eocdRecord struct {
	pos              int64 // physical byte offset of the signature
	centralDirSize   int64
	centralDirOffset int64 // as declared in the record; not yet bias-corrected
	entryCount       int
}

// findEOCD locates and parses the end-of-central-directory record by
// scanning backward from the end of the file for its signature.
func findEOCD(r io.ReaderAt, size int64, path string) (eocdRecord, error) {
	searchLen := size
	if searchLen > maxEOCDCommentSearch {
		searchLen = maxEOCDCommentSearch
	}
	if searchLen < eocdFixedSize {
		return eocdRecord{}, &FormatError{Path: path, Reason: "file too small to contain an end-of-central-directory record"}
	}

	buf := make([]byte, searchLen)
	if _, err := r.ReadAt(buf, size-searchLen); err != nil && err != io.EOF {
		return eocdRecord{}, err
	}

	sigPos := -1
	for i := len(buf) - eocdFixedSize; i >= 0; i-- {
		if binary.LittleEndian.Uint32(buf[i:i+4]) == sigEOCD {
			sigPos = i
			break
		}
	}
	if sigPos < 0 {
		return eocdRecord{}, &FormatError{Path: path, Reason: "end-of-central-directory signature not found"}
	}

	rec := buf[sigPos : sigPos+eocdFixedSize]
	centralDirSize := int64(binary.LittleEndian.Uint32(rec[12:16]))
	centralDirOffsetField := binary.LittleEndian.Uint32(rec[16:20])
	entryCount := int(binary.LittleEndian.Uint16(rec[10:12]))

	if centralDirOffsetField == zip64Sentinel {
		return eocdRecord{}, &FormatError{Path: path, Reason: "ZIP64 archives are not supported"}
	}

	return eocdRecord{
		pos:              size - searchLen + int64(sigPos),
		centralDirSize:   centralDirSize,
		centralDirOffset: int64(centralDirOffsetField),
		entryCount:       entryCount,
	}, nil
}
