package zipfmt

// On-disk PKZip signatures and fixed field offsets. See the package doc
// comment for the records these belong to.
const (
	sigLocalFileHeader   = 0x04034B50
	sigCentralFileHeader = 0x02014B50
	sigEOCD              = 0x06054B50

	// zip64Sentinel marks a 32-bit field that has overflowed into a ZIP64
	// extension record. ZIP64 is explicitly unsupported.
	zip64Sentinel = 0xFFFFFFFF

	// localHeaderFixedSize is the local file header's fixed-width prefix,
	// including the 4-byte signature, up to (not including) the filename.
	localHeaderFixedSize = 30
	// locTimeOffset is LOCTIM: the offset of the packed time+date field
	// within a local file header.
	locTimeOffset = 10

	// centralHeaderFixedSize is the central directory file header's
	// fixed-width prefix, including the 4-byte signature, up to (not
	// including) the filename.
	centralHeaderFixedSize = 46
	// centralTimeOffset is CENTIM: the offset of the packed time+date
	// field within a central directory file header.
	centralTimeOffset = 12

	// eocdFixedSize is the end-of-central-directory record's fixed-width
	// prefix, including the 4-byte signature, up to (not including) the
	// comment.
	eocdFixedSize = 22

	// extendedTimestampHeaderID is the "UT" extra field (header ID 0x5455)
	// carrying Unix mtime/atime/ctime. Archives containing one are rejected.
	extendedTimestampHeaderID = 0x5455
)

// MethodStored is the ZIP "no compression" method.
const MethodStored = 0

// MethodDeflated is the standard ZIP DEFLATE compression method.
const MethodDeflated = 8
