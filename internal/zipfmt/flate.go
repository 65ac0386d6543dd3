package zipfmt

import (
	"io"

	"github.com/klauspost/compress/flate"
)

// newFlateReader wraps raw in a raw-DEFLATE decompressor. klauspost/compress
// is used in place of the standard library's compress/flate for the same
// reason the rest of the domain stack prefers it: a drop-in, faster
// implementation of the same format.
func newFlateReader(raw io.Reader) io.ReadCloser {
	return flate.NewReader(raw)
}
