package entrycmp

import (
	"io"

	"github.com/opencontainers/go-digest"
)

// Digest computes the SHA-256 digest of r's remaining bytes. It is
// diagnostic only, used to give operators a stable identifier for a changed
// entry's content without logging raw bytes; it never participates in the
// equality decision itself.
func Digest(r io.Reader) (digest.Digest, error) {
	return digest.SHA256.FromReader(r)
}
