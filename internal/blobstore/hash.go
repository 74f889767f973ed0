package blobstore

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

// HashSize is the digest length of a content hash (BLAKE3-256).
const HashSize = 32

// ContentHash is the BLAKE3-256 digest that names a blob.
type ContentHash [HashSize]byte

// String renders the hash as lowercase hex, the same text used for the
// blob's on-disk file name.
func (h ContentHash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero value.
func (h ContentHash) IsZero() bool {
	return h == ContentHash{}
}

// ContentHashFromBytes validates and wraps a 32-byte digest.
func ContentHashFromBytes(b []byte) (ContentHash, error) {
	var h ContentHash
	if len(b) != HashSize {
		return h, fmt.Errorf("blobstore: content hash must be %d bytes, got %d", HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// HashReader computes the BLAKE3-256 digest of r's full contents.
func HashReader(r io.Reader) (ContentHash, error) {
	hasher := blake3.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return ContentHash{}, err
	}
	sum := hasher.Sum(nil)
	return ContentHashFromBytes(sum)
}
