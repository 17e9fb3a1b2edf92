package object

import (
	_ "crypto/sha256" // registers SHA-256 for go-digest
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/opencontainers/go-digest"
	"github.com/pjbgf/sha1cd"
)

// MaxHashSize is the size in bytes of the longest supported id.
const MaxHashSize = 32

// HashKind identifies the hash algorithm of an object database.
type HashKind uint8

const (
	// SHA1 is the classic git object format. Ids are computed with
	// collision detection.
	SHA1 HashKind = iota

	// SHA256 is the git "sha256" object format.
	SHA256
)

// Size returns the length of ids produced by h, in bytes.
func (h HashKind) Size() int {
	switch h {
	case SHA1:
		return 20
	case SHA256:
		return 32
	default:
		return 0
	}
}

// String returns the object format name.
func (h HashKind) String() string {
	switch h {
	case SHA1:
		return "sha1"
	case SHA256:
		return "sha256"
	default:
		return "unknown"
	}
}

// New returns a fresh hash.Hash for h.
func (h HashKind) New() hash.Hash {
	switch h {
	case SHA256:
		return digest.SHA256.Hash()
	default:
		return sha1cd.New()
	}
}

// ParseHashKind returns the hash kind named by s.
func ParseHashKind(s string) (HashKind, error) {
	switch s {
	case "sha1", "":
		return SHA1, nil
	case "sha256":
		return SHA256, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownHash, s)
	}
}

// ID is the content id of an object.
//
// IDs are comparable with ==. The zero value is not a valid id.
type ID struct {
	raw  [MaxHashSize]byte
	size uint8
}

// IDFromBytes copies b into an ID. The length of b selects the hash kind.
func IDFromBytes(b []byte) (ID, error) {
	if len(b) != SHA1.Size() && len(b) != SHA256.Size() {
		return ID{}, fmt.Errorf("%w: length %d", ErrInvalidID, len(b))
	}
	var id ID
	copy(id.raw[:], b)
	id.size = uint8(len(b)) //nolint:gosec // length checked above
	return id, nil
}

// ParseID decodes a hex encoded id.
func ParseID(s string) (ID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return IDFromBytes(b)
}

// Bytes returns the raw id bytes.
func (id ID) Bytes() []byte {
	return id.raw[:id.size]
}

// String returns the lower-case hex encoding of the id.
func (id ID) String() string {
	return hex.EncodeToString(id.Bytes())
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return id.size == 0
}

// HashKind returns the hash algorithm that produced the id.
func (id ID) HashKind() HashKind {
	if int(id.size) == SHA256.Size() {
		return SHA256
	}
	return SHA1
}
