package pack

import (
	"errors"
	"fmt"

	"github.com/meigma/gitodb/object"
)

// Sentinel errors for pack access.
var (
	// ErrInvalidIndex is returned when an index file is malformed.
	ErrInvalidIndex = errors.New("pack: invalid index")

	// ErrUnsupportedVersion is returned for index or pack versions this package cannot read.
	ErrUnsupportedVersion = errors.New("pack: unsupported version")

	// ErrInvalidPack is returned when a pack data file is malformed.
	ErrInvalidPack = errors.New("pack: invalid pack data")

	// ErrBundleMismatch is returned when an index does not describe the pack next to it.
	ErrBundleMismatch = errors.New("pack: index and pack do not match")

	// ErrChecksumMismatch is returned when a file trailer does not match the file content.
	ErrChecksumMismatch = errors.New("pack: file checksum mismatch")

	// ErrDecode is wrapped by every per-entry decoding failure.
	ErrDecode = errors.New("pack: decode failed")

	// ErrCRCMismatch is returned when packed entry bytes do not match the index CRC32.
	ErrCRCMismatch = errors.New("pack: entry crc32 mismatch")

	// ErrObjectMismatch is returned when a decoded object does not hash to its index id.
	ErrObjectMismatch = errors.New("pack: object id mismatch")

	// ErrUnsupportedAlgorithm is returned for traversal algorithms that are not implemented.
	ErrUnsupportedAlgorithm = errors.New("pack: unsupported traversal algorithm")

	// ErrInvalidSafetyCheck is returned for out-of-range safety check values.
	ErrInvalidSafetyCheck = errors.New("pack: invalid safety check")
)

// EntryError reports a failure while processing one index entry.
type EntryError struct {
	// Offset is the entry's position in the pack data file.
	Offset int64

	// ID is the object id recorded in the index.
	ID object.ID

	// Kind is the decoded object kind, or zero if decoding failed first.
	Kind object.Kind

	// Err is the underlying failure.
	Err error
}

// Error implements error.
func (e *EntryError) Error() string {
	if e.Kind.Valid() {
		return fmt.Sprintf("pack: %s object %s at offset %d: %v", e.Kind, e.ID, e.Offset, e.Err)
	}
	return fmt.Sprintf("pack: object %s at offset %d: %v", e.ID, e.Offset, e.Err)
}

// Unwrap returns the underlying failure.
func (e *EntryError) Unwrap() error {
	return e.Err
}

// decodeErr wraps err as a decoding failure.
func decodeErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecode, fmt.Sprintf(format, args...))
}
