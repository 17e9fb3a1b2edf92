package object

import "errors"

// Sentinel errors for object encoding and decoding.
var (
	// ErrUnknownKind is returned when an object kind name or number is not recognized.
	ErrUnknownKind = errors.New("object: unknown kind")

	// ErrUnknownHash is returned when a hash algorithm name is not recognized.
	ErrUnknownHash = errors.New("object: unknown hash algorithm")

	// ErrInvalidID is returned when an id has the wrong length or is not valid hex.
	ErrInvalidID = errors.New("object: invalid id")

	// ErrMalformedTree is returned when tree content cannot be parsed.
	ErrMalformedTree = errors.New("object: malformed tree")

	// ErrMalformedHeader is returned when a loose object header cannot be parsed.
	ErrMalformedHeader = errors.New("object: malformed header")
)
