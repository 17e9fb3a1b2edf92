package explode

import (
	"errors"
	"fmt"

	"github.com/meigma/gitodb/object"
)

// ErrorKind classifies an explosion failure.
type ErrorKind uint8

const (
	// KindBundleOpen means the pack path did not resolve to a valid index and data pair.
	KindBundleOpen ErrorKind = iota + 1

	// KindInaccessibleDestination means the object directory is missing or unusable.
	KindInaccessibleDestination

	// KindConfig means an option value was not recognized.
	KindConfig

	// KindDecode means a pack entry or file could not be decoded or verified.
	KindDecode

	// KindObjectWrite means the output writer failed to store an object.
	KindObjectWrite

	// KindObjectEncodeMismatch means a non-tree object was stored under a different id.
	KindObjectEncodeMismatch

	// KindDeletion means the pack files could not be removed after a clean run.
	KindDeletion
)

// Sentinel errors matched by [Error] through errors.Is, one per ErrorKind.
var (
	ErrBundleOpen              = errors.New("explode: cannot open pack bundle")
	ErrInaccessibleDestination = errors.New("explode: object directory is inaccessible")
	ErrConfig                  = errors.New("explode: invalid configuration")
	ErrDecode                  = errors.New("explode: decode failed")
	ErrObjectWrite             = errors.New("explode: object write failed")
	ErrObjectEncodeMismatch    = errors.New("explode: object id mismatch")
	ErrDeletion                = errors.New("explode: pack deletion failed")
)

// String returns the name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindBundleOpen:
		return "bundle open"
	case KindInaccessibleDestination:
		return "inaccessible destination"
	case KindConfig:
		return "config"
	case KindDecode:
		return "decode"
	case KindObjectWrite:
		return "object write"
	case KindObjectEncodeMismatch:
		return "object encode mismatch"
	case KindDeletion:
		return "deletion"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindBundleOpen:
		return ErrBundleOpen
	case KindInaccessibleDestination:
		return ErrInaccessibleDestination
	case KindConfig:
		return ErrConfig
	case KindDecode:
		return ErrDecode
	case KindObjectWrite:
		return ErrObjectWrite
	case KindObjectEncodeMismatch:
		return ErrObjectEncodeMismatch
	case KindDeletion:
		return ErrDeletion
	default:
		return nil
	}
}

// Error is returned for every explosion failure. Which context fields are set
// depends on Kind.
type Error struct {
	Kind ErrorKind

	// Path is the file or directory involved, for bundle, destination,
	// decode and deletion failures.
	Path string

	// Key is the rejected configuration value.
	Key string

	// ObjectKind, Expected and Actual identify the object for per-object failures.
	ObjectKind object.Kind
	Expected   object.ID
	Actual     object.ID

	// Err is the underlying cause, if any.
	Err error
}

// Error implements error.
func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindConfig:
		msg = fmt.Sprintf("%v: unrecognized value %q", e.Kind.sentinel(), e.Key)
	case KindObjectEncodeMismatch:
		msg = fmt.Sprintf("%v: %s object expected %s, wrote %s", e.Kind.sentinel(), e.ObjectKind, e.Expected, e.Actual)
	case KindObjectWrite, KindDecode:
		msg = fmt.Sprintf("%v", e.Kind.sentinel())
		if !e.Expected.IsZero() {
			if e.ObjectKind.Valid() {
				msg += fmt.Sprintf(": %s object %s", e.ObjectKind, e.Expected)
			} else {
				msg += fmt.Sprintf(": object %s", e.Expected)
			}
		} else if e.Path != "" {
			msg += ": " + e.Path
		}
	default:
		msg = fmt.Sprintf("%v: %s", e.Kind.sentinel(), e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}
