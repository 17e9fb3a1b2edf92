package gitodb

import "github.com/meigma/gitodb/explode"

// Errors re-exported from explode. Every *Error matches the sentinel of its kind.
var (
	// ErrBundleOpen is returned when the pack path does not name a valid index and data pair.
	ErrBundleOpen = explode.ErrBundleOpen

	// ErrInaccessibleDestination is returned when the object directory is missing or unusable.
	ErrInaccessibleDestination = explode.ErrInaccessibleDestination

	// ErrConfig is returned for unrecognized option values such as an unknown safety key.
	ErrConfig = explode.ErrConfig

	// ErrDecode is returned when a pack entry or file fails to decode or verify.
	ErrDecode = explode.ErrDecode

	// ErrObjectWrite is returned when an object cannot be stored.
	ErrObjectWrite = explode.ErrObjectWrite

	// ErrObjectEncodeMismatch is returned when a non-tree object is stored under a different id.
	ErrObjectEncodeMismatch = explode.ErrObjectEncodeMismatch

	// ErrDeletion is returned when the pack files cannot be removed after a clean run.
	ErrDeletion = explode.ErrDeletion
)
