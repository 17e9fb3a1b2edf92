package odb

import "errors"

// Sentinel errors for object writers.
var (
	// ErrSizeMismatch is returned when a stream yields more or fewer bytes than declared.
	ErrSizeMismatch = errors.New("odb: stream size mismatch")
)
