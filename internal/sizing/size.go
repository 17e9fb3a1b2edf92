// Package sizing provides overflow-checked size arithmetic for values read from
// untrusted pack and index headers.
package sizing

import (
	"errors"
	"math"
)

// ErrOverflow is returned when a size does not fit the target type.
var ErrOverflow = errors.New("sizing: overflow")

// ToInt converts a uint64 to int, returning ErrOverflow if it doesn't fit.
func ToInt(size uint64) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, ErrOverflow
	}
	return int(size), nil
}

// CheckAlloc reports ErrOverflow when an allocation of size bytes exceeds
// limit. A limit of 0 disables the check.
func CheckAlloc(size, limit uint64) error {
	if limit > 0 && size > limit {
		return ErrOverflow
	}
	if _, err := ToInt(size); err != nil {
		return err
	}
	return nil
}
