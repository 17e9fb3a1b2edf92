package gitodb

import (
	"github.com/meigma/gitodb/explode"
	"github.com/meigma/gitodb/pack"
)

// Re-export explosion types from the explode package.
type (
	// Outcome summarizes an explosion.
	Outcome = explode.Outcome

	// Option configures Explode.
	Option = explode.Option

	// Error is returned for every explosion failure.
	Error = explode.Error

	// ErrorKind classifies an explosion failure.
	ErrorKind = explode.ErrorKind

	// SafetyCheck selects how much verification a run performs.
	SafetyCheck = pack.SafetyCheck
)

// Re-export safety check levels, strictest first.
const (
	SafetyCheckAll                        = pack.SafetyCheckAll
	SkipFileChecksumVerification          = pack.SkipFileChecksumVerification
	SkipFileAndObjectChecksumVerification = pack.SkipFileAndObjectChecksumVerification

	SkipFileAndObjectChecksumVerificationAndNoAbortOnDecodeError = pack.SkipFileAndObjectChecksumVerificationAndNoAbortOnDecodeError
)

// Re-export explosion options.
var (
	WithObjectDir          = explode.WithObjectDir
	WithSafetyCheck        = explode.WithSafetyCheck
	WithSafetyCheckKey     = explode.WithSafetyCheckKey
	WithThreadLimit        = explode.WithThreadLimit
	WithMaxObjectSize      = explode.WithMaxObjectSize
	WithDeletePack         = explode.WithDeletePack
	WithHashKind           = explode.WithHashKind
	WithLogger             = explode.WithLogger
	WithProgress           = explode.WithProgress
	WithDecodeCacheFactory = explode.WithDecodeCacheFactory
	WithStoreOptions       = explode.WithStoreOptions
)

// Explode writes every object of the pack at packPath through the configured
// output. See [explode.Explode].
func Explode(packPath string, opts ...Option) (*Outcome, error) {
	return explode.Explode(packPath, opts...)
}

// ParseSafetyCheck returns the safety check for a configuration key.
func ParseSafetyCheck(key string) (SafetyCheck, error) {
	return explode.ParseSafetyCheck(key)
}
