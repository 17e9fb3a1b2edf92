package pack

// SafetyCheck selects how much verification a traversal performs.
//
// Values are ordered from strictest to most lenient; the zero value is
// SafetyCheckAll.
type SafetyCheck uint8

const (
	// SafetyCheckAll verifies the pack and index file checksums and every
	// object, and aborts on the first decode failure.
	SafetyCheckAll SafetyCheck = iota

	// SkipFileChecksumVerification skips the file checksums but still
	// verifies every object.
	SkipFileChecksumVerification

	// SkipFileAndObjectChecksumVerification skips all checksums but still
	// aborts on the first decode failure.
	SkipFileAndObjectChecksumVerification

	// SkipFileAndObjectChecksumVerificationAndNoAbortOnDecodeError skips all
	// checksums and records decode failures instead of aborting, to salvage
	// as much as possible from a damaged pack.
	SkipFileAndObjectChecksumVerificationAndNoAbortOnDecodeError
)

// safetyCheckKeys are the configuration keys in strictness order.
var safetyCheckKeys = [...]string{
	SafetyCheckAll:                        "all",
	SkipFileChecksumVerification:          "skip-file-checksum",
	SkipFileAndObjectChecksumVerification: "skip-file-and-object-checksum",
	SkipFileAndObjectChecksumVerificationAndNoAbortOnDecodeError: "skip-file-and-object-checksum-and-no-abort-on-decode",
}

// SafetyChecks returns every level, strictest first.
func SafetyChecks() []SafetyCheck {
	return []SafetyCheck{
		SafetyCheckAll,
		SkipFileChecksumVerification,
		SkipFileAndObjectChecksumVerification,
		SkipFileAndObjectChecksumVerificationAndNoAbortOnDecodeError,
	}
}

// String returns the configuration key of the level.
func (c SafetyCheck) String() string {
	if !c.Valid() {
		return "unknown"
	}
	return safetyCheckKeys[c]
}

// Valid reports whether c is a defined level.
func (c SafetyCheck) Valid() bool {
	return int(c) < len(safetyCheckKeys)
}

// VerifyFileChecksum reports whether the pack and index trailers are verified.
func (c SafetyCheck) VerifyFileChecksum() bool {
	return c == SafetyCheckAll
}

// VerifyObjectChecksum reports whether each entry's CRC32 and decoded id are verified.
func (c SafetyCheck) VerifyObjectChecksum() bool {
	return c <= SkipFileChecksumVerification
}

// AbortOnDecodeError reports whether the first per-entry failure ends the traversal.
func (c SafetyCheck) AbortOnDecodeError() bool {
	return c < SkipFileAndObjectChecksumVerificationAndNoAbortOnDecodeError
}
