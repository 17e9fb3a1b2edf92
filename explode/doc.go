// Package explode unpacks a git pack into loose objects.
//
// [Explode] opens the index and data file named by a path, decodes every
// object the index lists on a pool of workers and writes each one through an
// [OutputWriter]: into a loose object directory when one is configured, or
// into a hashing sink that only recomputes ids, which turns a run into a pure
// verification pass. Each written object's id is compared with the id the
// index recorded. Trees may legitimately change id because legacy file modes
// are canonicalized on write; such mismatches are tolerated and reported.
//
// How strictly the pack is checked is selected with a [pack.SafetyCheck],
// given either directly or by its configuration key:
//
//	outcome, err := explode.Explode("objects/pack/pack-1234.idx",
//		explode.WithObjectDir("objects"),
//		explode.WithSafetyCheckKey("skip-file-checksum"),
//		explode.WithDeletePack(true),
//	)
//
// Writes are idempotent and not rolled back. When a run fails part way, loose
// objects written before the failure remain in place.
package explode
