// Package gitodb explodes git pack files into a loose object database.
//
// A pack bundles many objects, often stored as deltas against each other,
// next to an index that lists their ids. [Explode] decodes every object the
// index lists, re-verifies it and writes it to a loose object directory using
// the layout git reads (objects/ab/cdef...). Without a destination directory
// the same run only recomputes ids, which makes it a pack verifier:
//
//	outcome, err := gitodb.Explode(".git/objects/pack/pack-1234.pack",
//		gitodb.WithObjectDir(".git/objects"),
//		gitodb.WithSafetyCheck(gitodb.SkipFileChecksumVerification),
//	)
//	if err != nil {
//		return err
//	}
//	fmt.Println(outcome.Processed, "objects")
//
// The lower layers are usable on their own: package [github.com/meigma/gitodb/pack]
// reads pack bundles, [github.com/meigma/gitodb/odb/loose] stores loose objects
// and [github.com/meigma/gitodb/object] hashes and encodes objects.
package gitodb
