// Package object defines the git object model shared by the pack reader and the
// object writers: object kinds, hash algorithms, content ids, the loose-object
// header and the tree codec.
//
// A content id is the hash of "<kind> <size>\x00" followed by the object's
// content. SHA-1 ids are computed with a collision-detecting implementation.
package object
