/*
Package pack reads git pack bundles: a ".pack" data file holding many
objects and the ".idx" file mapping object ids to offsets in it. The format is
described in https://git-scm.com/docs/pack-format.

Objects in a pack are either stored in their entirety or as a delta against
another object in the same pack, referenced by a relative offset (ofs-delta)
or by id (ref-delta). Decoding resolves delta chains back to their base and
may reuse recently decoded objects from a per-worker [Cache].

[Bundle.Traverse] decodes every object listed in the index on a pool of
workers, verifying checksums according to a [SafetyCheck], and hands each
decoded object to a [Visitor].
*/
package pack
