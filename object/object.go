package object

import (
	"bytes"
	"fmt"
	"hash"
	"strconv"
)

// Header returns the loose object header "<kind> <size>\x00".
func Header(kind Kind, size int64) []byte {
	buf := make([]byte, 0, 16)
	buf = append(buf, kind.String()...)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, size, 10)
	return append(buf, 0)
}

// ParseHeader parses a loose object header at the start of data and returns the
// kind, the declared content size and the header length.
func ParseHeader(data []byte) (Kind, int64, int, error) {
	end := bytes.IndexByte(data, 0)
	if end < 0 {
		return 0, 0, 0, ErrMalformedHeader
	}
	name, sizeText, ok := bytes.Cut(data[:end], []byte{' '})
	if !ok {
		return 0, 0, 0, ErrMalformedHeader
	}
	kind, err := ParseKind(string(name))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %w", ErrMalformedHeader, err)
	}
	size, err := strconv.ParseInt(string(sizeText), 10, 64)
	if err != nil || size < 0 {
		return 0, 0, 0, fmt.Errorf("%w: size %q", ErrMalformedHeader, sizeText)
	}
	return kind, size, end + 1, nil
}

// Compute returns the id of an object with the given kind and content.
func Compute(kind Kind, data []byte, hk HashKind) ID {
	h := NewHasher(kind, int64(len(data)), hk)
	_, _ = h.Write(data) //nolint:errcheck // hash writes never fail
	return h.Sum()
}

// Hasher computes an object id incrementally. The header is written on
// construction; callers write exactly the declared number of content bytes.
type Hasher struct {
	h    hash.Hash
	kind HashKind
}

// NewHasher returns a Hasher primed with the header for kind and size.
func NewHasher(kind Kind, size int64, hk HashKind) *Hasher {
	h := hk.New()
	_, _ = h.Write(Header(kind, size)) //nolint:errcheck // hash writes never fail
	return &Hasher{h: h, kind: hk}
}

// Write implements io.Writer.
func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

// Sum returns the id of everything written so far.
func (h *Hasher) Sum() ID {
	var id ID
	sum := h.h.Sum(id.raw[:0])
	id.size = uint8(len(sum)) //nolint:gosec // hash sizes are at most MaxHashSize
	return id
}

// Encode returns the content the loose encoding stores for an object.
//
// Trees are re-encoded with canonical file modes; other kinds are returned
// unchanged. The returned slice may alias data.
func Encode(kind Kind, data []byte, hk HashKind) ([]byte, error) {
	if kind != KindTree {
		return data, nil
	}
	out, _, err := CanonicalizeTree(data, hk)
	return out, err
}
