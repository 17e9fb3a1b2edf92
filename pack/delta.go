package pack

import (
	"fmt"

	"github.com/meigma/gitodb/internal/sizing"
)

const (
	// deltaCopyDefaultSize is the size of a copy instruction that encodes no size bytes.
	deltaCopyDefaultSize = 0x10000

	// deltaMaxCopySize is the largest output a single instruction can produce.
	deltaMaxCopySize = 0xffffff
)

// applyDelta reconstructs the target object from base and delta instructions.
// Targets larger than maxSize are rejected before allocation (0 disables the check).
func applyDelta(base, delta []byte, maxSize uint64) ([]byte, error) {
	srcSize, n, err := deltaVarint(delta)
	if err != nil {
		return nil, err
	}
	delta = delta[n:]
	if srcSize != uint64(len(base)) {
		return nil, decodeErr("delta base size %d, have %d bytes", srcSize, len(base))
	}
	dstSize, n, err := deltaVarint(delta)
	if err != nil {
		return nil, err
	}
	delta = delta[n:]
	if err := sizing.CheckAlloc(dstSize, maxSize); err != nil {
		return nil, decodeErr("delta target size %d: %v", dstSize, err)
	}
	if dstSize > uint64(len(delta))*deltaMaxCopySize {
		return nil, decodeErr("delta target size %d unreachable with %d instruction bytes", dstSize, len(delta))
	}

	// Grow past len(base)+len(delta) only as instructions actually produce output.
	out := make([]byte, 0, int(min(dstSize, uint64(len(base)+len(delta)))))
	for len(delta) > 0 {
		op := delta[0]
		delta = delta[1:]
		switch {
		case op&0x80 != 0:
			var offset, size uint64
			for i := range 4 {
				if op&(1<<i) == 0 {
					continue
				}
				if len(delta) == 0 {
					return nil, decodeErr("truncated delta copy instruction")
				}
				offset |= uint64(delta[0]) << (8 * i)
				delta = delta[1:]
			}
			for i := range 3 {
				if op&(0x10<<i) == 0 {
					continue
				}
				if len(delta) == 0 {
					return nil, decodeErr("truncated delta copy instruction")
				}
				size |= uint64(delta[0]) << (8 * i)
				delta = delta[1:]
			}
			if size == 0 {
				size = deltaCopyDefaultSize
			}
			if offset+size > uint64(len(base)) {
				return nil, decodeErr("delta copy [%d, %d) exceeds base of %d bytes", offset, offset+size, len(base))
			}
			if uint64(len(out))+size > dstSize {
				return nil, decodeErr("delta output exceeds declared size %d", dstSize)
			}
			out = append(out, base[offset:offset+size]...)
		case op != 0:
			size := int(op)
			if len(delta) < size {
				return nil, decodeErr("truncated delta insert instruction")
			}
			if uint64(len(out)+size) > dstSize {
				return nil, decodeErr("delta output exceeds declared size %d", dstSize)
			}
			out = append(out, delta[:size]...)
			delta = delta[size:]
		default:
			return nil, decodeErr("invalid delta instruction 0")
		}
	}
	if uint64(len(out)) != dstSize {
		return nil, decodeErr("delta produced %d bytes, declared %d", len(out), dstSize)
	}
	return out, nil
}

// deltaVarint reads a little-endian base-128 size from the start of a delta.
func deltaVarint(b []byte) (uint64, int, error) {
	var v uint64
	for i, shift := 0, uint(0); i < len(b); i, shift = i+1, shift+7 {
		if shift > 63 {
			break
		}
		v |= uint64(b[i]&0x7f) << shift
		if b[i]&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: malformed delta size", ErrDecode)
}
