package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/klauspost/compress/zlib"

	"github.com/meigma/gitodb/object"
)

const (
	packedOfsDelta = 6
	packedRefDelta = 7
)

// PackObject is one object queued in a PackBuilder.
type PackObject struct {
	Kind object.Kind
	Data []byte

	// Base is the position of the delta base in the builder, or -1 when the
	// object is stored whole.
	Base int

	// RefDelta stores the delta with a base id instead of a base offset.
	RefDelta bool

	// ID, when set, is recorded in the index instead of the computed id.
	ID object.ID

	// Delta, when set, is stored verbatim as the ofs-delta body.
	Delta []byte

	// DeclaredSize, when set, replaces the size written in the entry header.
	DeclaredSize uint64
}

// PackEntry describes where a built object landed in the pack.
type PackEntry struct {
	ID         object.ID
	Kind       object.Kind
	Offset     int64
	DataOffset int64
	End        int64
}

// PackBuilder assembles version 2 pack and index files for tests.
type PackBuilder struct {
	hash         object.HashKind
	objects      []PackObject
	largeOffsets bool
}

// NewPackBuilder creates an empty builder for the given hash function.
func NewPackBuilder(hash object.HashKind) *PackBuilder {
	return &PackBuilder{hash: hash}
}

// UseLargeOffsets stores every offset in the 64-bit index table.
func (b *PackBuilder) UseLargeOffsets() *PackBuilder {
	b.largeOffsets = true
	return b
}

// Add queues a whole object and returns its position.
func (b *PackBuilder) Add(kind object.Kind, data []byte) int {
	b.objects = append(b.objects, PackObject{Kind: kind, Data: data, Base: -1})
	return len(b.objects) - 1
}

// AddWithID queues a whole object that the index lists under id, which
// need not match its content.
func (b *PackBuilder) AddWithID(kind object.Kind, data []byte, id object.ID) int {
	b.objects = append(b.objects, PackObject{Kind: kind, Data: data, Base: -1, ID: id})
	return len(b.objects) - 1
}

// AddOfsDelta queues data as an ofs-delta against the object at base.
// The base must have been added earlier.
func (b *PackBuilder) AddOfsDelta(base int, data []byte) int {
	b.objects = append(b.objects, PackObject{Kind: b.objects[base].Kind, Data: data, Base: base})
	return len(b.objects) - 1
}

// AddRawOfsDelta queues delta bytes verbatim as an ofs-delta against the
// object at base. The index lists the entry under the id of the delta bytes.
func (b *PackBuilder) AddRawOfsDelta(base int, delta []byte) int {
	b.objects = append(b.objects, PackObject{Kind: b.objects[base].Kind, Data: delta, Base: base, Delta: delta})
	return len(b.objects) - 1
}

// AddWithDeclaredSize queues a whole object whose entry header claims size
// bytes instead of its real length.
func (b *PackBuilder) AddWithDeclaredSize(kind object.Kind, data []byte, size uint64) int {
	b.objects = append(b.objects, PackObject{Kind: kind, Data: data, Base: -1, DeclaredSize: size})
	return len(b.objects) - 1
}

// AddRefDelta queues data as a ref-delta against the object at base.
func (b *PackBuilder) AddRefDelta(base int, data []byte) int {
	b.objects = append(b.objects, PackObject{Kind: b.objects[base].Kind, Data: data, Base: base, RefDelta: true})
	return len(b.objects) - 1
}

// BuiltPack holds the encoded files.
type BuiltPack struct {
	Hash    object.HashKind
	Pack    []byte
	Index   []byte
	Entries []PackEntry // in the order objects were added
}

// Build encodes the queued objects.
func (b *PackBuilder) Build(tb testing.TB) *BuiltPack {
	tb.Helper()

	hashSize := b.hash.Size()
	var pack bytes.Buffer
	pack.WriteString("PACK")
	writeUint32(&pack, 2)
	writeUint32(&pack, uint32(len(b.objects))) //nolint:gosec // test packs are small

	entries := make([]PackEntry, len(b.objects))
	for i, obj := range b.objects {
		entries[i].ID = obj.ID
		if obj.ID.IsZero() {
			entries[i].ID = object.Compute(obj.Kind, obj.Data, b.hash)
		}
		entries[i].Kind = obj.Kind
	}

	crcs := make([]uint32, len(b.objects))
	for i, obj := range b.objects {
		offset := int64(pack.Len())
		var hdr []byte
		body := obj.Data
		declared := func(body []byte) uint64 {
			if obj.DeclaredSize != 0 {
				return obj.DeclaredSize
			}
			return uint64(len(body))
		}
		switch {
		case obj.Base < 0:
			hdr = entryHeader(uint8(obj.Kind), declared(body))
		case obj.RefDelta:
			body = EncodeDelta(b.objects[obj.Base].Data, obj.Data)
			hdr = entryHeader(packedRefDelta, declared(body))
			hdr = append(hdr, entries[obj.Base].ID.Bytes()...)
		default:
			if obj.Base >= i {
				tb.Fatalf("ofs-delta base %d must precede object %d", obj.Base, i)
			}
			body = obj.Delta
			if body == nil {
				body = EncodeDelta(b.objects[obj.Base].Data, obj.Data)
			}
			hdr = entryHeader(packedOfsDelta, declared(body))
			hdr = append(hdr, ofsDistance(offset-entries[obj.Base].Offset)...)
		}

		start := pack.Len()
		pack.Write(hdr)
		entries[i].Offset = offset
		entries[i].DataOffset = int64(pack.Len())
		pack.Write(Deflate(tb, body))
		entries[i].End = int64(pack.Len())
		crcs[i] = crc32.ChecksumIEEE(pack.Bytes()[start:])
	}

	h := b.hash.New()
	h.Write(pack.Bytes())
	packSum := h.Sum(nil)
	pack.Write(packSum)

	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(x, y int) int {
		return bytes.Compare(entries[x].ID.Bytes(), entries[y].ID.Bytes())
	})

	var idx bytes.Buffer
	idx.Write([]byte{0xff, 't', 'O', 'c'})
	writeUint32(&idx, 2)
	var fanout [256]uint32
	for _, i := range order {
		fanout[entries[i].ID.Bytes()[0]]++
	}
	var total uint32
	for _, n := range fanout {
		total += n
		writeUint32(&idx, total)
	}
	for _, i := range order {
		idx.Write(entries[i].ID.Bytes())
	}
	for _, i := range order {
		writeUint32(&idx, crcs[i])
	}
	var large []uint64
	for _, i := range order {
		if b.largeOffsets {
			writeUint32(&idx, 0x80000000|uint32(len(large))) //nolint:gosec // test packs are small
			large = append(large, uint64(entries[i].Offset))   //nolint:gosec // offsets are positive
			continue
		}
		writeUint32(&idx, uint32(entries[i].Offset)) //nolint:gosec // test packs are small
	}
	for _, off := range large {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], off)
		idx.Write(buf[:])
	}
	idx.Write(packSum)
	h = b.hash.New()
	h.Write(idx.Bytes())
	idx.Write(h.Sum(nil))

	if len(packSum) != hashSize {
		tb.Fatalf("unexpected checksum size %d", len(packSum))
	}
	return &BuiltPack{Hash: b.hash, Pack: pack.Bytes(), Index: idx.Bytes(), Entries: entries}
}

// WriteFiles writes name.idx and name.pack into dir and returns their paths.
func (p *BuiltPack) WriteFiles(tb testing.TB, dir, name string) (indexPath, packPath string) {
	tb.Helper()
	indexPath = filepath.Join(dir, name+".idx")
	packPath = filepath.Join(dir, name+".pack")
	if err := os.WriteFile(indexPath, p.Index, 0o600); err != nil {
		tb.Fatalf("write index: %v", err)
	}
	if err := os.WriteFile(packPath, p.Pack, 0o600); err != nil {
		tb.Fatalf("write pack: %v", err)
	}
	return indexPath, packPath
}

// CorruptEntry overwrites the start of the entry's zlib stream so it no
// longer inflates. File trailers are left untouched.
func (p *BuiltPack) CorruptEntry(i int) {
	at := p.Entries[i].DataOffset
	p.Pack[at] = 0xff
	p.Pack[at+1] = 0xff
}

// Deflate compresses data with zlib.
func Deflate(tb testing.TB, data []byte) []byte {
	tb.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		tb.Fatalf("deflate: %v", err)
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("deflate: %v", err)
	}
	return buf.Bytes()
}

// EncodeDelta produces a delta from base to target that copies the common
// prefix and suffix and inserts the rest.
func EncodeDelta(base, target []byte) []byte {
	delta := appendDeltaVarint(nil, uint64(len(base)))
	delta = appendDeltaVarint(delta, uint64(len(target)))

	prefix := 0
	for prefix < len(base) && prefix < len(target) && prefix < 0xffffff && base[prefix] == target[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(base)-prefix && suffix < len(target)-prefix && suffix < 0xffffff &&
		base[len(base)-1-suffix] == target[len(target)-1-suffix] {
		suffix++
	}

	if prefix > 0 {
		delta = appendCopy(delta, 0, prefix)
	}
	for rest := target[prefix : len(target)-suffix]; len(rest) > 0; {
		n := min(len(rest), 127)
		delta = append(delta, byte(n))
		delta = append(delta, rest[:n]...)
		rest = rest[n:]
	}
	if suffix > 0 {
		delta = appendCopy(delta, len(base)-suffix, suffix)
	}
	return delta
}

func appendCopy(delta []byte, offset, size int) []byte {
	op := byte(0x80)
	var args []byte
	for i := range 4 {
		if v := byte(offset >> (8 * i)); v != 0 {
			op |= 1 << i
			args = append(args, v)
		}
	}
	for i := range 3 {
		if v := byte(size >> (8 * i)); v != 0 {
			op |= 0x10 << i
			args = append(args, v)
		}
	}
	return append(append(delta, op), args...)
}

func appendDeltaVarint(b []byte, v uint64) []byte {
	for v >= 0x80 {
		b = append(b, byte(v)|0x80)
		v >>= 7
	}
	return append(b, byte(v))
}

func entryHeader(kind uint8, size uint64) []byte {
	c := kind<<4 | byte(size&0x0f)
	size >>= 4
	var hdr []byte
	for size > 0 {
		hdr = append(hdr, c|0x80)
		c = byte(size & 0x7f)
		size >>= 7
	}
	return append(hdr, c)
}

func ofsDistance(rel int64) []byte {
	buf := []byte{byte(rel & 0x7f)}
	rel >>= 7
	for rel > 0 {
		rel--
		buf = append([]byte{0x80 | byte(rel&0x7f)}, buf...)
		rel >>= 7
	}
	return buf
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

// DeltaSizes encodes the source and target size header of a delta.
func DeltaSizes(src, dst uint64) []byte {
	return appendDeltaVarint(appendDeltaVarint(nil, src), dst)
}
