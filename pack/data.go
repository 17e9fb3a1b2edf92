package pack

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/meigma/gitodb/internal/sizing"
	"github.com/meigma/gitodb/internal/zlibpool"
	"github.com/meigma/gitodb/object"
)

const (
	packHeaderSize = 12

	// maxEntryHeader bounds the bytes needed for a type/size varint, an
	// ofs-delta offset and a ref-delta base id.
	maxEntryHeader = 10 + 10 + object.MaxHashSize

	// maxDeflateRatio bounds how far deflate can expand its input.
	maxDeflateRatio = 1032
)

// Packed entry types as stored in entry headers.
const (
	packedCommit   = 1
	packedTree     = 2
	packedBlob     = 3
	packedTag      = 4
	packedOfsDelta = 6
	packedRefDelta = 7
)

var packMagic = []byte("PACK")

// PackedKind is the type recorded in a packed entry header.
type PackedKind uint8

// String returns the git name of the packed type.
func (k PackedKind) String() string {
	switch k {
	case packedOfsDelta:
		return "ofs-delta"
	case packedRefDelta:
		return "ref-delta"
	}
	return object.Kind(k).String()
}

// IsDelta reports whether the entry is stored as a delta.
func (k PackedKind) IsDelta() bool {
	return k == packedOfsDelta || k == packedRefDelta
}

// entryHeader is a decoded packed entry header.
type entryHeader struct {
	offset     int64
	kind       PackedKind
	size       uint64
	baseOffset int64
	baseID     object.ID
	dataOffset int64
}

// Data reads a pack data file through positional reads.
// A Data is safe for concurrent use.
type Data struct {
	path    string
	f       *os.File
	size    int64
	version uint32
	count   uint32
	hash    object.HashKind
	readers *zlibpool.ReaderPool
}

// OpenData opens the pack data file at path and validates its header.
func OpenData(path string, hash object.HashKind) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pack: open data: %w", err)
	}
	d, err := newData(path, f, hash)
	if err != nil {
		_ = f.Close() //nolint:errcheck // best-effort cleanup
		return nil, err
	}
	return d, nil
}

func newData(path string, f *os.File, hash object.HashKind) (*Data, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("pack: stat data: %w", err)
	}
	if info.Size() < int64(packHeaderSize+hash.Size()) {
		return nil, fmt.Errorf("%w: %s: file too small (%d bytes)", ErrInvalidPack, path, info.Size())
	}

	var hdr [packHeaderSize]byte
	if _, err := f.ReadAt(hdr[:], 0); err != nil {
		return nil, fmt.Errorf("pack: read header: %w", err)
	}
	if !bytes.Equal(hdr[:4], packMagic) {
		return nil, fmt.Errorf("%w: %s: bad signature %q", ErrInvalidPack, path, hdr[:4])
	}
	version := binary.BigEndian.Uint32(hdr[4:8])
	if version != 2 && version != 3 {
		return nil, fmt.Errorf("%w: pack version %d", ErrUnsupportedVersion, version)
	}

	return &Data{
		path:    path,
		f:       f,
		size:    info.Size(),
		version: version,
		count:   binary.BigEndian.Uint32(hdr[8:12]),
		hash:    hash,
		readers: zlibpool.NewReaderPool(),
	}, nil
}

// Path returns the data file path.
func (d *Data) Path() string {
	return d.path
}

// Version returns the pack format version (2 or 3).
func (d *Data) Version() uint32 {
	return d.version
}

// Len returns the object count recorded in the pack header.
func (d *Data) Len() int {
	return int(d.count)
}

// Size returns the size of the data file in bytes.
func (d *Data) Size() int64 {
	return d.size
}

// end returns the offset where entries stop and the trailer begins.
func (d *Data) end() int64 {
	return d.size - int64(d.hash.Size())
}

// Checksum returns the trailer checksum of the data file.
func (d *Data) Checksum() ([]byte, error) {
	sum := make([]byte, d.hash.Size())
	if _, err := d.f.ReadAt(sum, d.end()); err != nil {
		return nil, fmt.Errorf("pack: read trailer: %w", err)
	}
	return sum, nil
}

// VerifyChecksum hashes the whole data file and compares it to the trailer.
func (d *Data) VerifyChecksum() error {
	want, err := d.Checksum()
	if err != nil {
		return err
	}
	h := d.hash.New()
	if _, err := io.Copy(h, io.NewSectionReader(d.f, 0, d.end())); err != nil {
		return fmt.Errorf("pack: hash data: %w", err)
	}
	if got := h.Sum(nil); !bytes.Equal(got, want) {
		return fmt.Errorf("%w: pack %s: trailer %x, computed %x", ErrChecksumMismatch, d.path, want, got)
	}
	return nil
}

// Close closes the data file.
func (d *Data) Close() error {
	return d.f.Close()
}

// readRaw returns the packed bytes in [start, end).
func (d *Data) readRaw(start, end int64) ([]byte, error) {
	buf := make([]byte, end-start)
	if _, err := d.f.ReadAt(buf, start); err != nil {
		return nil, decodeErr("read entry at %d: %v", start, err)
	}
	return buf, nil
}

// readHeader decodes the entry header at offset.
func (d *Data) readHeader(offset int64) (entryHeader, error) {
	if offset < packHeaderSize || offset >= d.end() {
		return entryHeader{}, decodeErr("entry offset %d outside pack", offset)
	}
	var buf [maxEntryHeader]byte
	n, err := d.f.ReadAt(buf[:], offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return entryHeader{}, decodeErr("read entry header at %d: %v", offset, err)
	}
	b := buf[:n]

	h := entryHeader{offset: offset}
	c := b[0]
	h.kind = PackedKind((c >> 4) & 0x7)
	h.size = uint64(c & 0x0f)
	i, shift := 1, uint(4)
	for c&0x80 != 0 {
		if i >= len(b) || shift > 63 {
			return entryHeader{}, decodeErr("malformed size in entry header at %d", offset)
		}
		c = b[i]
		i++
		h.size |= uint64(c&0x7f) << shift
		shift += 7
	}

	switch h.kind {
	case packedCommit, packedTree, packedBlob, packedTag:
	case packedOfsDelta:
		if i >= len(b) {
			return entryHeader{}, decodeErr("truncated ofs-delta at %d", offset)
		}
		c = b[i]
		i++
		rel := uint64(c & 0x7f)
		for c&0x80 != 0 {
			if i >= len(b) || rel >= 1<<56 {
				return entryHeader{}, decodeErr("malformed ofs-delta offset at %d", offset)
			}
			c = b[i]
			i++
			rel = ((rel + 1) << 7) | uint64(c&0x7f)
		}
		if rel == 0 || rel > uint64(offset-packHeaderSize) {
			return entryHeader{}, decodeErr("ofs-delta at %d points outside pack (distance %d)", offset, rel)
		}
		h.baseOffset = offset - int64(rel)
	case packedRefDelta:
		hashSize := d.hash.Size()
		if i+hashSize > len(b) {
			return entryHeader{}, decodeErr("truncated ref-delta at %d", offset)
		}
		h.baseID, _ = object.IDFromBytes(b[i : i+hashSize]) //nolint:errcheck // length fixed by the hash kind
		i += hashSize
	default:
		return entryHeader{}, decodeErr("invalid entry type %d at %d", h.kind, offset)
	}
	h.dataOffset = offset + int64(i)
	return h, nil
}

// inflate decompresses the entry body that ends at end.
func (d *Data) inflate(h entryHeader, end int64, maxSize uint64) ([]byte, error) {
	compressed := end - h.dataOffset
	if compressed <= 0 {
		return nil, decodeErr("entry at %d has no data", h.offset)
	}
	if h.size > uint64(compressed)*maxDeflateRatio+64 {
		return nil, decodeErr("entry at %d claims %d bytes from %d compressed", h.offset, h.size, compressed)
	}
	if err := sizing.CheckAlloc(h.size, maxSize); err != nil {
		return nil, decodeErr("entry at %d size %d: %v", h.offset, h.size, err)
	}

	zr, release, err := d.readers.Get(io.NewSectionReader(d.f, h.dataOffset, compressed))
	if err != nil {
		return nil, decodeErr("inflate entry at %d: %v", h.offset, err)
	}
	defer release()

	out := make([]byte, int(h.size))
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, decodeErr("inflate entry at %d: %v", h.offset, err)
	}
	var extra [1]byte
	if n, err := zr.Read(extra[:]); n != 0 || !errors.Is(err, io.EOF) {
		if n != 0 || err == nil {
			return nil, decodeErr("entry at %d inflates past declared size %d", h.offset, h.size)
		}
		return nil, decodeErr("inflate entry at %d: %v", h.offset, err)
	}
	return out, nil
}
