package pack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/meigma/gitodb/object"
)

const (
	indexHeaderSize = 8
	fanoutEntries   = 256
	fanoutSize      = fanoutEntries * 4
	largeOffsetFlag = 0x80000000
)

var indexMagic = []byte{0xff, 't', 'O', 'c'}

// IndexEntry describes one object listed in an index.
type IndexEntry struct {
	// ID is the object id.
	ID object.ID

	// Offset is the position of the packed entry in the data file.
	Offset int64

	// CRC32 is the IEEE checksum of the packed entry bytes.
	CRC32 uint32
}

// Index is a parsed version 2 pack index held in memory.
// An Index is immutable and safe for concurrent use.
type Index struct {
	path    string
	hash    object.HashKind
	data    []byte
	count   int
	fanout  [fanoutEntries]uint32
	ids     int // start of the sorted id table
	crcs    int // start of the CRC32 table
	offsets int // start of the 31-bit offset table
	large   int // start of the 64-bit offset table
	nlarge  int
}

// OpenIndex reads and parses the index file at path.
func OpenIndex(path string, hash object.HashKind) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pack: read index: %w", err)
	}
	idx, err := ParseIndex(data, hash)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	idx.path = path
	return idx, nil
}

// ParseIndex parses a version 2 index from data. The slice is retained.
func ParseIndex(data []byte, hash object.HashKind) (*Index, error) {
	hashSize := hash.Size()
	if hashSize == 0 {
		return nil, fmt.Errorf("%w: %s", object.ErrUnknownHash, hash)
	}
	if len(data) < indexHeaderSize+fanoutSize+2*hashSize {
		return nil, fmt.Errorf("%w: file too small (%d bytes)", ErrInvalidIndex, len(data))
	}
	if !bytes.Equal(data[:4], indexMagic) {
		// Version 1 indexes have no magic and start directly with the fanout.
		return nil, fmt.Errorf("%w: index version 1", ErrUnsupportedVersion)
	}
	if v := binary.BigEndian.Uint32(data[4:8]); v != 2 {
		return nil, fmt.Errorf("%w: index version %d", ErrUnsupportedVersion, v)
	}

	idx := &Index{hash: hash, data: data}
	var prev uint32
	for i := range fanoutEntries {
		n := binary.BigEndian.Uint32(data[indexHeaderSize+4*i:])
		if n < prev {
			return nil, fmt.Errorf("%w: fanout is not monotonic at %d", ErrInvalidIndex, i)
		}
		idx.fanout[i] = n
		prev = n
	}

	count := int(idx.fanout[fanoutEntries-1])
	idx.count = count
	idx.ids = indexHeaderSize + fanoutSize
	idx.crcs = idx.ids + count*hashSize
	idx.offsets = idx.crcs + count*4
	idx.large = idx.offsets + count*4

	trailer := len(data) - 2*hashSize
	if count > (len(data)-indexHeaderSize-fanoutSize)/(hashSize+8) || idx.large > trailer {
		return nil, fmt.Errorf("%w: %d entries do not fit in %d bytes", ErrInvalidIndex, count, len(data))
	}
	if (trailer-idx.large)%8 != 0 {
		return nil, fmt.Errorf("%w: large offset table is misaligned", ErrInvalidIndex)
	}
	idx.nlarge = (trailer - idx.large) / 8

	for i := 1; i < count; i++ {
		if bytes.Compare(idx.idAt(i-1), idx.idAt(i)) >= 0 {
			return nil, fmt.Errorf("%w: ids are not sorted at entry %d", ErrInvalidIndex, i)
		}
	}
	for i := range count {
		if _, err := idx.offsetAt(i); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// Path returns the file the index was read from, if any.
func (idx *Index) Path() string {
	return idx.path
}

// HashKind returns the hash function of the ids in the index.
func (idx *Index) HashKind() object.HashKind {
	return idx.hash
}

// Len returns the number of objects in the index.
func (idx *Index) Len() int {
	return idx.count
}

// Entry returns the i-th entry in id order.
func (idx *Index) Entry(i int) IndexEntry {
	id, _ := object.IDFromBytes(idx.idAt(i)) //nolint:errcheck // length fixed by the hash kind
	off, _ := idx.offsetAt(i)                //nolint:errcheck // validated in ParseIndex
	return IndexEntry{
		ID:     id,
		Offset: off,
		CRC32:  binary.BigEndian.Uint32(idx.data[idx.crcs+4*i:]),
	}
}

// Entries returns every entry in id order.
func (idx *Index) Entries() []IndexEntry {
	entries := make([]IndexEntry, idx.count)
	for i := range entries {
		entries[i] = idx.Entry(i)
	}
	return entries
}

// Lookup returns the entry for id.
func (idx *Index) Lookup(id object.ID) (IndexEntry, bool) {
	raw := id.Bytes()
	if len(raw) != idx.hash.Size() {
		return IndexEntry{}, false
	}
	lo := 0
	if raw[0] > 0 {
		lo = int(idx.fanout[raw[0]-1])
	}
	hi := int(idx.fanout[raw[0]])
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		switch c := bytes.Compare(idx.idAt(mid), raw); {
		case c == 0:
			return idx.Entry(mid), true
		case c < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return IndexEntry{}, false
}

// PackChecksum returns the checksum of the data file recorded in the index.
func (idx *Index) PackChecksum() []byte {
	hashSize := idx.hash.Size()
	end := len(idx.data) - hashSize
	return idx.data[end-hashSize : end]
}

// VerifyChecksum checks the index trailer against the index content.
func (idx *Index) VerifyChecksum() error {
	hashSize := idx.hash.Size()
	end := len(idx.data) - hashSize
	h := idx.hash.New()
	h.Write(idx.data[:end]) //nolint:errcheck // hash writes do not fail
	if got := h.Sum(nil); !bytes.Equal(got, idx.data[end:]) {
		return fmt.Errorf("%w: index %s: trailer %x, computed %x", ErrChecksumMismatch, idx.path, idx.data[end:], got)
	}
	return nil
}

func (idx *Index) idAt(i int) []byte {
	hashSize := idx.hash.Size()
	start := idx.ids + i*hashSize
	return idx.data[start : start+hashSize]
}

func (idx *Index) offsetAt(i int) (int64, error) {
	off := binary.BigEndian.Uint32(idx.data[idx.offsets+4*i:])
	if off&largeOffsetFlag == 0 {
		return int64(off), nil
	}
	j := int(off &^ largeOffsetFlag)
	if j >= idx.nlarge {
		return 0, fmt.Errorf("%w: large offset %d out of range", ErrInvalidIndex, j)
	}
	large := binary.BigEndian.Uint64(idx.data[idx.large+8*j:])
	if large > 1<<63-1 {
		return 0, fmt.Errorf("%w: offset %d overflows", ErrInvalidIndex, large)
	}
	return int64(large), nil
}
