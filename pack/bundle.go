package pack

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/meigma/gitodb/object"
)

const (
	indexExt = ".idx"
	dataExt  = ".pack"

	// maxChainLength bounds delta chains so ref-delta cycles terminate.
	maxChainLength = 10_000

	// DefaultMaxObjectSize is the largest decoded object a bundle accepts
	// unless WithMaxObjectSize says otherwise.
	DefaultMaxObjectSize = 4 << 30
)

// Bundle pairs a pack index with its data file.
// A Bundle is safe for concurrent use until Close is called.
type Bundle struct {
	index         *Index
	data          *Data
	offsets       []int64 // sorted entry offsets
	hash          object.HashKind
	maxObjectSize uint64
	logger        *slog.Logger
}

// BundleOption configures OpenBundle.
type BundleOption func(*Bundle)

// WithHashKind sets the object hash function of the bundle (default SHA1).
func WithHashKind(hash object.HashKind) BundleOption {
	return func(b *Bundle) {
		b.hash = hash
	}
}

// WithMaxObjectSize rejects objects and deltas whose decoded size exceeds n
// bytes (default DefaultMaxObjectSize). Zero removes the limit.
func WithMaxObjectSize(n uint64) BundleOption {
	return func(b *Bundle) {
		b.maxObjectSize = n
	}
}

// WithLogger sets the logger for bundle operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) BundleOption {
	return func(b *Bundle) {
		b.logger = logger
	}
}

// BundlePaths returns the index and data paths for a path naming the .idx
// file, the .pack file or their shared stem.
func BundlePaths(path string) (indexPath, dataPath string) {
	stem := path
	if ext := filepath.Ext(path); ext == indexExt || ext == dataExt {
		stem = strings.TrimSuffix(path, ext)
	}
	return stem + indexExt, stem + dataExt
}

// OpenBundle opens the index and data file identified by path read-only and
// checks that they belong together.
func OpenBundle(path string, opts ...BundleOption) (*Bundle, error) {
	b := &Bundle{hash: object.SHA1, maxObjectSize: DefaultMaxObjectSize}
	for _, opt := range opts {
		opt(b)
	}
	if b.hash.Size() == 0 {
		return nil, fmt.Errorf("%w: %s", object.ErrUnknownHash, b.hash)
	}

	indexPath, dataPath := BundlePaths(path)
	index, err := OpenIndex(indexPath, b.hash)
	if err != nil {
		return nil, err
	}
	data, err := OpenData(dataPath, b.hash)
	if err != nil {
		return nil, err
	}
	b.index = index
	b.data = data

	if err := b.validate(); err != nil {
		_ = data.Close() //nolint:errcheck // best-effort cleanup
		return nil, err
	}
	b.log().Debug("opened pack bundle",
		"index", indexPath,
		"pack", dataPath,
		"objects", index.Len(),
		"version", data.Version())
	return b, nil
}

// validate checks the index against the data file and builds the offset table.
func (b *Bundle) validate() error {
	if b.index.Len() != b.data.Len() {
		return fmt.Errorf("%w: index lists %d objects, pack holds %d", ErrBundleMismatch, b.index.Len(), b.data.Len())
	}
	sum, err := b.data.Checksum()
	if err != nil {
		return err
	}
	if !bytes.Equal(sum, b.index.PackChecksum()) {
		return fmt.Errorf("%w: index expects pack %x, pack trailer is %x", ErrBundleMismatch, b.index.PackChecksum(), sum)
	}

	offsets := make([]int64, b.index.Len())
	for i := range offsets {
		offsets[i] = b.index.Entry(i).Offset
	}
	slices.Sort(offsets)
	for i, off := range offsets {
		if off < packHeaderSize || off >= b.data.end() {
			return fmt.Errorf("%w: offset %d outside pack", ErrInvalidIndex, off)
		}
		if i > 0 && offsets[i-1] == off {
			return fmt.Errorf("%w: duplicate offset %d", ErrInvalidIndex, off)
		}
	}
	b.offsets = offsets
	return nil
}

// log returns the logger, falling back to a discard logger if nil.
func (b *Bundle) log() *slog.Logger {
	if b.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.logger
}

// Index returns the bundle's index.
func (b *Bundle) Index() *Index {
	return b.index
}

// Data returns the bundle's data file.
func (b *Bundle) Data() *Data {
	return b.data
}

// IndexPath returns the path of the index file.
func (b *Bundle) IndexPath() string {
	return b.index.Path()
}

// DataPath returns the path of the data file.
func (b *Bundle) DataPath() string {
	return b.data.Path()
}

// MaxObjectSize returns the decoded size limit, zero meaning none.
func (b *Bundle) MaxObjectSize() uint64 {
	return b.maxObjectSize
}

// HashKind returns the bundle's object hash function.
func (b *Bundle) HashKind() object.HashKind {
	return b.hash
}

// Len returns the number of objects in the bundle.
func (b *Bundle) Len() int {
	return b.index.Len()
}

// Close releases the data file handle.
func (b *Bundle) Close() error {
	return b.data.Close()
}

// entryEnd returns the offset just past the entry starting at offset.
func (b *Bundle) entryEnd(offset int64) int64 {
	i, found := slices.BinarySearch(b.offsets, offset)
	if found {
		i++
	}
	if i < len(b.offsets) {
		return b.offsets[i]
	}
	return b.data.end()
}

// Get decodes the object with the given id.
func (b *Bundle) Get(id object.ID) (object.Kind, []byte, error) {
	entry, ok := b.index.Lookup(id)
	if !ok {
		return 0, nil, fmt.Errorf("pack: object %s not in %s", id, b.IndexPath())
	}
	kind, data, _, err := b.decode(entry.Offset, NoopCache{})
	return kind, data, err
}

// decodeStats describes how an entry was resolved.
type decodeStats struct {
	packed   PackedKind
	chainLen int
	cacheHit bool
}

// decode resolves the entry at offset, following delta chains to their base.
func (b *Bundle) decode(offset int64, cache Cache) (object.Kind, []byte, decodeStats, error) {
	var stats decodeStats
	if kind, data, ok := cache.Get(offset); ok {
		h, err := b.data.readHeader(offset)
		if err != nil {
			return 0, nil, stats, err
		}
		stats.packed = h.kind
		stats.cacheHit = true
		return kind, data, stats, nil
	}

	var chain []entryHeader
	var kind object.Kind
	var data []byte
	cur := offset
	for {
		if len(chain) > 0 {
			if k, d, ok := cache.Get(cur); ok {
				kind, data = k, d
				stats.cacheHit = true
				break
			}
		}
		h, err := b.data.readHeader(cur)
		if err != nil {
			return 0, nil, stats, err
		}
		if len(chain) == 0 {
			stats.packed = h.kind
		}
		if !h.kind.IsDelta() {
			data, err = b.data.inflate(h, b.entryEnd(cur), b.maxObjectSize)
			if err != nil {
				return 0, nil, stats, err
			}
			kind = object.Kind(h.kind)
			cache.Put(cur, kind, data)
			break
		}

		if len(chain) >= maxChainLength {
			return 0, nil, stats, decodeErr("delta chain at %d exceeds %d entries", offset, maxChainLength)
		}
		chain = append(chain, h)
		if h.kind == packedOfsDelta {
			cur = h.baseOffset
			continue
		}
		base, ok := b.index.Lookup(h.baseID)
		if !ok {
			return 0, nil, stats, decodeErr("ref-delta base %s of entry at %d is not in the pack", h.baseID, h.offset)
		}
		cur = base.Offset
	}

	stats.chainLen = len(chain)
	for i := len(chain) - 1; i >= 0; i-- {
		h := chain[i]
		delta, err := b.data.inflate(h, b.entryEnd(h.offset), b.maxObjectSize)
		if err != nil {
			return 0, nil, stats, err
		}
		data, err = applyDelta(data, delta, b.maxObjectSize)
		if err != nil {
			return 0, nil, stats, fmt.Errorf("entry at %d: %w", h.offset, err)
		}
		cache.Put(h.offset, kind, data)
	}
	return kind, data, stats, nil
}
