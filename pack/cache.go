package pack

import (
	"container/list"

	"github.com/meigma/gitodb/object"
)

const (
	defaultCacheEntries = 64
	defaultCacheBytes   = 96 << 20
)

// Cache keeps recently decoded objects so delta chains sharing a base do not
// inflate it again. Implementations are owned by a single worker and need not
// be safe for concurrent use. Cached slices must not be modified.
type Cache interface {
	// Get returns the object decoded at offset.
	Get(offset int64) (object.Kind, []byte, bool)

	// Put remembers the object decoded at offset.
	Put(offset int64, kind object.Kind, data []byte)
}

// CacheFactory creates the cache for one traversal worker.
// It is called exactly once per worker.
type CacheFactory func() Cache

// NoopCache caches nothing.
type NoopCache struct{}

// Get implements Cache.
func (NoopCache) Get(int64) (object.Kind, []byte, bool) { return 0, nil, false }

// Put implements Cache.
func (NoopCache) Put(int64, object.Kind, []byte) {}

// DecodeEntryLRU is a least-recently-used cache bounded by entry count and
// total bytes.
type DecodeEntryLRU struct {
	maxEntries int
	maxBytes   int64
	bytes      int64
	entries    map[int64]*list.Element
	order      *list.List // front = most recently used
}

type decodedEntry struct {
	offset int64
	kind   object.Kind
	data   []byte
}

// LRUOption configures a DecodeEntryLRU.
type LRUOption func(*DecodeEntryLRU)

// WithMaxEntries bounds the number of cached objects (default 64).
func WithMaxEntries(n int) LRUOption {
	return func(c *DecodeEntryLRU) {
		c.maxEntries = n
	}
}

// WithMaxBytes bounds the total size of cached objects (default 96 MiB).
// Objects larger than the bound are never cached.
func WithMaxBytes(n int64) LRUOption {
	return func(c *DecodeEntryLRU) {
		c.maxBytes = n
	}
}

// NewDecodeEntryLRU creates an empty LRU cache.
func NewDecodeEntryLRU(opts ...LRUOption) *DecodeEntryLRU {
	c := &DecodeEntryLRU{
		maxEntries: defaultCacheEntries,
		maxBytes:   defaultCacheBytes,
		entries:    make(map[int64]*list.Element),
		order:      list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxEntries <= 0 {
		c.maxEntries = defaultCacheEntries
	}
	if c.maxBytes <= 0 {
		c.maxBytes = defaultCacheBytes
	}
	return c
}

// DefaultCacheFactory returns a factory producing LRU caches with default bounds.
func DefaultCacheFactory() CacheFactory {
	return func() Cache { return NewDecodeEntryLRU() }
}

// Len returns the number of cached objects.
func (c *DecodeEntryLRU) Len() int {
	return c.order.Len()
}

// Bytes returns the total size of cached objects.
func (c *DecodeEntryLRU) Bytes() int64 {
	return c.bytes
}

// Get implements Cache.
func (c *DecodeEntryLRU) Get(offset int64) (object.Kind, []byte, bool) {
	elem, ok := c.entries[offset]
	if !ok {
		return 0, nil, false
	}
	c.order.MoveToFront(elem)
	entry := elem.Value.(*decodedEntry) //nolint:errcheck // type is guaranteed by Put
	return entry.kind, entry.data, true
}

// Put implements Cache.
func (c *DecodeEntryLRU) Put(offset int64, kind object.Kind, data []byte) {
	size := int64(len(data))
	if size > c.maxBytes {
		return
	}
	if elem, ok := c.entries[offset]; ok {
		entry := elem.Value.(*decodedEntry) //nolint:errcheck // type is guaranteed
		c.bytes += size - int64(len(entry.data))
		entry.kind = kind
		entry.data = data
		c.order.MoveToFront(elem)
	} else {
		c.entries[offset] = c.order.PushFront(&decodedEntry{offset: offset, kind: kind, data: data})
		c.bytes += size
	}

	for c.order.Len() > c.maxEntries || c.bytes > c.maxBytes {
		c.evictOldest()
	}
}

func (c *DecodeEntryLRU) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*decodedEntry) //nolint:errcheck // type is guaranteed
	c.order.Remove(elem)
	delete(c.entries, entry.offset)
	c.bytes -= int64(len(entry.data))
}
