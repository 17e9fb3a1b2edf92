package pack

import (
	"context"
	"fmt"
	"hash/crc32"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/gitodb/object"
)

// chunksPerWorker controls how finely entries are split between workers.
const chunksPerWorker = 4

// Algorithm selects how a traversal resolves objects.
type Algorithm uint8

const (
	// Lookup decodes every entry independently in offset order, resolving
	// delta bases through the index and the worker's cache.
	Lookup Algorithm = iota

	// DeltaTreeLookup would build the delta tree up front. It is not implemented.
	DeltaTreeLookup
)

// String returns the algorithm name.
func (a Algorithm) String() string {
	switch a {
	case Lookup:
		return "lookup"
	case DeltaTreeLookup:
		return "delta-tree-lookup"
	default:
		return "unknown"
	}
}

// Context configures a traversal.
type Context struct {
	// Algorithm selects the resolution strategy.
	Algorithm Algorithm

	// ThreadLimit caps the number of workers. Zero uses GOMAXPROCS.
	ThreadLimit int

	// Check selects which checksums are verified and whether decode
	// failures abort the traversal.
	Check SafetyCheck
}

// EntryStats describes one decoded entry.
type EntryStats struct {
	// Offset is the entry position in the data file.
	Offset int64

	// Kind is the decoded object kind.
	Kind object.Kind

	// PackedKind is the type recorded in the entry header.
	PackedKind PackedKind

	// Size is the decoded object size.
	Size int64

	// CompressedSize is the number of bytes the entry occupies in the pack.
	CompressedSize int64

	// ChainLength is the number of deltas applied to reach the object.
	ChainLength int
}

// Visitor receives each decoded object. It is called concurrently from
// workers and must not retain or modify data after returning.
type Visitor func(kind object.Kind, data []byte, entry IndexEntry, stats EntryStats) error

// Outcome summarizes a traversal.
type Outcome struct {
	// Entries is the number of objects listed in the index.
	Entries int

	// Decoded is the number of entries decoded and accepted by the visitor.
	Decoded int64

	// Failures holds per-entry failures recorded instead of aborting.
	Failures []*EntryError

	// PerKind counts decoded objects by kind.
	PerKind map[object.Kind]int64

	// DecodedBytes is the total size of decoded objects.
	DecodedBytes int64

	// CacheHits counts entries resolved with help from the cache.
	CacheHits int64

	// CacheMisses counts entries resolved without the cache.
	CacheMisses int64

	// Workers is the number of workers that ran.
	Workers int

	// Duration is the wall time of the traversal.
	Duration time.Duration
}

// traversal holds the shared state of one Traverse call.
type traversal struct {
	bundle *Bundle
	ctx    Context
	visit  Visitor

	decoded  atomic.Int64
	bytes    atomic.Int64
	hits     atomic.Int64
	misses   atomic.Int64
	perKind  [packedTag + 1]atomic.Int64
	mu       sync.Mutex
	failures []*EntryError
}

// Traverse decodes every object in the bundle and passes it to visit.
//
// With file verification enabled, the index and pack trailers are checked
// before any object is decoded. Entries are sorted by offset, split into
// chunks and processed by up to ThreadLimit workers; newCache is invoked once
// per worker. The first per-entry failure cancels the traversal and is
// returned as an *EntryError unless the safety check says not to abort, in
// which case failures are collected in Outcome.Failures.
func (b *Bundle) Traverse(tctx Context, newCache CacheFactory, visit Visitor) (Outcome, error) {
	start := time.Now()
	outcome := Outcome{Entries: b.index.Len()}
	if !tctx.Check.Valid() {
		return outcome, fmt.Errorf("%w: %d", ErrInvalidSafetyCheck, tctx.Check)
	}
	if tctx.Algorithm != Lookup {
		return outcome, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, tctx.Algorithm)
	}
	if newCache == nil {
		newCache = func() Cache { return NoopCache{} }
	}

	if tctx.Check.VerifyFileChecksum() {
		if err := b.index.VerifyChecksum(); err != nil {
			return outcome, err
		}
		if err := b.data.VerifyChecksum(); err != nil {
			return outcome, err
		}
	}

	entries := b.index.Entries()
	slices.SortFunc(entries, func(x, y IndexEntry) int {
		switch {
		case x.Offset < y.Offset:
			return -1
		case x.Offset > y.Offset:
			return 1
		}
		return 0
	})
	chunks := chunkEntries(entries, workerCount(tctx.ThreadLimit))
	workers := min(workerCount(tctx.ThreadLimit), len(chunks))
	outcome.Workers = workers

	t := &traversal{bundle: b, ctx: tctx, visit: visit}
	b.log().Debug("traversing pack",
		"pack", b.DataPath(),
		"entries", len(entries),
		"chunks", len(chunks),
		"workers", workers,
		"check", tctx.Check.String())

	chunkCh := make(chan []IndexEntry)
	eg, ctx := errgroup.WithContext(context.Background())
	eg.Go(func() error {
		defer close(chunkCh)
		for _, chunk := range chunks {
			select {
			case chunkCh <- chunk:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})
	for range workers {
		eg.Go(func() error {
			cache := newCache()
			for chunk := range chunkCh {
				for _, entry := range chunk {
					if err := ctx.Err(); err != nil {
						return err
					}
					if err := t.process(entry, cache); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	err := eg.Wait()

	outcome.Decoded = t.decoded.Load()
	outcome.DecodedBytes = t.bytes.Load()
	outcome.CacheHits = t.hits.Load()
	outcome.CacheMisses = t.misses.Load()
	outcome.PerKind = make(map[object.Kind]int64)
	for k := range t.perKind {
		if n := t.perKind[k].Load(); n > 0 {
			outcome.PerKind[object.Kind(k)] = n
		}
	}
	slices.SortFunc(t.failures, func(x, y *EntryError) int {
		switch {
		case x.Offset < y.Offset:
			return -1
		case x.Offset > y.Offset:
			return 1
		}
		return 0
	})
	outcome.Failures = t.failures
	outcome.Duration = time.Since(start)

	if err != nil {
		return outcome, err
	}
	b.log().Debug("traversal complete",
		"decoded", outcome.Decoded,
		"failures", len(outcome.Failures),
		"duration", outcome.Duration)
	return outcome, nil
}

// process handles one entry. A non-nil return aborts the traversal.
func (t *traversal) process(entry IndexEntry, cache Cache) error {
	kind, err := t.decodeAndVisit(entry, cache)
	if err == nil {
		return nil
	}
	entryErr := &EntryError{Offset: entry.Offset, ID: entry.ID, Kind: kind, Err: err}
	if t.ctx.Check.AbortOnDecodeError() {
		return entryErr
	}
	t.bundle.log().Debug("recorded entry failure", "offset", entry.Offset, "id", entry.ID.String(), "error", err)
	t.mu.Lock()
	t.failures = append(t.failures, entryErr)
	t.mu.Unlock()
	return nil
}

func (t *traversal) decodeAndVisit(entry IndexEntry, cache Cache) (object.Kind, error) {
	b := t.bundle
	end := b.entryEnd(entry.Offset)
	verify := t.ctx.Check.VerifyObjectChecksum()

	if verify {
		raw, err := b.data.readRaw(entry.Offset, end)
		if err != nil {
			return 0, err
		}
		if got := crc32.ChecksumIEEE(raw); got != entry.CRC32 {
			return 0, fmt.Errorf("%w: %w: index %08x, computed %08x", ErrDecode, ErrCRCMismatch, entry.CRC32, got)
		}
	}

	kind, data, ds, err := b.decode(entry.Offset, cache)
	if err != nil {
		return 0, err
	}
	if ds.cacheHit {
		t.hits.Add(1)
	} else {
		t.misses.Add(1)
	}

	if verify {
		if got := object.Compute(kind, data, b.hash); got != entry.ID {
			return kind, fmt.Errorf("%w: %w: computed %s", ErrDecode, ErrObjectMismatch, got)
		}
	}

	stats := EntryStats{
		Offset:         entry.Offset,
		Kind:           kind,
		PackedKind:     ds.packed,
		Size:           int64(len(data)),
		CompressedSize: end - entry.Offset,
		ChainLength:    ds.chainLen,
	}
	if t.visit != nil {
		if err := t.visit(kind, data, entry, stats); err != nil {
			return kind, err
		}
	}

	t.decoded.Add(1)
	t.bytes.Add(stats.Size)
	if kind.Valid() {
		t.perKind[kind].Add(1)
	}
	return kind, nil
}

// workerCount resolves a thread limit to a worker count.
func workerCount(limit int) int {
	if limit > 0 {
		return limit
	}
	return max(1, runtime.GOMAXPROCS(0))
}

// chunkEntries splits entries into contiguous chunks for workers.
func chunkEntries(entries []IndexEntry, workers int) [][]IndexEntry {
	if len(entries) == 0 {
		return nil
	}
	size := max(1, (len(entries)+workers*chunksPerWorker-1)/(workers*chunksPerWorker))
	return slices.Collect(slices.Chunk(entries, size))
}
