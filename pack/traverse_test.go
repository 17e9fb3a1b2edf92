package pack

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/gitodb/internal/testutil"
	"github.com/meigma/gitodb/object"
)

// collector records visited objects.
type collector struct {
	mu      sync.Mutex
	objects map[object.ID][]byte
	stats   map[object.ID]EntryStats
}

func newCollector() *collector {
	return &collector{objects: make(map[object.ID][]byte), stats: make(map[object.ID]EntryStats)}
}

func (c *collector) visit(kind object.Kind, data []byte, entry IndexEntry, stats EntryStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[object.Compute(kind, data, entry.ID.HashKind())] = append([]byte(nil), data...)
	c.stats[entry.ID] = stats
	return nil
}

func TestTraverse_VisitsEveryObject(t *testing.T) {
	t.Parallel()

	for _, hash := range []object.HashKind{object.SHA1, object.SHA256} {
		for _, threads := range []int{0, 1, 3} {
			built := sampleBuilder(hash).Build(t)
			bundle := writeBundle(t, built)

			c := newCollector()
			outcome, err := bundle.Traverse(Context{ThreadLimit: threads}, DefaultCacheFactory(), c.visit)
			require.NoError(t, err)

			assert.Equal(t, len(built.Entries), outcome.Entries)
			assert.Equal(t, int64(len(built.Entries)), outcome.Decoded)
			assert.Empty(t, outcome.Failures)
			for _, entry := range built.Entries {
				assert.Contains(t, c.objects, entry.ID, "%s threads=%d", hash, threads)
			}
			assert.Equal(t, int64(2), outcome.PerKind[object.KindTree])
			assert.Equal(t, int64(3), outcome.PerKind[object.KindBlob])
			assert.Equal(t, int64(1), outcome.PerKind[object.KindCommit])
			assert.Equal(t, int64(1), outcome.PerKind[object.KindTag])
		}
	}
}

func TestTraverse_EntryStats(t *testing.T) {
	t.Parallel()

	built := sampleBuilder(object.SHA1).Build(t)
	bundle := writeBundle(t, built)

	c := newCollector()
	_, err := bundle.Traverse(Context{ThreadLimit: 1}, func() Cache { return NoopCache{} }, c.visit)
	require.NoError(t, err)

	base := c.stats[built.Entries[0].ID]
	assert.Equal(t, PackedKind(object.KindBlob), base.PackedKind)
	assert.Equal(t, 0, base.ChainLength)
	assert.Equal(t, built.Entries[0].Offset, base.Offset)
	assert.Equal(t, built.Entries[0].End-built.Entries[0].Offset, base.CompressedSize)

	ofs := c.stats[built.Entries[1].ID]
	assert.Equal(t, "ofs-delta", ofs.PackedKind.String())
	assert.Equal(t, object.KindBlob, ofs.Kind)
	assert.Equal(t, 1, ofs.ChainLength)

	ref := c.stats[built.Entries[2].ID]
	assert.Equal(t, "ref-delta", ref.PackedKind.String())
	assert.Equal(t, 2, ref.ChainLength)
	assert.Equal(t, int64(len(c.objects[built.Entries[2].ID])), ref.Size)
}

func TestTraverse_CacheFactoryOncePerWorker(t *testing.T) {
	t.Parallel()

	b := testutil.NewPackBuilder(object.SHA1)
	for i := range 64 {
		b.Add(object.KindBlob, []byte{byte(i), 'x'})
	}
	bundle := writeBundle(t, b.Build(t))

	var calls atomic.Int64
	factory := func() Cache {
		calls.Add(1)
		return NewDecodeEntryLRU()
	}
	outcome, err := bundle.Traverse(Context{ThreadLimit: 4}, factory, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, outcome.Workers)
	assert.Equal(t, int64(4), calls.Load())
	assert.Equal(t, int64(64), outcome.Decoded)
}

func TestTraverse_CacheServesDeltaBases(t *testing.T) {
	t.Parallel()

	built := sampleBuilder(object.SHA1).Build(t)
	bundle := writeBundle(t, built)

	outcome, err := bundle.Traverse(Context{ThreadLimit: 1}, DefaultCacheFactory(), nil)
	require.NoError(t, err)
	assert.Positive(t, outcome.CacheHits)
	assert.Equal(t, int64(len(built.Entries)), outcome.CacheHits+outcome.CacheMisses)
}

func TestTraverse_UnsupportedAlgorithm(t *testing.T) {
	t.Parallel()

	bundle := writeBundle(t, sampleBuilder(object.SHA1).Build(t))
	_, err := bundle.Traverse(Context{Algorithm: DeltaTreeLookup}, nil, nil)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	_, err = bundle.Traverse(Context{Check: SafetyCheck(9)}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidSafetyCheck)
}

// corruptBuilder returns a pack of n blobs whose first entry does not inflate.
func corruptBuilder(t *testing.T, n int) *testutil.BuiltPack {
	t.Helper()
	b := testutil.NewPackBuilder(object.SHA1)
	for i := range n {
		b.Add(object.KindBlob, []byte{'b', 'l', 'o', 'b', byte('0' + i)})
	}
	built := b.Build(t)
	built.CorruptEntry(0)
	return built
}

func TestTraverse_SafetyChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		check       SafetyCheck
		wantErr     error
		wantDecoded int64
		wantFailed  int
	}{
		{check: SafetyCheckAll, wantErr: ErrChecksumMismatch},
		{check: SkipFileChecksumVerification, wantErr: ErrCRCMismatch},
		{check: SkipFileAndObjectChecksumVerification, wantErr: ErrDecode},
		{check: SkipFileAndObjectChecksumVerificationAndNoAbortOnDecodeError, wantDecoded: 2, wantFailed: 1},
	}
	for _, tt := range tests {
		t.Run(tt.check.String(), func(t *testing.T) {
			t.Parallel()
			built := corruptBuilder(t, 3)
			bundle := writeBundle(t, built)

			var visited atomic.Int64
			outcome, err := bundle.Traverse(Context{ThreadLimit: 1, Check: tt.check}, DefaultCacheFactory(),
				func(object.Kind, []byte, IndexEntry, EntryStats) error {
					visited.Add(1)
					return nil
				})

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, visited.Load())
				if !errors.Is(err, ErrChecksumMismatch) {
					var entryErr *EntryError
					require.ErrorAs(t, err, &entryErr)
					assert.Equal(t, built.Entries[0].ID, entryErr.ID)
					assert.Equal(t, built.Entries[0].Offset, entryErr.Offset)
					assert.ErrorIs(t, err, ErrDecode)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDecoded, outcome.Decoded)
			assert.Equal(t, tt.wantDecoded, visited.Load())
			require.Len(t, outcome.Failures, tt.wantFailed)
			assert.Equal(t, built.Entries[0].ID, outcome.Failures[0].ID)
		})
	}
}

func TestTraverse_VisitorErrorAborts(t *testing.T) {
	t.Parallel()

	built := sampleBuilder(object.SHA1).Build(t)
	bundle := writeBundle(t, built)
	boom := errors.New("boom")

	_, err := bundle.Traverse(Context{ThreadLimit: 2}, DefaultCacheFactory(),
		func(kind object.Kind, _ []byte, _ IndexEntry, _ EntryStats) error {
			if kind == object.KindTag {
				return boom
			}
			return nil
		})
	require.ErrorIs(t, err, boom)
	var entryErr *EntryError
	require.ErrorAs(t, err, &entryErr)
	assert.Equal(t, object.KindTag, entryErr.Kind)
}

func TestTraverse_EmptyPack(t *testing.T) {
	t.Parallel()

	bundle := writeBundle(t, testutil.NewPackBuilder(object.SHA1).Build(t))
	outcome, err := bundle.Traverse(Context{}, DefaultCacheFactory(), nil)
	require.NoError(t, err)
	assert.Zero(t, outcome.Entries)
	assert.Zero(t, outcome.Workers)
}

func TestTraverse_HostileSizes(t *testing.T) {
	t.Parallel()

	build := func(t *testing.T) *testutil.BuiltPack {
		b := testutil.NewPackBuilder(object.SHA1)
		base := b.Add(object.KindBlob, []byte("base content"))
		b.AddRawOfsDelta(base, append(testutil.DeltaSizes(12, 1<<50), 3, 'a', 'b', 'c'))
		b.AddWithDeclaredSize(object.KindBlob, []byte("claims too much"), 1<<50)
		b.Add(object.KindBlob, []byte("survivor"))
		return b.Build(t)
	}

	for _, maxSize := range []uint64{0, DefaultMaxObjectSize} {
		built := build(t)
		bundle := writeBundle(t, built, WithMaxObjectSize(maxSize))

		outcome, err := bundle.Traverse(Context{
			ThreadLimit: 1,
			Check:       SkipFileAndObjectChecksumVerificationAndNoAbortOnDecodeError,
		}, DefaultCacheFactory(), nil)
		require.NoError(t, err, "max size %d", maxSize)
		assert.Equal(t, int64(2), outcome.Decoded)
		require.Len(t, outcome.Failures, 2)
		assert.Equal(t, built.Entries[1].ID, outcome.Failures[0].ID)
		assert.Equal(t, built.Entries[2].ID, outcome.Failures[1].ID)
		for _, failure := range outcome.Failures {
			assert.ErrorIs(t, failure, ErrDecode)
		}

		_, err = bundle.Traverse(Context{Check: SkipFileAndObjectChecksumVerification}, DefaultCacheFactory(), nil)
		require.ErrorIs(t, err, ErrDecode)
	}
}
