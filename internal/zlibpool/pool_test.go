package zlibpool

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deflate(t *testing.T, pool *WriterPool, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, release, err := pool.Get(&buf)
	require.NoError(t, err)
	_, err = zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	release()
	return buf.Bytes()
}

func TestReaderPool_ReusesReaders(t *testing.T) {
	t.Parallel()

	wp := NewWriterPool(zlib.DefaultCompression)
	rp := NewReaderPool()

	for _, payload := range []string{"first payload", "second, longer payload than the first", ""} {
		compressed := deflate(t, wp, []byte(payload))

		zr, release, err := rp.Get(bytes.NewReader(compressed))
		require.NoError(t, err)
		got, err := io.ReadAll(zr)
		release()
		require.NoError(t, err)
		assert.Equal(t, payload, string(got))
	}
}

func TestReaderPool_CorruptHeader(t *testing.T) {
	t.Parallel()

	rp := NewReaderPool()
	_, _, err := rp.Get(bytes.NewReader([]byte{0xff, 0xff, 0x00}))
	require.Error(t, err)
}

func TestReaderPool_Nil(t *testing.T) {
	t.Parallel()

	compressed := deflate(t, NewWriterPool(zlib.BestSpeed), []byte("nil pool"))
	var rp *ReaderPool
	zr, release, err := rp.Get(bytes.NewReader(compressed))
	require.NoError(t, err)
	defer release()
	got, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "nil pool", string(got))
}

func TestWriterPool_InvalidLevel(t *testing.T) {
	t.Parallel()

	_, _, err := NewWriterPool(42).Get(io.Discard)
	require.Error(t, err)
}
