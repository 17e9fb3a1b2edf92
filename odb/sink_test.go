package odb

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/gitodb/object"
)

var _ Writer = (*Sink)(nil)

func TestSink_WriteBuf(t *testing.T) {
	t.Parallel()

	for _, compress := range []bool{false, true} {
		s := NewSink(WithCompression(compress))
		id, err := s.WriteBuf(object.KindBlob, []byte("hello\n"), object.SHA1)
		require.NoError(t, err)
		assert.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", id.String())
	}
}

func TestSink_WriteStreamMatchesWriteBuf(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("0123456789"), 4096)
	s := NewSink(WithCompression(true))

	want, err := s.WriteBuf(object.KindBlob, data, object.SHA1)
	require.NoError(t, err)
	got, err := s.WriteStream(object.KindBlob, int64(len(data)), bytes.NewReader(data), object.SHA1)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSink_WriteStreamShort(t *testing.T) {
	t.Parallel()

	s := NewSink()
	_, err := s.WriteStream(object.KindBlob, 10, strings.NewReader("short"), object.SHA1)
	require.ErrorIs(t, err, ErrSizeMismatch)
}

func TestSink_TreeIsCanonicalized(t *testing.T) {
	t.Parallel()

	blob := object.Compute(object.KindBlob, []byte("x"), object.SHA1)
	legacy := object.EncodeTree([]object.TreeEntry{{Mode: "100640", Name: "x", ID: blob}})
	canonical := object.EncodeTree([]object.TreeEntry{{Mode: object.TreeModeFile, Name: "x", ID: blob}})

	s := NewSink()
	id, err := s.WriteBuf(object.KindTree, legacy, object.SHA1)
	require.NoError(t, err)
	assert.Equal(t, object.Compute(object.KindTree, canonical, object.SHA1), id)
	assert.NotEqual(t, object.Compute(object.KindTree, legacy, object.SHA1), id)

	streamed, err := s.WriteStream(object.KindTree, int64(len(legacy)), bytes.NewReader(legacy), object.SHA1)
	require.NoError(t, err)
	assert.Equal(t, id, streamed)
}

func TestSink_Concurrent(t *testing.T) {
	t.Parallel()

	s := NewSink(WithCompression(true))
	want := object.Compute(object.KindBlob, []byte("shared"), object.SHA1)

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			id, err := s.WriteBuf(object.KindBlob, []byte("shared"), object.SHA1)
			assert.NoError(t, err)
			assert.Equal(t, want, id)
		})
	}
	wg.Wait()
}
