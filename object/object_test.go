package object

import (
	"bytes"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_KnownIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		kind Kind
		data []byte
		want string
	}{
		{name: "empty blob", kind: KindBlob, data: nil, want: "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391"},
		{name: "hello blob", kind: KindBlob, data: []byte("hello\n"), want: "ce013625030ba8dba906f756967f9e9ca394464a"},
		{name: "empty tree", kind: KindTree, data: nil, want: "4b825dc642cb6eb9a060e54bf8d69288fbee4904"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			id := Compute(tt.kind, tt.data, SHA1)
			assert.Equal(t, tt.want, id.String())
			assert.Equal(t, SHA1, id.HashKind())
		})
	}
}

func TestCompute_SHA256(t *testing.T) {
	t.Parallel()

	id := Compute(KindBlob, []byte("hello\n"), SHA256)
	assert.Len(t, id.Bytes(), 32)
	assert.Equal(t, SHA256, id.HashKind())
	assert.NotEqual(t, Compute(KindBlob, []byte("hello\n"), SHA1), id)
}

func TestHasher_MatchesCompute(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("abc"), 1000)
	h := NewHasher(KindBlob, int64(len(data)), SHA1)
	for chunk := range slices.Chunk(data, 7) {
		_, err := h.Write(chunk)
		require.NoError(t, err)
	}
	assert.Equal(t, Compute(KindBlob, data, SHA1), h.Sum())
}

func TestHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	hdr := Header(KindCommit, 1234)
	assert.Equal(t, "commit 1234\x00", string(hdr))

	kind, size, n, err := ParseHeader(append(hdr, "payload"...))
	require.NoError(t, err)
	assert.Equal(t, KindCommit, kind)
	assert.Equal(t, int64(1234), size)
	assert.Equal(t, len(hdr), n)
}

func TestParseHeader_Malformed(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"blob 12", "blob12\x00", "nope 1\x00", "blob -1\x00", "blob x\x00"} {
		_, _, _, err := ParseHeader([]byte(in))
		assert.ErrorIs(t, err, ErrMalformedHeader, "input %q", in)
	}
}

func TestParseID(t *testing.T) {
	t.Parallel()

	id, err := ParseID("ce013625030ba8dba906f756967f9e9ca394464a")
	require.NoError(t, err)
	assert.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", id.String())
	assert.False(t, id.IsZero())

	_, err = ParseID("abc")
	require.ErrorIs(t, err, ErrInvalidID)
	_, err = ParseID("zz013625030ba8dba906f756967f9e9ca394464a")
	require.ErrorIs(t, err, ErrInvalidID)

	assert.True(t, ID{}.IsZero())
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for _, k := range []Kind{KindCommit, KindTree, KindBlob, KindTag} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
		assert.True(t, k.Valid())
	}
	_, err := ParseKind("ofs-delta")
	require.ErrorIs(t, err, ErrUnknownKind)
	assert.False(t, Kind(6).Valid())
}

func TestParseHashKind(t *testing.T) {
	t.Parallel()

	hk, err := ParseHashKind("sha256")
	require.NoError(t, err)
	assert.Equal(t, SHA256, hk)

	hk, err = ParseHashKind("")
	require.NoError(t, err)
	assert.Equal(t, SHA1, hk)

	_, err = ParseHashKind("md5")
	require.ErrorIs(t, err, ErrUnknownHash)
}

func TestEncode_NonTreeUnchanged(t *testing.T) {
	t.Parallel()

	data := []byte("tree 4b825dc642cb6eb9a060e54bf8d69288fbee4904\n\nmsg\n")
	out, err := Encode(KindCommit, data, SHA1)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}
