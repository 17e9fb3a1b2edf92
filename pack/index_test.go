package pack

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/gitodb/object"
)

func TestParseIndex(t *testing.T) {
	t.Parallel()

	for _, large := range []bool{false, true} {
		b := sampleBuilder(object.SHA1)
		if large {
			b.UseLargeOffsets()
		}
		built := b.Build(t)

		idx, err := ParseIndex(built.Index, object.SHA1)
		require.NoError(t, err)
		require.NoError(t, idx.VerifyChecksum())
		assert.Equal(t, len(built.Entries), idx.Len())
		assert.Equal(t, built.Pack[len(built.Pack)-20:], idx.PackChecksum())

		entries := idx.Entries()
		for i := 1; i < len(entries); i++ {
			assert.Negative(t, bytes.Compare(entries[i-1].ID.Bytes(), entries[i].ID.Bytes()))
		}
		for _, want := range built.Entries {
			got, ok := idx.Lookup(want.ID)
			require.True(t, ok, "lookup %s", want.ID)
			assert.Equal(t, want.Offset, got.Offset)
			assert.Equal(t, want.ID, got.ID)
		}
	}
}

func TestIndex_LookupMissing(t *testing.T) {
	t.Parallel()

	idx, err := ParseIndex(sampleBuilder(object.SHA1).Build(t).Index, object.SHA1)
	require.NoError(t, err)

	_, ok := idx.Lookup(object.Compute(object.KindBlob, []byte("not in pack"), object.SHA1))
	assert.False(t, ok)
	_, ok = idx.Lookup(object.Compute(object.KindBlob, []byte("wrong hash"), object.SHA256))
	assert.False(t, ok)
}

func TestParseIndex_Rejects(t *testing.T) {
	t.Parallel()

	valid := sampleBuilder(object.SHA1).Build(t).Index

	tests := []struct {
		name    string
		mutate  func([]byte) []byte
		wantErr error
	}{
		{
			name:    "too small",
			mutate:  func(b []byte) []byte { return b[:100] },
			wantErr: ErrInvalidIndex,
		},
		{
			name: "version 1",
			mutate: func(b []byte) []byte {
				copy(b, []byte{0, 0, 0, 0})
				return b
			},
			wantErr: ErrUnsupportedVersion,
		},
		{
			name: "version 3",
			mutate: func(b []byte) []byte {
				binary.BigEndian.PutUint32(b[4:], 3)
				return b
			},
			wantErr: ErrUnsupportedVersion,
		},
		{
			name: "fanout decreasing",
			mutate: func(b []byte) []byte {
				binary.BigEndian.PutUint32(b[8:], 1000)
				return b
			},
			wantErr: ErrInvalidIndex,
		},
		{
			name:    "truncated tables",
			mutate:  func(b []byte) []byte { return b[:len(b)-41] },
			wantErr: ErrInvalidIndex,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseIndex(tt.mutate(bytes.Clone(valid)), object.SHA1)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestIndex_VerifyChecksum(t *testing.T) {
	t.Parallel()

	data := bytes.Clone(sampleBuilder(object.SHA1).Build(t).Index)
	// Flip a bit in the CRC table; the layout stays valid.
	data[8+1024+7*20] ^= 0x01

	idx, err := ParseIndex(data, object.SHA1)
	require.NoError(t, err)
	assert.ErrorIs(t, idx.VerifyChecksum(), ErrChecksumMismatch)
}
