package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTree_RoundTrip(t *testing.T) {
	t.Parallel()

	blob := Compute(KindBlob, []byte("a"), SHA1)
	sub := Compute(KindTree, nil, SHA1)
	entries := []TreeEntry{
		{Mode: TreeModeFile, Name: "a.txt", ID: blob},
		{Mode: TreeModeDir, Name: "dir", ID: sub},
		{Mode: TreeModeExecutable, Name: "run.sh", ID: blob},
	}

	data := EncodeTree(entries)
	got, err := ParseTree(data, SHA1)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestParseTree_Malformed(t *testing.T) {
	t.Parallel()

	blob := Compute(KindBlob, []byte("a"), SHA1)
	valid := EncodeTree([]TreeEntry{{Mode: TreeModeFile, Name: "a", ID: blob}})

	tests := []struct {
		name string
		data []byte
	}{
		{name: "no mode separator", data: []byte("100644")},
		{name: "no name terminator", data: []byte("100644 name")},
		{name: "truncated id", data: valid[:len(valid)-1]},
		{name: "empty name", data: append([]byte("100644 \x00"), blob.Bytes()...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseTree(tt.data, SHA1)
			assert.ErrorIs(t, err, ErrMalformedTree)
		})
	}
}

func TestCanonicalizeTree(t *testing.T) {
	t.Parallel()

	blob := Compute(KindBlob, []byte("content"), SHA1)

	tests := []struct {
		name        string
		mode        string
		wantMode    string
		wantChanged bool
	}{
		{name: "group writable", mode: "100664", wantMode: TreeModeFile, wantChanged: true},
		{name: "group readonly", mode: "100640", wantMode: TreeModeFile, wantChanged: true},
		{name: "canonical", mode: TreeModeFile, wantMode: TreeModeFile},
		{name: "executable", mode: TreeModeExecutable, wantMode: TreeModeExecutable},
		{name: "symlink", mode: TreeModeSymlink, wantMode: TreeModeSymlink},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := EncodeTree([]TreeEntry{
				{Mode: TreeModeDir, Name: "d", ID: Compute(KindTree, nil, SHA1)},
				{Mode: tt.mode, Name: "f", ID: blob},
			})

			out, changed, err := CanonicalizeTree(in, SHA1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, changed)

			entries, err := ParseTree(out, SHA1)
			require.NoError(t, err)
			require.Len(t, entries, 2)
			assert.Equal(t, TreeModeDir, entries[0].Mode)
			assert.Equal(t, tt.wantMode, entries[1].Mode)
			assert.Equal(t, blob, entries[1].ID)

			if !tt.wantChanged {
				assert.Equal(t, in, out)
			} else {
				assert.NotEqual(t, Compute(KindTree, in, SHA1), Compute(KindTree, out, SHA1))
			}
		})
	}
}

func TestEncode_TreeUsesCanonicalModes(t *testing.T) {
	t.Parallel()

	blob := Compute(KindBlob, []byte("x"), SHA256)
	legacy := EncodeTree([]TreeEntry{{Mode: "100664", Name: "x", ID: blob}})
	canonical := EncodeTree([]TreeEntry{{Mode: TreeModeFile, Name: "x", ID: blob}})

	out, err := Encode(KindTree, legacy, SHA256)
	require.NoError(t, err)
	assert.Equal(t, canonical, out)

	_, err = Encode(KindTree, []byte("garbage"), SHA256)
	assert.ErrorIs(t, err, ErrMalformedTree)
}
