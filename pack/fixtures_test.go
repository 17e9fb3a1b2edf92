package pack

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meigma/gitodb/internal/testutil"
	"github.com/meigma/gitodb/object"
)

// sampleBuilder queues whole objects of every kind plus ofs and ref delta chains.
func sampleBuilder(hash object.HashKind) *testutil.PackBuilder {
	b := testutil.NewPackBuilder(hash)
	readme := []byte(strings3("# project\n", "some documentation\n", 40))
	blob := b.Add(object.KindBlob, readme)
	edited := b.AddOfsDelta(blob, append(bytes.Clone(readme), "one more line\n"...))
	b.AddRefDelta(edited, append(bytes.Clone(readme), "one more line\nand another\n"...))

	tree := object.EncodeTree([]object.TreeEntry{
		{Mode: object.TreeModeFile, Name: "README.md", ID: object.Compute(object.KindBlob, readme, hash)},
	})
	treeIdx := b.Add(object.KindTree, tree)
	b.Add(object.KindCommit, fmt.Appendf(nil, "tree %s\nauthor a <a@b> 0 +0000\ncommitter a <a@b> 0 +0000\n\ninitial\n",
		object.Compute(object.KindTree, tree, hash)))
	b.Add(object.KindTag, []byte("object 0000\ntype commit\ntag v1\n\nrelease\n"))
	b.AddOfsDelta(treeIdx, object.EncodeTree([]object.TreeEntry{
		{Mode: object.TreeModeFile, Name: "README.md", ID: object.Compute(object.KindBlob, readme, hash)},
		{Mode: object.TreeModeFile, Name: "z.txt", ID: object.Compute(object.KindBlob, nil, hash)},
	}))
	return b
}

func strings3(head, line string, n int) string {
	var buf bytes.Buffer
	buf.WriteString(head)
	for range n {
		buf.WriteString(line)
	}
	return buf.String()
}

// writeBundle writes a built pack to a temp dir and opens it.
func writeBundle(t *testing.T, built *testutil.BuiltPack, opts ...BundleOption) *Bundle {
	t.Helper()
	indexPath, _ := built.WriteFiles(t, t.TempDir(), "pack-test")
	b, err := OpenBundle(indexPath, append([]BundleOption{WithHashKind(built.Hash)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}
