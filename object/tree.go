package object

import (
	"bytes"
	"fmt"
)

// Tree mode strings as they appear in tree objects.
const (
	TreeModeDir        = "40000"
	TreeModeFile       = "100644"
	TreeModeExecutable = "100755"
	TreeModeSymlink    = "120000"
	TreeModeSubmodule  = "160000"
)

// legacyFileModes are group-writable or group-readonly regular file modes
// written by old git versions. They are stored as 100644.
var legacyFileModes = map[string]struct{}{
	"100664": {},
	"100640": {},
}

// TreeEntry is one record of a tree object.
type TreeEntry struct {
	Mode string
	Name string
	ID   ID
}

// ParseTree decodes tree content whose entry ids use hash kind hk.
func ParseTree(data []byte, hk HashKind) ([]TreeEntry, error) {
	idLen := hk.Size()
	var entries []TreeEntry
	for len(data) > 0 {
		sp := bytes.IndexByte(data, ' ')
		if sp <= 0 {
			return nil, fmt.Errorf("%w: missing mode", ErrMalformedTree)
		}
		mode := string(data[:sp])
		data = data[sp+1:]

		nul := bytes.IndexByte(data, 0)
		if nul <= 0 {
			return nil, fmt.Errorf("%w: missing name", ErrMalformedTree)
		}
		name := string(data[:nul])
		data = data[nul+1:]

		if len(data) < idLen {
			return nil, fmt.Errorf("%w: truncated id for %q", ErrMalformedTree, name)
		}
		id, err := IDFromBytes(data[:idLen])
		if err != nil {
			return nil, err
		}
		data = data[idLen:]
		entries = append(entries, TreeEntry{Mode: mode, Name: name, ID: id})
	}
	return entries, nil
}

// EncodeTree serializes entries in the given order.
func EncodeTree(entries []TreeEntry) []byte {
	size := 0
	for _, e := range entries {
		size += len(e.Mode) + 1 + len(e.Name) + 1 + len(e.ID.Bytes())
	}
	buf := make([]byte, 0, size)
	for _, e := range entries {
		buf = append(buf, e.Mode...)
		buf = append(buf, ' ')
		buf = append(buf, e.Name...)
		buf = append(buf, 0)
		buf = append(buf, e.ID.Bytes()...)
	}
	return buf
}

// CanonicalizeTree rewrites legacy regular file modes (100664, 100640) to
// 100644. When nothing needs rewriting the input slice is returned and changed
// is false.
func CanonicalizeTree(data []byte, hk HashKind) (out []byte, changed bool, err error) {
	entries, err := ParseTree(data, hk)
	if err != nil {
		return nil, false, err
	}
	for i := range entries {
		if _, ok := legacyFileModes[entries[i].Mode]; ok {
			entries[i].Mode = TreeModeFile
			changed = true
		}
	}
	if !changed {
		return data, false, nil
	}
	return EncodeTree(entries), true, nil
}
