package odb

import (
	"io"

	"github.com/meigma/gitodb/object"
)

// Writer stores objects and reports their content ids.
//
// Implementations must be safe for concurrent use. Writing an object that is
// already stored is a successful no-op returning the same id.
type Writer interface {
	// WriteBuf writes an object held in memory.
	WriteBuf(kind object.Kind, data []byte, hash object.HashKind) (object.ID, error)

	// WriteStream writes an object of exactly size bytes read from r.
	WriteStream(kind object.Kind, size int64, r io.Reader, hash object.HashKind) (object.ID, error)
}
