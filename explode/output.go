package explode

import (
	"errors"
	"io"

	"github.com/meigma/gitodb/object"
	"github.com/meigma/gitodb/odb"
	"github.com/meigma/gitodb/odb/loose"
)

var _ odb.Writer = OutputWriter{}

// OutputWriter is where exploded objects go: either a loose object store
// (persist) or a sink that only computes ids (discard). It is chosen once
// before a run and shared by all workers.
type OutputWriter struct {
	persist *loose.Store
	discard *odb.Sink
}

// Persist returns a writer storing objects in store.
func Persist(store *loose.Store) OutputWriter {
	return OutputWriter{persist: store}
}

// Discard returns a writer that computes ids without storing anything.
func Discard(sink *odb.Sink) OutputWriter {
	return OutputWriter{discard: sink}
}

// NewOutputWriter returns a persisting writer rooted at objectDir, or a
// discarding writer when objectDir is empty. The directory must exist.
func NewOutputWriter(objectDir string, opts ...loose.Option) (OutputWriter, error) {
	if objectDir == "" {
		return Discard(odb.NewSink(odb.WithCompression(true))), nil
	}
	store, err := loose.New(objectDir, opts...)
	if err != nil {
		return OutputWriter{}, err
	}
	return Persist(store), nil
}

// IsPersist reports whether objects are stored.
func (w OutputWriter) IsPersist() bool {
	return w.persist != nil
}

// Store returns the loose store of a persisting writer, or nil.
func (w OutputWriter) Store() *loose.Store {
	return w.persist
}

// WriteBuf implements odb.Writer.
func (w OutputWriter) WriteBuf(kind object.Kind, data []byte, hash object.HashKind) (object.ID, error) {
	switch {
	case w.persist != nil:
		return w.persist.WriteBuf(kind, data, hash)
	case w.discard != nil:
		return w.discard.WriteBuf(kind, data, hash)
	default:
		return object.ID{}, errUnsetWriter
	}
}

// WriteStream implements odb.Writer.
func (w OutputWriter) WriteStream(kind object.Kind, size int64, r io.Reader, hash object.HashKind) (object.ID, error) {
	switch {
	case w.persist != nil:
		return w.persist.WriteStream(kind, size, r, hash)
	case w.discard != nil:
		return w.discard.WriteStream(kind, size, r, hash)
	default:
		return object.ID{}, errUnsetWriter
	}
}

var errUnsetWriter = errors.New("explode: output writer has no destination")
