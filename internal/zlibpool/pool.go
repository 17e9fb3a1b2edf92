// Package zlibpool manages reusable zlib readers and writers.
//
// Pack entries and loose objects are individually deflated, so a traversal
// creates one inflater per object. Pooling the klauspost/compress
// implementations keeps their internal window buffers out of the allocator.
package zlibpool

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

// ReaderPool hands out zlib readers reset onto a new source.
type ReaderPool struct {
	pool sync.Pool
}

// NewReaderPool creates an empty reader pool.
func NewReaderPool() *ReaderPool {
	return &ReaderPool{}
}

// Get returns a reader inflating r. The zlib header is read immediately, so a
// corrupt header is reported here rather than on the first Read.
// The caller must call the returned release function when done.
// If an error is returned, no release function needs to be called.
func (p *ReaderPool) Get(r io.Reader) (io.ReadCloser, func(), error) {
	if p == nil {
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { _ = zr.Close() }, nil //nolint:errcheck // close of a reader only releases state
	}

	if value := p.pool.Get(); value != nil {
		zr, ok := value.(io.ReadCloser)
		if ok {
			resetter, canReset := zr.(zlib.Resetter)
			if canReset {
				if err := resetter.Reset(r, nil); err != nil {
					return nil, nil, err
				}
				return zr, func() { p.pool.Put(zr) }, nil
			}
		}
	}

	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, nil, err
	}
	return zr, func() { p.pool.Put(zr) }, nil
}

// WriterPool hands out zlib writers at a fixed compression level.
type WriterPool struct {
	pool  sync.Pool
	level int
}

// NewWriterPool creates a writer pool. Level follows the zlib package
// constants; invalid levels are reported by Get.
func NewWriterPool(level int) *WriterPool {
	return &WriterPool{level: level}
}

// Get returns a writer deflating into w. The caller must Close the writer to
// flush the stream and then call release.
func (p *WriterPool) Get(w io.Writer) (*zlib.Writer, func(), error) {
	if value := p.pool.Get(); value != nil {
		if zw, ok := value.(*zlib.Writer); ok {
			zw.Reset(w)
			return zw, func() { p.pool.Put(zw) }, nil
		}
	}
	zw, err := zlib.NewWriterLevel(w, p.level)
	if err != nil {
		return nil, nil, err
	}
	return zw, func() { p.pool.Put(zw) }, nil
}
