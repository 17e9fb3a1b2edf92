package odb

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/meigma/gitodb/internal/zlibpool"
	"github.com/meigma/gitodb/object"
)

// Sink is a Writer that computes ids and discards the content.
//
// With compression enabled the encoded object is also deflated into
// io.Discard, so a verification run costs the same CPU as a persisting run.
// Sink never touches the filesystem.
type Sink struct {
	compress bool
	writers  *zlibpool.WriterPool
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithCompression enables deflating written objects into io.Discard.
func WithCompression(enabled bool) SinkOption {
	return func(s *Sink) {
		s.compress = enabled
	}
}

// NewSink creates a Sink.
func NewSink(opts ...SinkOption) *Sink {
	s := &Sink{}
	for _, opt := range opts {
		opt(s)
	}
	if s.compress {
		s.writers = zlibpool.NewWriterPool(zlib.DefaultCompression)
	}
	return s
}

// WriteBuf returns the id of the encoded object.
func (s *Sink) WriteBuf(kind object.Kind, data []byte, hash object.HashKind) (object.ID, error) {
	encoded, err := object.Encode(kind, data, hash)
	if err != nil {
		return object.ID{}, err
	}
	if s.compress {
		if err := s.deflate(kind, encoded); err != nil {
			return object.ID{}, err
		}
	}
	return object.Compute(kind, encoded, hash), nil
}

// WriteStream hashes exactly size bytes from r.
func (s *Sink) WriteStream(kind object.Kind, size int64, r io.Reader, hash object.HashKind) (object.ID, error) {
	if kind == object.KindTree {
		data, err := ReadExact(r, size)
		if err != nil {
			return object.ID{}, err
		}
		return s.WriteBuf(kind, data, hash)
	}

	hasher := object.NewHasher(kind, size, hash)
	var dst io.Writer = hasher
	if s.compress {
		zw, release, err := s.writers.Get(io.Discard)
		if err != nil {
			return object.ID{}, err
		}
		defer release()
		if _, err := zw.Write(object.Header(kind, size)); err != nil {
			return object.ID{}, err
		}
		dst = io.MultiWriter(hasher, zw)
		defer zw.Close() //nolint:errcheck // output is discarded
	}
	if err := CopyExact(dst, r, size); err != nil {
		return object.ID{}, err
	}
	return hasher.Sum(), nil
}

func (s *Sink) deflate(kind object.Kind, encoded []byte) error {
	zw, release, err := s.writers.Get(io.Discard)
	if err != nil {
		return err
	}
	defer release()
	if _, err := zw.Write(object.Header(kind, int64(len(encoded)))); err != nil {
		return err
	}
	if _, err := zw.Write(encoded); err != nil {
		return err
	}
	return zw.Close()
}

// CopyExact copies exactly size bytes from r to dst.
func CopyExact(dst io.Writer, r io.Reader, size int64) error {
	if size < 0 {
		return fmt.Errorf("%w: negative size %d", ErrSizeMismatch, size)
	}
	n, err := io.CopyN(dst, r, size)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: got %d of %d bytes", ErrSizeMismatch, n, size)
		}
		return err
	}
	return nil
}

// ReadExact reads exactly size bytes from r.
func ReadExact(r io.Reader, size int64) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrSizeMismatch, size)
	}
	buf := make([]byte, size)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: got %d of %d bytes", ErrSizeMismatch, n, size)
		}
		return nil, err
	}
	return buf, nil
}
