// Package loose implements an object database that stores every object in its
// own zlib-compressed file.
//
// Objects live at <dir>/<first id byte in hex>/<remaining id bytes in hex>,
// the layout git and other tools read. Each file holds the deflated
// "<kind> <size>\x00" header followed by the object content.
package loose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/gitodb/internal/zlibpool"
	"github.com/meigma/gitodb/object"
	"github.com/meigma/gitodb/odb"
)

const (
	defaultDirPerm      = 0o755
	defaultFileMode     = 0o444
	defaultMaxOpenFiles = 64
)

// Sentinel errors for loose object access.
var (
	// ErrNotFound is returned when an object is not present in the store.
	ErrNotFound = errors.New("loose: object not found")

	// ErrCorrupt is returned when a stored object does not match its header.
	ErrCorrupt = errors.New("loose: corrupt object")
)

var _ odb.Writer = (*Store)(nil)

// Store is a loose object database rooted at a directory.
// The store is safe for concurrent use.
type Store struct {
	dir          string
	dirPerm      os.FileMode
	fileMode     os.FileMode
	level        int
	maxOpenFiles int
	writers      *zlibpool.WriterPool
	readers      *zlibpool.ReaderPool
	writeGroup   singleflight.Group // zero value is valid
	openFiles    *semaphore.Weighted
	written      atomic.Int64
	logger       *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithDirPerm sets the permissions of created shard directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(s *Store) {
		s.dirPerm = mode
	}
}

// WithFileMode sets the permissions of object files (default 0444).
func WithFileMode(mode os.FileMode) Option {
	return func(s *Store) {
		s.fileMode = mode
	}
}

// WithCompressionLevel sets the zlib level used for new objects.
func WithCompressionLevel(level int) Option {
	return func(s *Store) {
		s.level = level
	}
}

// WithMaxOpenFiles caps the number of object files being written at once.
// Values < 1 use the default (64).
func WithMaxOpenFiles(n int) Option {
	return func(s *Store) {
		s.maxOpenFiles = n
	}
}

// WithLogger sets the logger for store operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New opens a store rooted at dir. The directory must already exist and be
// writable.
func New(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("loose: object directory is empty")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("loose: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("loose: %s: %w", dir, fs.ErrInvalid)
	}
	if err := checkWritable(dir); err != nil {
		return nil, err
	}

	s := &Store{
		dir:          dir,
		dirPerm:      defaultDirPerm,
		fileMode:     defaultFileMode,
		level:        zlib.DefaultCompression,
		maxOpenFiles: defaultMaxOpenFiles,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxOpenFiles < 1 {
		s.maxOpenFiles = defaultMaxOpenFiles
	}
	s.writers = zlibpool.NewWriterPool(s.level)
	s.readers = zlibpool.NewReaderPool()
	s.openFiles = semaphore.NewWeighted(int64(s.maxOpenFiles))
	return s, nil
}

// checkWritable creates and removes a temporary file in dir.
func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, "tmp_obj_*")
	if err != nil {
		return fmt.Errorf("loose: %s is not writable: %w", dir, err)
	}
	_ = f.Close()           //nolint:errcheck // best-effort cleanup
	_ = os.Remove(f.Name()) //nolint:errcheck // best-effort cleanup
	return nil
}

// log returns the logger, falling back to a discard logger if nil.
func (s *Store) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

// Written returns the number of object files created by this Store.
// Objects that already existed are not counted.
func (s *Store) Written() int64 {
	return s.written.Load()
}

// Path returns the file path of the object with the given id.
func (s *Store) Path(id object.ID) string {
	hexID := id.String()
	return filepath.Join(s.dir, hexID[:2], hexID[2:])
}

// Contains reports whether the object is stored.
func (s *Store) Contains(id object.ID) bool {
	_, err := os.Stat(s.Path(id))
	return err == nil
}

// WriteBuf stores an object held in memory and returns its id.
func (s *Store) WriteBuf(kind object.Kind, data []byte, hash object.HashKind) (object.ID, error) {
	encoded, err := object.Encode(kind, data, hash)
	if err != nil {
		return object.ID{}, err
	}
	id := object.Compute(kind, encoded, hash)
	if s.Contains(id) {
		return id, nil
	}

	_, err, _ = s.writeGroup.Do(id.String(), func() (any, error) {
		return nil, s.writeKnown(id, kind, encoded)
	})
	if err != nil {
		return object.ID{}, err
	}
	return id, nil
}

// WriteStream stores exactly size bytes read from r and returns the object id.
//
// Non-tree content is streamed into a temporary file while it is hashed and
// renamed into place once the id is known. Trees are buffered because their
// encoding may change.
func (s *Store) WriteStream(kind object.Kind, size int64, r io.Reader, hash object.HashKind) (object.ID, error) {
	if kind == object.KindTree {
		data, err := odb.ReadExact(r, size)
		if err != nil {
			return object.ID{}, err
		}
		return s.WriteBuf(kind, data, hash)
	}

	if err := s.openFiles.Acquire(context.Background(), 1); err != nil {
		return object.ID{}, err
	}
	defer s.openFiles.Release(1)

	tmp, err := os.CreateTemp(s.dir, "tmp_obj_*")
	if err != nil {
		return object.ID{}, fmt.Errorf("loose: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	hasher := object.NewHasher(kind, size, hash)
	err = s.deflateInto(tmp, kind, size, func(w io.Writer) error {
		return odb.CopyExact(io.MultiWriter(w, hasher), r, size)
	})
	if err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return object.ID{}, err
	}

	id := hasher.Sum()
	if err := s.commit(tmpPath, id); err != nil {
		return object.ID{}, err
	}
	return id, nil
}

// writeKnown writes an object whose id has already been computed.
func (s *Store) writeKnown(id object.ID, kind object.Kind, encoded []byte) error {
	// Another writer may have finished between the caller's check and now.
	if s.Contains(id) {
		return nil
	}
	if err := s.openFiles.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer s.openFiles.Release(1)

	shard := filepath.Dir(s.Path(id))
	if err := os.MkdirAll(shard, s.dirPerm); err != nil {
		return fmt.Errorf("loose: create directory %s: %w", shard, err)
	}
	tmp, err := os.CreateTemp(shard, "tmp_obj_*")
	if err != nil {
		return fmt.Errorf("loose: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	err = s.deflateInto(tmp, kind, int64(len(encoded)), func(w io.Writer) error {
		_, err := w.Write(encoded)
		return err
	})
	if err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return err
	}
	return s.commit(tmpPath, id)
}

// deflateInto writes the compressed header and body into f and closes it.
func (s *Store) deflateInto(f *os.File, kind object.Kind, size int64, body func(io.Writer) error) error {
	zw, release, err := s.writers.Get(f)
	if err != nil {
		_ = f.Close() //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("loose: %w", err)
	}
	defer release()

	if _, err := zw.Write(object.Header(kind, size)); err != nil {
		_ = f.Close() //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("loose: write header: %w", err)
	}
	if err := body(zw); err != nil {
		_ = zw.Close() //nolint:errcheck // stream is abandoned
		_ = f.Close()  //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("loose: write body: %w", err)
	}
	if err := zw.Close(); err != nil {
		_ = f.Close() //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("loose: flush: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("loose: close temp file: %w", err)
	}
	return nil
}

// commit moves a fully written temp file to the object's final path.
func (s *Store) commit(tmpPath string, id object.ID) error {
	path := s.Path(id)
	if s.Contains(id) {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), s.dirPerm); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("loose: create directory: %w", err)
	}
	if err := os.Chmod(tmpPath, s.fileMode); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("loose: chmod: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		if s.Contains(id) {
			return nil
		}
		return fmt.Errorf("loose: rename to %s: %w", path, err)
	}
	s.written.Add(1)
	s.log().Debug("wrote loose object", "id", id.String())
	return nil
}

// Read returns the kind and content of a stored object.
func (s *Store) Read(id object.ID) (object.Kind, []byte, error) {
	f, err := os.Open(s.Path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return 0, nil, fmt.Errorf("loose: %w", err)
	}
	defer f.Close()

	zr, release, err := s.readers.Get(f)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, id, err)
	}
	defer release()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, id, err)
	}
	kind, size, n, err := object.ParseHeader(raw)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, id, err)
	}
	content := raw[n:]
	if int64(len(content)) != size {
		return 0, nil, fmt.Errorf("%w: %s: size %d, header says %d", ErrCorrupt, id, len(content), size)
	}
	return kind, content, nil
}
