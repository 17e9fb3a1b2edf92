// Package testutil holds fixtures shared by package tests: a pack builder and
// helpers for inspecting loose object directories.
package testutil

import (
	"bytes"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meigma/gitodb/object"
)

// ListFiles returns the regular files below dir, relative to dir with forward
// slashes, sorted.
func ListFiles(tb testing.TB, dir string) []string {
	tb.Helper()
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, relErr := filepath.Rel(dir, path)
			if relErr != nil {
				return relErr
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(tb, err)
	slices.Sort(files)
	return files
}

// ReadOnlyDir returns an empty directory the current user cannot create files
// in. The test is skipped when permissions are not enforced, as for root.
func ReadOnlyDir(tb testing.TB) string {
	tb.Helper()
	dir := tb.TempDir()
	require.NoError(tb, os.Chmod(dir, 0o500))
	tb.Cleanup(func() {
		_ = os.Chmod(dir, 0o700) //nolint:errcheck // best-effort cleanup
	})
	if f, err := os.CreateTemp(dir, "writable_*"); err == nil {
		_ = f.Close()           //nolint:errcheck // best-effort cleanup
		_ = os.Remove(f.Name()) //nolint:errcheck // best-effort cleanup
		tb.Skip("directory permissions are not enforced for this user")
	}
	return dir
}

// LoosePath returns the slash separated path of id inside an object directory.
func LoosePath(id object.ID) string {
	hexID := id.String()
	return hexID[:2] + "/" + hexID[2:]
}

// SyncBuffer is a bytes.Buffer safe for concurrent writes.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Logger returns a debug-level text logger writing to buf.
func Logger(buf *SyncBuffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
