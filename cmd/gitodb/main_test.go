package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/gitodb/internal/testutil"
	"github.com/meigma/gitodb/object"
)

func writeTestPack(t *testing.T) (indexPath, packPath string) {
	t.Helper()
	b := testutil.NewPackBuilder(object.SHA1)
	b.Add(object.KindBlob, []byte("one\n"))
	b.Add(object.KindBlob, []byte("two\n"))
	b.Add(object.KindBlob, []byte("three\n"))
	return b.Build(t).WriteFiles(t, t.TempDir(), "pack-cli")
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"--config", emptyConfig(t)}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func emptyConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gitodb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o600))
	return path
}

func TestExplodeCommand(t *testing.T) {
	t.Parallel()

	indexPath, packPath := writeTestPack(t)
	objectDir := t.TempDir()

	code, stdout, stderr := runCLI(t, "pack", "explode", "-c", "skip-file-checksum", "-t", "2", indexPath, objectDir)
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "processed=3 tolerated=0 failures=0\n", stdout)
	assert.FileExists(t, packPath)

	entries, err := os.ReadDir(objectDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestExplodeCommand_DeletePack(t *testing.T) {
	t.Parallel()

	indexPath, packPath := writeTestPack(t)
	code, _, stderr := runCLI(t, "pack", "explode", "--delete-pack", packPath, t.TempDir())
	require.Equal(t, exitOK, code, stderr)
	assert.NoFileExists(t, indexPath)
	assert.NoFileExists(t, packPath)
	assert.Contains(t, stderr, "removed pack files")
}

func TestVerifyCommand(t *testing.T) {
	t.Parallel()

	indexPath, packPath := writeTestPack(t)
	code, stdout, stderr := runCLI(t, "pack", "verify", indexPath)
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "processed=3 tolerated=0 failures=0\n", stdout)
	assert.FileExists(t, indexPath)
	assert.FileExists(t, packPath)
}

func TestExitCodes(t *testing.T) {
	t.Parallel()

	indexPath, _ := writeTestPack(t)
	missingDir := filepath.Join(t.TempDir(), "missing")

	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "unknown check key", args: []string{"pack", "explode", "-c", "strict", indexPath}, want: exitUsage},
		{name: "missing pack argument", args: []string{"pack", "explode"}, want: exitUsage},
		{name: "too many arguments", args: []string{"pack", "verify", indexPath, "extra"}, want: exitUsage},
		{name: "unknown flag", args: []string{"pack", "verify", "--bogus", indexPath}, want: exitUsage},
		{name: "unknown hash", args: []string{"pack", "verify", "--hash", "md5", indexPath}, want: exitUsage},
		{name: "inaccessible destination", args: []string{"pack", "explode", indexPath, missingDir}, want: exitFailure},
		{name: "object over size limit", args: []string{"pack", "verify", "--max-object-size", "4", indexPath}, want: exitFailure},
		{name: "malformed size limit", args: []string{"pack", "verify", "--max-object-size", "-1", indexPath}, want: exitUsage},
		{name: "missing pack", args: []string{"pack", "verify", filepath.Join(t.TempDir(), "nope.idx")}, want: exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, _, stderr := runCLI(t, tt.args...)
			assert.Equal(t, tt.want, code, stderr)
			assert.Contains(t, stderr, "error:")
		})
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	code, stdout, _ := runCLI(t, "version")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "gitodb ")
}
