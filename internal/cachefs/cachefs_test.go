package cachefs

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) *FileHandler {
	t.Helper()
	fh, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = fh.Close() })
	return fh
}

func TestExistsReflectsCacheDirectory(t *testing.T) {
	fh := newTestHandler(t)
	assert.False(t, fh.Exists("ding.wav"))

	require.NoError(t, os.WriteFile(filepath.Join(fh.BaseDir(), "ding.wav"), []byte("rawdata"), 0o644))
	assert.True(t, fh.Exists("ding.wav"))
}

func TestExistsRejectsTraversal(t *testing.T) {
	fh := newTestHandler(t)
	assert.False(t, fh.Exists("../etc/passwd"))
	assert.False(t, fh.Exists("sub/dir/file.wav"))
}

func TestOpenMissingFileReturnsNotFound(t *testing.T) {
	fh := newTestHandler(t)
	_, err := fh.Open("missing.wav")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestOpenReadsExactContent(t *testing.T) {
	fh := newTestHandler(t)
	require.NoError(t, os.WriteFile(filepath.Join(fh.BaseDir(), "ding.wav"), []byte("hello"), 0o644))

	f, err := fh.Open("ding.wav")
	require.NoError(t, err)
	defer f.Close()

	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestUploadCommitWritesExactBytes(t *testing.T) {
	fh := newTestHandler(t)
	up, err := fh.BeginUpload("incoming.bin", 4)
	require.NoError(t, err)

	n, err := up.Write([]byte("ABCD"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.NoError(t, up.Commit())

	got, err := os.ReadFile(filepath.Join(fh.BaseDir(), "incoming.bin"))
	require.NoError(t, err)
	assert.Equal(t, "ABCD", string(got))
}

func TestUploadAbortDiscardsPartialFile(t *testing.T) {
	fh := newTestHandler(t)
	up, err := fh.BeginUpload("incoming.bin", 128)
	require.NoError(t, err)

	_, err = up.Write([]byte("only some bytes"))
	require.NoError(t, err)
	require.NoError(t, up.Abort())

	assert.False(t, fh.Exists("incoming.bin"))
}

func TestBeginUploadRejectsInvalidFilename(t *testing.T) {
	fh := newTestHandler(t)
	_, err := fh.BeginUpload("../escape.bin", 10)
	assert.ErrorIs(t, err, ErrInvalidFilename)
}

func TestBeginUploadRejectsWhenDiskFull(t *testing.T) {
	fh := newTestHandler(t)

	old := diskFreeBytes
	diskFreeBytes = func(string) (uint64, error) { return 10, nil }
	defer func() { diskFreeBytes = old }()

	_, err := fh.BeginUpload("huge.bin", 1<<30)
	assert.ErrorIs(t, err, ErrInsufficientSpace)
}

func TestRemoveUnknownFileIsNoOp(t *testing.T) {
	fh := newTestHandler(t)
	assert.NoError(t, fh.Remove("never-existed.bin"))
}
