package safeio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSafeFSAllowsAbsoluteUnderRoot(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(p, []byte("hello"), 0o644))

	fs, err := NewSafeFS(dir)
	require.NoError(t, err)

	got, err := fs.ReadFile(p)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestSafeFSRejectsTraversal(t *testing.T) {
	fs, err := NewSafeFS(t.TempDir())
	require.NoError(t, err)

	_, err = fs.ReadFile("../outside.txt")
	require.ErrorIs(t, err, ErrOutsideRoot)
}

func TestSafeFSRejectsSymlinkEscape(t *testing.T) {
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("x"), 0o644))
	dir := t.TempDir()
	if err := os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(dir, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	fs, err := NewSafeFS(dir)
	require.NoError(t, err)

	_, err = fs.ReadFile("link.txt")
	require.ErrorIs(t, err, ErrOutsideRoot)
}

func TestSafeFSRejectsNonDirectoryRoot(t *testing.T) {
	p := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))

	_, err := NewSafeFS(p)
	require.Error(t, err)
}

func TestReadPrefixCountsRunes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "u.txt"), []byte("ação-xyz"), 0o644))
	fs, err := NewSafeFS(dir)
	require.NoError(t, err)

	got, err := fs.ReadPrefix("u.txt", 4)
	require.NoError(t, err)
	require.Equal(t, "ação", got)

	all, err := fs.ReadPrefix("u.txt", 0)
	require.NoError(t, err)
	require.Equal(t, "ação-xyz", all)

	short, err := fs.ReadPrefix("u.txt", 100)
	require.NoError(t, err)
	require.Equal(t, "ação-xyz", short)
}

func TestReadPrefixReplacesInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.bin"), []byte{'o', 'k', 0xff, '!'}, 0o644))
	fs, err := NewSafeFS(dir)
	require.NoError(t, err)

	got, err := fs.ReadPrefix("b.bin", 10)
	require.NoError(t, err)
	require.Equal(t, "ok�!", got)
}

func TestReadFileRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	fs, err := NewSafeFS(dir)
	require.NoError(t, err)

	_, err = fs.ReadFile("sub")
	require.ErrorIs(t, err, ErrIsDirectory)
}
