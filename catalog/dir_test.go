package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountEmptyDir(t *testing.T) {
	p := NewDirProvider(t.TempDir())
	require.EqualValues(t, 0, p.Count())
}

func TestCountMissingDir(t *testing.T) {
	p := NewDirProvider(filepath.Join(t.TempDir(), "does-not-exist"))
	require.EqualValues(t, 0, p.Count())
}

func TestReadValidIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.jpg"), []byte{0xFF, 0xEE, 0xDD}, 0o644))

	p := NewDirProvider(dir)
	require.EqualValues(t, 1, p.Count())

	data, err := p.Read(1)
	require.NoError(t, err)
	require.Equal(t, []byte{0xFF, 0xEE, 0xDD}, data)
}

func TestReadIndexZeroIsNotFound(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.jpg"), []byte("x"), 0o644))

	p := NewDirProvider(dir)
	_, err := p.Read(0)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestReadIndexPastCountIsNotFound(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.jpg"), []byte("x"), 0o644))

	p := NewDirProvider(dir)
	_, err := p.Read(2)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestCountIgnoresSubdirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.jpg"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	p := NewDirProvider(dir)
	require.EqualValues(t, 1, p.Count())
}
