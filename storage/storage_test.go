package storage

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSystemStorage_RoundTrip(t *testing.T) {
	store, err := NewFileSystemStorage(t.TempDir())
	require.NoError(t, err)

	f, err := store.Create("a.journal")
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	r, err := store.Open("a.journal")
	require.NoError(t, err)
	size, err := r.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
	require.NoError(t, r.Close())

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.journal"}, names)

	require.NoError(t, store.Remove("a.journal"))
	names, err = store.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestFileSystemStorage_OpenMissing(t *testing.T) {
	store, err := NewFileSystemStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open("missing.journal")
	assert.True(t, os.IsNotExist(err), "missing files must be detectable with os.IsNotExist")
}

func TestFileSystemStorage_CreatesDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/deeper"
	store, err := NewFileSystemStorage(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, store.Path())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNullStorage_DiscardsEverything(t *testing.T) {
	store := NewNullStorage()

	f, err := store.Create("a.journal")
	require.NoError(t, err)
	n, err := f.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	size, err := f.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(5), size, "size is tracked even though bytes are dropped")
	require.NoError(t, f.Close())

	_, err = store.Open("a.journal")
	assert.True(t, os.IsNotExist(err))

	names, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}
