package snapshot

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/prevaldb/core"
	"github.com/INLOpen/prevaldb/format"
	"github.com/INLOpen/prevaldb/storage"
)

type ledger struct {
	Accounts map[string]int64
}

func testManager(t *testing.T, dir string, compression core.CompressionType) *Manager {
	t.Helper()
	store, err := storage.NewFileSystemStorage(dir)
	require.NoError(t, err)
	m, err := NewManager(Options{
		Storage:     store,
		Formatter:   format.NewGobFormatter(),
		Compression: compression,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return m
}

func TestManager_TakeAndRestore(t *testing.T) {
	dir := t.TempDir()
	m := testManager(t, dir, core.CompressionNone)

	model := &ledger{Accounts: map[string]int64{"alice": 100, "bob": 50}}
	require.NoError(t, m.Take(model, 42))

	restored := &ledger{}
	watermark, err := m.Restore(restored)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), watermark)
	assert.Equal(t, model.Accounts, restored.Accounts)
}

func TestManager_RestoreWithoutSnapshot(t *testing.T) {
	m := testManager(t, t.TempDir(), core.CompressionNone)

	restored := &ledger{}
	watermark, err := m.Restore(restored)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), watermark, "an empty store restores nothing")
	assert.Nil(t, restored.Accounts)
}

func TestManager_LatestWinsAndOlderArePruned(t *testing.T) {
	dir := t.TempDir()
	m := testManager(t, dir, core.CompressionNone)

	require.NoError(t, m.Take(&ledger{Accounts: map[string]int64{"alice": 1}}, 10))
	require.NoError(t, m.Take(&ledger{Accounts: map[string]int64{"alice": 2}}, 20))

	seq, _, found, err := m.Latest()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(20), seq)

	restored := &ledger{}
	watermark, err := m.Restore(restored)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), watermark)
	assert.Equal(t, int64(2), restored.Accounts["alice"])

	// Taking the second snapshot pruned the first one.
	store, err := storage.NewFileSystemStorage(dir)
	require.NoError(t, err)
	names, err := store.List()
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

func TestManager_CompressedSnapshot(t *testing.T) {
	dir := t.TempDir()
	m := testManager(t, dir, core.CompressionZSTD)

	model := &ledger{Accounts: map[string]int64{"alice": 100}}
	require.NoError(t, m.Take(model, 7))

	// The compressor is chosen from the file header on restore, so a manager
	// configured differently still reads it.
	m2 := testManager(t, dir, core.CompressionNone)
	restored := &ledger{}
	watermark, err := m2.Restore(restored)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), watermark)
	assert.Equal(t, int64(100), restored.Accounts["alice"])
}
