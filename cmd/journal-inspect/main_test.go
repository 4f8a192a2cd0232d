package main

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/prevaldb/core"
	"github.com/INLOpen/prevaldb/journal"
	"github.com/INLOpen/prevaldb/storage"
)

func TestRun_DumpsRecords(t *testing.T) {
	dataDir := t.TempDir()
	store, err := storage.NewFileSystemStorage(filepath.Join(dataDir, "journal"))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	j, _, err := journal.Open(journal.Options{Storage: store, Logger: logger})
	require.NoError(t, err)
	_, err = j.Append(core.Record{SeqNum: 1, CommandID: "cmd-1", Name: "Deposit", Payload: []byte("x")})
	require.NoError(t, err)
	_, err = j.Append(core.Record{SeqNum: 2, CommandID: "cmd-2", Name: "Withdraw", Payload: []byte("yy")})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	before, err := store.List()
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, run(dataDir, logger, &out))

	assert.Contains(t, out.String(), "records: 2")
	assert.Contains(t, out.String(), "Deposit")
	assert.Contains(t, out.String(), "Withdraw")

	// Inspection is read-only: no segment may be created or sealed.
	after, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, before, after, "inspecting must leave the store untouched")
}

func TestRun_EmptyDirectory(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, run(t.TempDir(), logger, &out))
	assert.Contains(t, out.String(), "records: 0")
}
