// Package snapshot serializes the model state wholesale to storage so the
// journal can be truncated up to the snapshotted sequence number. The engine
// decides when to trigger a snapshot; this package only writes, discovers
// and restores them.
package snapshot

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/INLOpen/prevaldb/compressors"
	"github.com/INLOpen/prevaldb/core"
	"github.com/INLOpen/prevaldb/format"
	"github.com/INLOpen/prevaldb/hooks"
	"github.com/INLOpen/prevaldb/storage"
)

// Options holds configuration for the snapshot manager.
type Options struct {
	Storage     storage.Storage
	Formatter   format.Formatter
	Compression core.CompressionType
	Logger      *slog.Logger
	HookManager hooks.HookManager
}

// Manager writes and restores model snapshots.
type Manager struct {
	store       storage.Storage
	formatter   format.Formatter
	compression core.CompressionType
	compressor  core.Compressor
	logger      *slog.Logger
	hookManager hooks.HookManager
}

func NewManager(opts Options) (*Manager, error) {
	if opts.Storage == nil {
		return nil, fmt.Errorf("snapshot manager requires a storage backend")
	}
	if opts.Formatter == nil {
		return nil, fmt.Errorf("snapshot manager requires a formatter")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	compressor, err := compressors.ForType(opts.Compression)
	if err != nil {
		return nil, err
	}
	return &Manager{
		store:       opts.Storage,
		formatter:   opts.Formatter,
		compression: opts.Compression,
		compressor:  compressor,
		logger:      logger.With("component", "SnapshotManager"),
		hookManager: opts.HookManager,
	}, nil
}

func formatSnapshotFileName(seqNum uint64) string {
	return fmt.Sprintf("%020d%s", seqNum, core.SnapshotFileSuffix)
}

func parseSnapshotFileName(name string) (uint64, error) {
	if !strings.HasSuffix(name, core.SnapshotFileSuffix) {
		return 0, fmt.Errorf("file %s is not a snapshot file", name)
	}
	name = strings.TrimSuffix(name, core.SnapshotFileSuffix)
	return strconv.ParseUint(name, 10, 64)
}

// Take serializes the model as of seqNum and persists it. The caller must
// hold the write guard so the model cannot change mid-serialization. Older
// snapshots are pruned after the new one is durable.
func (m *Manager) Take(model any, seqNum uint64) error {
	data, err := m.formatter.Marshal(model)
	if err != nil {
		return fmt.Errorf("failed to serialize model for snapshot: %w", err)
	}
	payload, err := m.compressor.Compress(data)
	if err != nil {
		return fmt.Errorf("failed to compress snapshot: %w", err)
	}

	name := formatSnapshotFileName(seqNum)
	file, err := m.store.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create snapshot %s: %w", name, err)
	}

	header := core.NewFileHeader(core.SnapshotMagicNumber, m.compression)
	if err := binary.Write(file, binary.LittleEndian, &header); err != nil {
		file.Close()
		return fmt.Errorf("failed to write snapshot header: %w", err)
	}
	if err := binary.Write(file, binary.LittleEndian, seqNum); err != nil {
		file.Close()
		return fmt.Errorf("failed to write snapshot watermark: %w", err)
	}
	if err := binary.Write(file, binary.LittleEndian, uint32(len(payload))); err != nil {
		file.Close()
		return fmt.Errorf("failed to write snapshot length: %w", err)
	}
	if _, err := file.Write(payload); err != nil {
		file.Close()
		return fmt.Errorf("failed to write snapshot payload: %w", err)
	}
	if err := binary.Write(file, binary.LittleEndian, crc32.ChecksumIEEE(payload)); err != nil {
		file.Close()
		return fmt.Errorf("failed to write snapshot checksum: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync snapshot %s: %w", name, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot %s: %w", name, err)
	}

	m.logger.Info("Snapshot taken.", "seq_num", seqNum, "size_bytes", len(payload))
	m.pruneOlder(seqNum)

	if m.hookManager != nil {
		payload := hooks.PostSnapshotPayload{SeqNum: seqNum, Name: name}
		m.hookManager.Trigger(context.Background(), hooks.NewPostSnapshotEvent(payload))
	}
	return nil
}

// Latest returns the watermark and file name of the most recent snapshot.
// found is false when the store holds no snapshot.
func (m *Manager) Latest() (seqNum uint64, name string, found bool, err error) {
	names, err := m.store.List()
	if err != nil {
		return 0, "", false, fmt.Errorf("failed to list snapshot store: %w", err)
	}
	var seqs []uint64
	for _, n := range names {
		if s, perr := parseSnapshotFileName(n); perr == nil {
			seqs = append(seqs, s)
		}
	}
	if len(seqs) == 0 {
		return 0, "", false, nil
	}
	sort.Slice(seqs, func(i, k int) bool { return seqs[i] < seqs[k] })
	latest := seqs[len(seqs)-1]
	return latest, formatSnapshotFileName(latest), true, nil
}

// Restore loads the latest snapshot into model and returns its watermark.
// A store without snapshots restores nothing and returns 0.
func (m *Manager) Restore(model any) (uint64, error) {
	_, name, found, err := m.Latest()
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}

	file, err := m.store.Open(name)
	if err != nil {
		return 0, fmt.Errorf("failed to open snapshot %s: %w", name, err)
	}
	defer file.Close()

	var header core.FileHeader
	if err := binary.Read(file, binary.LittleEndian, &header); err != nil {
		return 0, fmt.Errorf("failed to read snapshot header from %s: %w", name, err)
	}
	if header.Magic != core.SnapshotMagicNumber {
		return 0, fmt.Errorf("invalid magic number in snapshot %s: got %x, want %x", name, header.Magic, core.SnapshotMagicNumber)
	}
	compressor, err := compressors.ForType(header.CompressorType)
	if err != nil {
		return 0, fmt.Errorf("snapshot %s: %w", name, err)
	}

	var watermark uint64
	if err := binary.Read(file, binary.LittleEndian, &watermark); err != nil {
		return 0, fmt.Errorf("failed to read snapshot watermark from %s: %w", name, err)
	}
	var length uint32
	if err := binary.Read(file, binary.LittleEndian, &length); err != nil {
		return 0, fmt.Errorf("failed to read snapshot length from %s: %w", name, err)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(file, payload); err != nil {
		return 0, fmt.Errorf("failed to read snapshot payload from %s: %w", name, err)
	}
	var checksum uint32
	if err := binary.Read(file, binary.LittleEndian, &checksum); err != nil {
		return 0, fmt.Errorf("failed to read snapshot checksum from %s: %w", name, err)
	}
	if checksum != crc32.ChecksumIEEE(payload) {
		return 0, fmt.Errorf("checksum mismatch in snapshot %s", name)
	}

	rc, err := compressor.Decompress(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to decompress snapshot %s: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return 0, fmt.Errorf("failed to read decompressed snapshot %s: %w", name, err)
	}

	if err := m.formatter.Unmarshal(data, model); err != nil {
		return 0, fmt.Errorf("failed to deserialize snapshot %s into model: %w", name, err)
	}

	m.logger.Info("Snapshot restored.", "seq_num", watermark)
	return watermark, nil
}

// pruneOlder removes snapshots below the given watermark. Failures are
// logged and ignored; a stale snapshot is harmless.
func (m *Manager) pruneOlder(seqNum uint64) {
	names, err := m.store.List()
	if err != nil {
		m.logger.Warn("Failed to list snapshots for pruning.", "error", err)
		return
	}
	for _, n := range names {
		s, perr := parseSnapshotFileName(n)
		if perr != nil || s >= seqNum {
			continue
		}
		if err := m.store.Remove(n); err != nil {
			m.logger.Warn("Failed to prune old snapshot.", "name", n, "error", err)
		}
	}
}
