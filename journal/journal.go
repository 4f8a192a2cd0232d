// Package journal implements the durability authority of the engine: an
// ordered sequence of append-only, size-capped segments through which every
// accepted command is persisted before it may mutate the model.
package journal

import (
	"bytes"
	"context"
	"encoding/binary"
	"expvar"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/INLOpen/prevaldb/compressors"
	"github.com/INLOpen/prevaldb/core"
	"github.com/INLOpen/prevaldb/hooks"
	"github.com/INLOpen/prevaldb/storage"
)

// Options holds configuration for the command journal.
type Options struct {
	Storage        storage.Storage
	MaxSegmentSize int64
	WriterMode     WriterMode
	// QueueDepth bounds the async writer's queue. Ignored in sync mode.
	QueueDepth     int
	Compression    core.CompressionType
	BytesWritten   *expvar.Int
	EntriesWritten *expvar.Int
	Logger         *slog.Logger
	HookManager    hooks.HookManager
}

// Journal manages a store of segment files and the active segment writer.
type Journal struct {
	mu   sync.Mutex
	opts Options

	store      storage.Storage
	compressor core.Compressor

	activeSegment  *SegmentWriter
	segmentIndexes []uint64

	async *asyncWriter

	metricsBytesWritten   *expvar.Int
	metricsEntriesWritten *expvar.Int

	logger      *slog.Logger
	hookManager hooks.HookManager
}

var _ Interface = (*Journal)(nil)

// Open creates or opens a journal in the given store. It recovers all
// records from existing segments, in segment order, and prepares a segment
// for appending. The recovered records are returned so the caller can
// replay them against the model.
func Open(opts Options) (*Journal, []core.Record, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "CommandJournal")
	} else {
		opts.Logger = opts.Logger.With("component", "CommandJournal")
	}
	if opts.MaxSegmentSize == 0 {
		opts.MaxSegmentSize = DefaultMaxSegmentSize
	}
	if opts.Storage == nil {
		return nil, nil, fmt.Errorf("journal requires a storage backend")
	}

	compressor, err := compressors.ForType(opts.Compression)
	if err != nil {
		return nil, nil, err
	}

	j := &Journal{
		opts:                  opts,
		store:                 opts.Storage,
		compressor:            compressor,
		metricsBytesWritten:   opts.BytesWritten,
		metricsEntriesWritten: opts.EntriesWritten,
		logger:                opts.Logger,
		hookManager:           opts.HookManager,
	}

	if err := j.loadSegments(); err != nil {
		return nil, nil, fmt.Errorf("failed to load journal segments: %w", err)
	}

	recovered, recoveryErr := j.recover()

	if err := j.openForAppend(); err != nil {
		j.Close()
		return nil, nil, fmt.Errorf("failed to open journal for appending: %w", err)
	}

	if opts.WriterMode == WriterAsync {
		depth := opts.QueueDepth
		if depth <= 0 {
			depth = defaultQueueDepth
		}
		j.async = newAsyncWriter(j, depth)
	}

	if j.hookManager != nil {
		payload := hooks.PostJournalRecoveryPayload{RecoveredRecordCount: len(recovered)}
		j.hookManager.Trigger(context.Background(), hooks.NewPostJournalRecoveryEvent(payload))
	}

	// recover returns io.EOF for a clean, full read of all segments, which
	// is not an error for the Open operation.
	if recoveryErr == io.EOF {
		return j, recovered, nil
	}
	return j, recovered, recoveryErr
}

// loadSegments scans the store and populates the segmentIndexes slice.
func (j *Journal) loadSegments() error {
	indexes, err := listSegmentIndexes(j.store)
	if err != nil {
		return err
	}
	j.segmentIndexes = indexes
	return nil
}

// Append persists a single record and returns its position.
func (j *Journal) Append(rec core.Record) (uint64, error) {
	if j.async != nil {
		return j.async.append(rec)
	}
	payload, err := j.encodePayload(&rec)
	if err != nil {
		return 0, err
	}
	if err := j.writePayload(payload); err != nil {
		return 0, err
	}
	return rec.SeqNum, nil
}

// encodePayload serializes and compresses a record body into a segment payload.
func (j *Journal) encodePayload(rec *core.Record) ([]byte, error) {
	var body bytes.Buffer
	if err := encodeRecordData(&body, rec); err != nil {
		return nil, fmt.Errorf("failed to encode record %d: %w", rec.SeqNum, err)
	}
	payload, err := j.compressor.Compress(body.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to compress record %d: %w", rec.SeqNum, err)
	}
	return payload, nil
}

// writePayload appends an encoded payload to the active segment, rotating
// first when the segment already holds a record and the new one would
// overflow it. The write is synced before returning, so a nil result means
// the record is durable.
func (j *Journal) writePayload(payload []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.activeSegment == nil {
		return core.ErrJournalClosed
	}

	newRecordSize := int64(len(payload)) + 4 + core.ChecksumSize
	currentSize := j.activeSegment.Size()
	headerSize := int64(binary.Size(core.FileHeader{}))

	// Only rotate if the segment already contains at least one record. This
	// allows a single oversized record to be written to an empty segment.
	if currentSize > headerSize && currentSize+newRecordSize > j.opts.MaxSegmentSize {
		j.logger.Debug("Rotating journal segment due to size",
			"current_size", currentSize, "new_record_size", newRecordSize, "max_size", j.opts.MaxSegmentSize)
		if err := j.rotateLocked(); err != nil {
			return fmt.Errorf("failed to rotate journal segment: %w", err)
		}
	}

	if err := j.activeSegment.WriteRecord(payload); err != nil {
		return err
	}
	if err := j.activeSegment.Sync(); err != nil {
		return err
	}

	if j.metricsBytesWritten != nil {
		j.metricsBytesWritten.Add(newRecordSize)
	}
	if j.metricsEntriesWritten != nil {
		j.metricsEntriesWritten.Add(1)
	}
	return nil
}

// syncActive flushes the active segment to stable storage.
func (j *Journal) syncActive() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.activeSegment == nil {
		return core.ErrJournalClosed
	}
	if err := j.activeSegment.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal segment: %w", err)
	}
	return nil
}

// Sync is the durability barrier. For the async writer it drains the queue
// and surfaces any captured drain failure.
func (j *Journal) Sync() error {
	if j.async != nil {
		return j.async.barrier()
	}
	return j.syncActive()
}

// Rotate manually triggers a segment rotation.
func (j *Journal) Rotate() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rotateLocked()
}

// Close drains pending appends, then closes the active segment.
func (j *Journal) Close() error {
	var drainErr error
	if j.async != nil {
		drainErr = j.async.close()
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.activeSegment == nil {
		return drainErr // Already closed
	}

	closeErr := j.activeSegment.Close()
	j.activeSegment = nil

	if closeErr != nil {
		j.logger.Error("Error during journal close.", "error", closeErr)
	} else {
		j.logger.Info("Journal closed.")
	}
	if drainErr != nil {
		return drainErr
	}
	return closeErr
}

// Purge deletes segment files with index less than or equal to the given index.
func (j *Journal) Purge(upToIndex uint64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var remaining []uint64
	var purged int
	for _, index := range j.segmentIndexes {
		if index <= upToIndex {
			if j.activeSegment != nil && j.activeSegment.index == index {
				j.logger.Warn("Skipping purge of active journal segment", "index", index)
				remaining = append(remaining, index)
				continue
			}
			name := formatSegmentFileName(index)
			if err := j.store.Remove(name); err != nil {
				j.logger.Error("Failed to purge journal segment", "name", name, "error", err)
			} else {
				purged++
			}
		} else {
			remaining = append(remaining, index)
		}
	}
	j.segmentIndexes = remaining
	if purged > 0 {
		j.logger.Info("Purged journal segments", "count", purged, "up_to_index", upToIndex)
	}
	return nil
}

// Path returns the location of the journal's store.
func (j *Journal) Path() string {
	return j.store.Path()
}

// ActiveSegmentIndex returns the index of the current active segment.
// It returns 0 if there is no active segment.
func (j *Journal) ActiveSegmentIndex() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.activeSegment == nil {
		return 0
	}
	return j.activeSegment.index
}

// rotateLocked creates a new segment for writing. Must be called with the lock held.
func (j *Journal) rotateLocked() error {
	var nextIndex uint64 = 1
	if len(j.segmentIndexes) > 0 {
		nextIndex = j.segmentIndexes[len(j.segmentIndexes)-1] + 1
	}

	newSegment, err := CreateSegment(j.store, nextIndex, j.opts.Compression)
	if err != nil {
		return err
	}

	var oldIndex uint64
	if j.activeSegment != nil {
		oldIndex = j.activeSegment.index
		if err := j.activeSegment.Close(); err != nil {
			j.logger.Error("failed to close active segment during rotation", "name", j.activeSegment.name, "error", err)
			// Continue anyway, we need a new segment
		}
	}

	j.activeSegment = newSegment
	j.segmentIndexes = append(j.segmentIndexes, nextIndex)
	j.logger.Info("Rotated to new journal segment", "index", nextIndex)

	if j.hookManager != nil && oldIndex > 0 {
		payload := hooks.PostJournalRotatePayload{
			OldSegmentIndex: oldIndex,
			NewSegmentIndex: newSegment.index,
		}
		// Internal, non-request-driven event.
		j.hookManager.Trigger(context.Background(), hooks.NewPostJournalRotateEvent(payload))
	}
	return nil
}

// recover reads all records from all known segments, in segment order.
func (j *Journal) recover() ([]core.Record, error) {
	var all []core.Record
	for _, index := range j.segmentIndexes {
		name := formatSegmentFileName(index)
		records, err := recoverFromSegment(j.store, name, j.logger)
		if len(records) > 0 {
			all = append(all, records...)
		}
		if err != nil {
			if err == io.EOF {
				continue
			}
			// For other errors (corruption, unexpected EOF) we stop
			// recovery; the caller receives the partially recovered
			// records and decides how to proceed.
			j.logger.Warn("Recovery stopped on segment due to error", "index", index, "error", err)
			return all, err
		}
	}
	return all, io.EOF
}

// recoverFromSegment reads all valid records from a single segment file.
func recoverFromSegment(store storage.Storage, name string, logger *slog.Logger) ([]core.Record, error) {
	reader, err := OpenSegmentForRead(store, name)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("Journal segment does not exist, nothing to recover.", "name", name)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open journal segment for reading %s: %w", name, err)
	}
	defer reader.Close()

	var records []core.Record
	for {
		body, err := reader.ReadRecord()
		if err != nil {
			// Return successfully read records along with the error; the
			// caller decides whether io.EOF/io.ErrUnexpectedEOF is fatal.
			return records, err
		}
		rec, err := decodeRecordData(bytes.NewReader(body))
		if err != nil {
			return records, fmt.Errorf("error decoding journal record: %w", err)
		}
		records = append(records, *rec)
	}
}

func (j *Journal) openForAppend() error {
	if len(j.segmentIndexes) == 0 {
		return j.rotateLocked()
	}

	// To avoid appending to a potentially truncated file after a crash, a
	// non-empty last segment is sealed and a fresh one started.
	lastIndex := j.segmentIndexes[len(j.segmentIndexes)-1]
	name := formatSegmentFileName(lastIndex)

	file, err := j.store.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return j.rotateLocked()
		}
		return fmt.Errorf("failed to open last segment %s: %w", name, err)
	}
	size, err := file.Size()
	file.Close()
	if err != nil {
		return fmt.Errorf("failed to stat last segment %s: %w", name, err)
	}

	if size > int64(binary.Size(core.FileHeader{})) {
		return j.rotateLocked()
	}

	// The last segment is empty or header-only; recreate it in place.
	seg, err := CreateSegment(j.store, lastIndex, j.opts.Compression)
	if err != nil {
		return fmt.Errorf("failed to reuse segment %d: %w", lastIndex, err)
	}
	j.activeSegment = seg
	return nil
}

// encodeRecordData serializes a record body into a writer.
func encodeRecordData(w io.Writer, rec *core.Record) error {
	if err := binary.Write(w, binary.LittleEndian, rec.SeqNum); err != nil {
		return err
	}
	if err := writeLenPrefixed(w, []byte(rec.CommandID)); err != nil {
		return err
	}
	if err := writeLenPrefixed(w, []byte(rec.Name)); err != nil {
		return err
	}
	return writeLenPrefixed(w, rec.Payload)
}

// decodeRecordData deserializes a record body from a reader.
func decodeRecordData(r *bytes.Reader) (*core.Record, error) {
	rec := &core.Record{}
	if err := binary.Read(r, binary.LittleEndian, &rec.SeqNum); err != nil {
		return nil, fmt.Errorf("failed to read sequence number: %w", err)
	}

	id, err := readLenPrefixed(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read command id: %w", err)
	}
	rec.CommandID = string(id)

	name, err := readLenPrefixed(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read operation name: %w", err)
	}
	rec.Name = string(name)

	payload, err := readLenPrefixed(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	rec.Payload = payload
	return rec, nil
}

func writeLenPrefixed(w io.Writer, data []byte) error {
	var lenBuf [binary.MaxVarintLen32]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(data)))
	if _, err := w.Write(lenBuf[:n]); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	_, err := w.Write(data)
	return err
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	length, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
