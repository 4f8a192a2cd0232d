package journal

import (
	"github.com/INLOpen/prevaldb/core"
)

// WriterMode defines how appends reach the segment store.
type WriterMode string

const (
	// WriterSync blocks each append until the record is durably persisted.
	WriterSync WriterMode = "sync"
	// WriterAsync enqueues entries and returns before durability is
	// confirmed; a background worker drains the queue in enqueue order.
	WriterAsync WriterMode = "async"
)

// Interface defines the public API for the command journal.
type Interface interface {
	// Append persists a single command record and returns its position
	// (the record's sequence number). In async mode the record is queued
	// and durability is confirmed by a later Sync.
	Append(rec core.Record) (uint64, error)
	// Sync is the durability barrier. It flushes the journal to stable
	// storage and surfaces any failure captured by the async writer.
	Sync() error
	// Rotate manually seals the active segment and opens a new one.
	Rotate() error
	// Purge deletes segment files with an index less than or equal to the
	// given index. The active segment is never purged.
	Purge(upToIndex uint64) error
	// ActiveSegmentIndex returns the index of the current active segment.
	ActiveSegmentIndex() uint64
	Path() string
	Close() error
}
