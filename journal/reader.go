package journal

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/INLOpen/prevaldb/core"
	"github.com/INLOpen/prevaldb/storage"
)

// ReadAll recovers every record from the store without opening the journal
// for appending: no segment is created, sealed or rewritten, so it is safe
// against a directory another process is writing to. Intended for read-only
// inspection and offline tooling.
func ReadAll(store storage.Storage, logger *slog.Logger) ([]core.Record, error) {
	if store == nil {
		return nil, fmt.Errorf("journal requires a storage backend")
	}
	if logger == nil {
		logger = slog.Default().With("component", "CommandJournal")
	} else {
		logger = logger.With("component", "CommandJournal")
	}

	indexes, err := listSegmentIndexes(store)
	if err != nil {
		return nil, err
	}

	var all []core.Record
	for _, index := range indexes {
		records, err := recoverFromSegment(store, formatSegmentFileName(index), logger)
		if len(records) > 0 {
			all = append(all, records...)
		}
		if err != nil && err != io.EOF {
			return all, err
		}
	}
	return all, nil
}

// listSegmentIndexes returns the indexes of all segment files in the store,
// in ascending order.
func listSegmentIndexes(store storage.Storage) ([]uint64, error) {
	names, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list journal store %s: %w", store.Path(), err)
	}

	indexes := make([]uint64, 0, len(names))
	for _, name := range names {
		if index, err := parseSegmentFileName(name); err == nil {
			indexes = append(indexes, index)
		}
	}
	sort.Slice(indexes, func(i, k int) bool {
		return indexes[i] < indexes[k]
	})
	return indexes, nil
}
