package storage

import (
	"io"
)

// Type selects which Storage implementation backs the engine.
type Type string

const (
	TypeFileSystem Type = "filesystem"
	TypeNone       Type = "none"
	TypeCustom     Type = "custom"
)

// File is a single named blob opened for appending or reading.
type File interface {
	io.Reader
	io.Writer
	io.Closer

	// Sync flushes the file to stable storage.
	Sync() error
	// Size returns the current size of the file in bytes.
	Size() (int64, error)
}

// Storage is the collaborator boundary the journal and snapshot manager
// write through. The on-disk byte layout of each backend is its own concern;
// the engine only relies on named, ordered, append-only blobs.
type Storage interface {
	// Create creates (or truncates) a named file for writing.
	Create(name string) (File, error)
	// Open opens an existing named file for reading.
	Open(name string) (File, error)
	// List returns the names of all files in the store, in no particular order.
	List() ([]string, error)
	// Remove deletes a named file.
	Remove(name string) error
	// Path returns a human-readable location of the store, for logging.
	Path() string
}
