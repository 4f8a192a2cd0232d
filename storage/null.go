package storage

import (
	"io"
	"os"
	"sync"
)

// NullStorage discards everything written to it. It backs transient engines
// where durability is externally guaranteed or not wanted, and is useful in
// tests and benchmarks.
type NullStorage struct {
	mu    sync.Mutex
	names map[string]struct{}
}

var _ Storage = (*NullStorage)(nil)

func NewNullStorage() *NullStorage {
	return &NullStorage{names: make(map[string]struct{})}
}

type nullFile struct {
	size int64
}

func (f *nullFile) Read(p []byte) (int, error) { return 0, io.EOF }
func (f *nullFile) Write(p []byte) (int, error) {
	f.size += int64(len(p))
	return len(p), nil
}
func (f *nullFile) Close() error         { return nil }
func (f *nullFile) Sync() error          { return nil }
func (f *nullFile) Size() (int64, error) { return f.size, nil }

func (s *NullStorage) Create(name string) (File, error) {
	s.mu.Lock()
	s.names[name] = struct{}{}
	s.mu.Unlock()
	return &nullFile{}, nil
}

func (s *NullStorage) Open(name string) (File, error) {
	return nil, os.ErrNotExist
}

func (s *NullStorage) List() ([]string, error) {
	// Discarded files are unreadable, so recovery must see an empty store.
	return nil, nil
}

func (s *NullStorage) Remove(name string) error {
	s.mu.Lock()
	delete(s.names, name)
	s.mu.Unlock()
	return nil
}

func (s *NullStorage) Path() string {
	return "null"
}
