package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileSystemStorage stores each named blob as a file inside a directory.
type FileSystemStorage struct {
	dir string
}

var _ Storage = (*FileSystemStorage)(nil)

// NewFileSystemStorage creates the directory if needed and returns a store
// rooted at it.
func NewFileSystemStorage(dir string) (*FileSystemStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}
	return &FileSystemStorage{dir: dir}, nil
}

type fsFile struct {
	*os.File
}

func (f *fsFile) Size() (int64, error) {
	stat, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

func (s *FileSystemStorage) Create(name string) (File, error) {
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}
	return &fsFile{File: f}, nil
}

func (s *FileSystemStorage) Open(name string) (File, error) {
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_RDONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &fsFile{File: f}, nil
}

func (s *FileSystemStorage) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory %s: %w", s.dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (s *FileSystemStorage) Remove(name string) error {
	return os.Remove(filepath.Join(s.dir, name))
}

func (s *FileSystemStorage) Path() string {
	return s.dir
}
