package storage

import (
	"os"
	"path/filepath"
)

// FileKV stores each key as a JSON file inside a directory. This is the
// default backend.
type FileKV struct {
	dir string
}

// NewFileKV creates the backing directory if needed.
func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileKV{dir: dir}, nil
}

func (s *FileKV) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Get reads a key's value from disk.
func (s *FileKV) Get(key string) (string, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

// Set writes a key's value to disk.
func (s *FileKV) Set(key, value string) error {
	return os.WriteFile(s.path(key), []byte(value), 0644)
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *FileKV) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Close is a no-op for the file backend.
func (s *FileKV) Close() error {
	return nil
}
