package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Category names a directory of observations under a FileStore root.
type Category string

const (
	// CategoryAlive holds heartbeat files refreshed while a worker runs.
	CategoryAlive Category = "alive"
	// CategoryReady holds markers written once when a worker has started.
	CategoryReady Category = "ready"
)

// FileStore is a local Store keeping one file per key. The file's
// modification time is the observation; entries never expire on their own.
type FileStore struct {
	dir string
}

// NewFileStore creates (if needed) root/category and returns a store over it.
// An empty category stores files directly under root.
func NewFileStore(root string, category Category) (*FileStore, error) {
	dir := root
	if category != "" {
		dir = filepath.Join(root, string(category))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, unavailable("mkdir", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory backing the store.
func (s *FileStore) Dir() string {
	return s.dir
}

// Set touches the file for key and stamps it with at.
func (s *FileStore) Set(ctx context.Context, key string, at time.Time) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return unavailable("set", key, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return unavailable("set", key, err)
	}
	if err := f.Close(); err != nil {
		return unavailable("set", key, err)
	}
	if err := os.Chtimes(path, at, at); err != nil {
		return unavailable("set", key, err)
	}
	return nil
}

// Get returns the modification time of the file for key.
func (s *FileStore) Get(ctx context.Context, key string) (time.Time, bool, error) {
	path, err := s.path(key)
	if err != nil {
		return time.Time{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, unavailable("get", key, err)
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, unavailable("get", key, err)
	}
	return info.ModTime(), true, nil
}

// Delete removes the file for key. Idempotent.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return unavailable("delete", key, err)
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return unavailable("delete", key, err)
	}
	return nil
}

// Keys lists the regular files in the store directory.
func (s *FileStore) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("keys", "", err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, unavailable("keys", "", err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		keys = append(keys, e.Name())
	}
	sort.Strings(keys)
	return keys, nil
}

// path maps key to a file name inside the store directory. Keys that could
// escape the directory are rejected.
func (s *FileStore) path(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	if key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.dir, key), nil
}

var _ Store = (*FileStore)(nil)
