package threadcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// ErrMiss is returned by Storage.Get when nothing is stored under the key.
var ErrMiss = errors.New("threadcache: miss")

// Storage is a flat key/value store. Writes replace the whole value.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// FileStorage keeps one file per key under Dir.
type FileStorage struct {
	Dir string
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func (f FileStorage) path(key string) string {
	return filepath.Join(f.Dir, unsafeKeyChars.ReplaceAllString(key, "_")+".json")
}

func (f FileStorage) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrMiss
	}
	return b, err
}

// Set writes through a temp file and rename so readers never see a torn value.
func (f FileStorage) Set(ctx context.Context, key string, value []byte) error {
	if err := os.MkdirAll(f.Dir, 0o700); err != nil {
		return fmt.Errorf("threadcache: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(f.Dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path(key))
}

type MemoryStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (m *MemoryStorage) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return nil, ErrMiss
	}
	return append([]byte(nil), b...), nil
}

func (m *MemoryStorage) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}
