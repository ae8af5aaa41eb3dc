package prefs

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// WebStorage is the subset of the browser Storage API the local-storage
// backend needs.
type WebStorage interface {
	GetItem(key string) (value string, ok bool, err error)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// LocalStorageBackend stores each document as one item of a [WebStorage].
// Item keys have the form "prefs_<namespace>_<file>" with '/' and '.' in
// the namespace replaced by '_'. A single SetItem replaces a document, so
// writes are atomic.
type LocalStorageBackend struct {
	storage WebStorage
}

// NewLocalStorageBackend returns a backend over storage.
func NewLocalStorageBackend(storage WebStorage) *LocalStorageBackend {
	if storage == nil {
		panic("prefs: nil WebStorage")
	}

	return &LocalStorageBackend{storage: storage}
}

var storageKeyReplacer = strings.NewReplacer("/", "_", ".", "_")

// Locate implements [Backend]. The location is the item key.
func (b *LocalStorageBackend) Locate(namespace, file string) (string, error) {
	if strings.TrimSpace(namespace) == "" {
		return "", fmt.Errorf("%w: empty namespace", ErrDirectoryResolution)
	}

	return "prefs_" + storageKeyReplacer.Replace(namespace) + "_" + file, nil
}

// Read implements [Backend].
func (b *LocalStorageBackend) Read(location string) ([]byte, bool, error) {
	value, ok, err := b.storage.GetItem(location)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrFileRead, err)
	}

	if !ok {
		return nil, false, nil
	}

	return []byte(value), true, nil
}

// WriteAtomic implements [Backend].
func (b *LocalStorageBackend) WriteAtomic(location string, data []byte) error {
	return b.storage.SetItem(location, string(data))
}

// Ephemeral implements [Backend].
func (*LocalStorageBackend) Ephemeral(file string) (string, error) {
	return "prefs_ephemeral_" + strings.ReplaceAll(uuid.NewString(), "-", "") + "_" + file, nil
}

// Discard implements [Backend].
func (b *LocalStorageBackend) Discard(location string) error {
	return b.storage.RemoveItem(location)
}

// Describe implements [Backend].
func (*LocalStorageBackend) Describe(location string) string {
	return "localStorage::" + location
}

// MapStorage is an in-memory [WebStorage].
type MapStorage struct {
	mu    sync.Mutex
	items map[string]string
}

// NewMapStorage returns an empty MapStorage.
func NewMapStorage() *MapStorage {
	return &MapStorage{items: make(map[string]string)}
}

func (s *MapStorage) GetItem(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items[key]

	return v, ok, nil
}

func (s *MapStorage) SetItem(key, value string) error {
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()

	return nil
}

func (s *MapStorage) RemoveItem(key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()

	return nil
}

// Keys returns the stored keys in no particular order.
func (s *MapStorage) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}

	return keys
}
