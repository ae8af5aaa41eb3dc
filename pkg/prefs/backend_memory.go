package prefs

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryBackend keeps documents in a map. It counts writes per location,
// which makes it the backend of choice for asserting write behavior.
type MemoryBackend struct {
	mu     sync.Mutex
	docs   map[string][]byte
	writes map[string]int
	hook   func(location string, data []byte) error
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		docs:   make(map[string][]byte),
		writes: make(map[string]int),
	}
}

// Locate implements [Backend]. Locations have the form "mem://ns/file".
func (m *MemoryBackend) Locate(namespace, file string) (string, error) {
	if strings.TrimSpace(namespace) == "" {
		return "", fmt.Errorf("%w: empty namespace", ErrDirectoryResolution)
	}

	return "mem://" + namespace + "/" + file, nil
}

// Read implements [Backend].
func (m *MemoryBackend) Read(location string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.docs[location]
	if !ok {
		return nil, false, nil
	}

	return slices.Clone(data), true, nil
}

// WriteAtomic implements [Backend]. A failing write hook leaves the stored
// document unchanged and is not counted.
func (m *MemoryBackend) WriteAtomic(location string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hook != nil {
		err := m.hook(location, data)
		if err != nil {
			return err
		}
	}

	m.docs[location] = slices.Clone(data)
	m.writes[location]++

	return nil
}

// Ephemeral implements [Backend].
func (m *MemoryBackend) Ephemeral(file string) (string, error) {
	return "mem://ephemeral-" + uuid.NewString() + "/" + file, nil
}

// Discard implements [Backend].
func (m *MemoryBackend) Discard(location string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.docs, location)
	delete(m.writes, location)

	return nil
}

// Describe implements [Backend].
func (*MemoryBackend) Describe(location string) string {
	return location
}

// SetWriteHook installs fn to run before every write while the backend lock
// is held. A non-nil error fails the write. Pass nil to remove the hook.
func (m *MemoryBackend) SetWriteHook(fn func(location string, data []byte) error) {
	m.mu.Lock()
	m.hook = fn
	m.mu.Unlock()
}

// Writes returns the number of successful writes to location.
func (m *MemoryBackend) Writes(location string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.writes[location]
}

// Document returns a copy of the document stored at location.
func (m *MemoryBackend) Document(location string) ([]byte, bool) {
	data, ok, _ := m.Read(location)

	return data, ok
}

// Put stores data at location without counting a write.
func (m *MemoryBackend) Put(location string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[location] = slices.Clone(data)
}
