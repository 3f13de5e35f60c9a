package storage

import (
	"context"
	"sync"

	"collection-service/internal/entity"
)

// FileStore is a flat object store addressed by name.
type FileStore interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
	Get(ctx context.Context, name string) ([]byte, error)
}

// MemoryStore keeps objects in process. Used when no bucket is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *MemoryStore) Put(_ context.Context, name string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = append([]byte(nil), data...)
	m.types[name] = contentType
	return nil
}

func (m *MemoryStore) Get(_ context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[name]
	if !ok {
		return nil, entity.NewFieldError(entity.ErrNotFound, "object", name)
	}
	return append([]byte(nil), b...), nil
}

// ContentType returns what the object was stored with, "" when absent.
func (m *MemoryStore) ContentType(name string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.types[name]
}
