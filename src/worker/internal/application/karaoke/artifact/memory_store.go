package artifact

import (
	"context"
	"os"
	"sync"

	"github.com/veedubyou/karaoke-worker/src/shared/lib/errors/mark"
)

var _ Store = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		artifacts: map[string]string{},
	}
}

// MemoryStore tracks presence in a map instead of on disk. Producers still
// write real files, the map records where they landed.
type MemoryStore struct {
	mutex     sync.RWMutex
	artifacts map[string]string
	PutCount  int
}

// Seed marks key as already produced at path
func (m *MemoryStore) Seed(key string, path string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.artifacts[key] = path
}

func (m *MemoryStore) Has(key string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, ok := m.artifacts[key]
	return ok
}

func (m *MemoryStore) Get(key string) (string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	path, ok := m.artifacts[key]
	if !ok {
		return "", mark.Message(NotFound, "No artifact at "+key)
	}

	return path, nil
}

func (m *MemoryStore) Put(ctx context.Context, key string, producer Producer) (string, error) {
	producedPath, err := producer(ctx, key)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(producedPath)
	if err != nil {
		return "", mark.Wrap(err, NotFound, "Producer reported a file that isn't there")
	}

	if info.Size() == 0 {
		return "", mark.Message(EmptyFile, "Producer wrote an empty file for "+key)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.artifacts[key] = producedPath
	m.PutCount++
	return producedPath, nil
}
