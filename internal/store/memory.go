package store

import (
	"context"
	"errors"
	"sync"
)

// MemoryBackend keeps documents in process memory. Used by tests and by
// STORAGE_TYPE=memory for throwaway runs.
type MemoryBackend struct {
	mu   sync.RWMutex
	docs map[string][]byte
	keys keyedMutex
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string][]byte)}
}

func (m *MemoryBackend) Read(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), doc...), nil
}

func (m *MemoryBackend) Write(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	m.docs[key] = append([]byte(nil), data...)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Update(ctx context.Context, key string, fn UpdateFunc) error {
	unlock := m.keys.lock(key)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	current, _ := m.Read(ctx, key)
	next, err := fn(current)
	if errors.Is(err, ErrSkipWrite) {
		return nil
	}
	if err != nil {
		return err
	}
	return m.Write(ctx, key, next)
}

func (m *MemoryBackend) Close() error { return nil }
