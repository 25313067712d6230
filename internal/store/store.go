// Package store persists whole JSON collections under string keys. Every
// mutation goes through Backend.Update, the one place where concurrent
// read-modify-write cycles meet.
package store

import (
	"context"
	"errors"
	"sync"
)

// ErrSkipWrite may be returned by an UpdateFunc to finish the update without
// writing anything back.
var ErrSkipWrite = errors.New("store: skip write")

// UpdateFunc receives the current document (nil when the key has never been
// written) and returns its replacement. Backends with optimistic locking may
// call it more than once, so it must not keep state between calls.
type UpdateFunc func(current []byte) ([]byte, error)

// Backend is a keyed document store.
type Backend interface {
	// Read returns nil, nil when the key does not exist.
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Close() error
}

// keyedMutex hands out one mutex per key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
