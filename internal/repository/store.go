package repository

import (
	"context"
	"errors"
	"sync"
)

// Keys of the durable terminal state.
const (
	KeyDeviceID    = "device_id"
	KeyQueue       = "offline_queue"
	KeyDeadLetters = "offline_dead_letters"
)

// ErrNotFound is returned by a KVStore when the key was never written.
var ErrNotFound = errors.New("key not found")

// KVStore is the durable local storage the terminal state lives in.
// Implementations: infra.BadgerStore, infra.SQLiteStore, infra.RedisStore, MemoryStore.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// MemoryStore is a non-durable KVStore used in tests and with STORE_DRIVER=memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = v
	return nil
}

func (s *MemoryStore) Close() error { return nil }
