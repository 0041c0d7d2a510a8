package state

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryBackend keeps payloads in process memory. TTLs are accepted and ignored.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	payload, ok := b.data[key]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return append([]byte(nil), payload...), nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, payload []byte, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = append([]byte(nil), payload...)
	return nil
}

func (b *MemoryBackend) Del(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}

func (b *MemoryBackend) Expire(_ context.Context, key string, _ time.Duration) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, ok := b.data[key]; !ok {
		return ErrSessionNotFound
	}
	return nil
}

func (b *MemoryBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *MemoryBackend) Ping(context.Context) error {
	return nil
}

// NewMemoryStore is a SessionStore over a fresh MemoryBackend.
func NewMemoryStore(opts ...StoreOption) *SessionStore {
	return NewSessionStore(NewMemoryBackend(), opts...)
}
