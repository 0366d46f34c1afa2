// =============================
// File: internal/ledger/kv.go
// =============================
package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var (
	ErrNotFound = errors.New("key not found")
	ErrClosed   = errors.New("ledger is closed")
)

// Write is one operation of an atomic batch. A nil Value deletes the key.
type Write struct {
	Key   string
	Value []byte
}

// KV is the record store the engine persists launch state into.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Apply writes all operations atomically.
	Apply(ctx context.Context, writes []Write) error
	// Scan calls fn for every key with the given prefix in key order.
	Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error
	Close() error
}

// MemoryKV - хранилище в памяти, используется в тестах и симуляторе.
type MemoryKV struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryKV) Apply(_ context.Context, writes []Write) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	for _, w := range writes {
		if w.Value == nil {
			delete(m.data, w.Key)
			continue
		}
		m.data[w.Key] = append([]byte(nil), w.Value...)
	}
	return nil
}

func (m *MemoryKV) Scan(_ context.Context, prefix string, fn func(string, []byte) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	keys := make([]string, 0)
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = append([]byte(nil), m.data[k]...)
	}
	m.mu.RUnlock()

	for i, k := range keys {
		if err := fn(k, values[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryKV) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
