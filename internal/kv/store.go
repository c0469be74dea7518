package kv

import (
	"sort"
	"sync"
)

// Store abstracts the persistent key-value store that backs preferences.
// Implementations must make each single-key operation atomic; nothing is
// promised across keys.
type Store interface {
	Get(key string) (val Value, ok bool, err error)
	Put(key string, val Value) error
	Delete(key string) error
	All() (map[string]Value, error)
	Clear() error
}

// Keys returns the keys of m in ascending order.
func Keys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MemoryStore is an in-process Store. It is used by tests and as the
// backend for the "memory" storage driver.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Value
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Value)}
}

func (m *MemoryStore) Get(key string) (Value, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return cloneValue(v), ok, nil
}

func (m *MemoryStore) Put(key string, val Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = cloneValue(val)
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) All() (map[string]Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Value, len(m.data))
	for k, v := range m.data {
		out[k] = cloneValue(v)
	}
	return out, nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]Value)
	return nil
}

func cloneValue(v Value) Value {
	if v.Set != nil {
		v.Set = append([]string(nil), v.Set...)
	}
	return v
}
