// Package kv provides the small string key-value store that persists user
// preferences, the daily usage counter and the daily quiz status.
//
// Two implementations are provided: Memory, a process-local map, and
// SQLStore, a SQLite table accessed through GORM. Namespaced scopes any
// store to a single session so one process can serve many users.
package kv

import (
	"context"
	"encoding/json"
	"sync"

	"gorm.io/gorm"

	"github.com/tbourn/bibleai/internal/repo"
)

// Store is a string key-value store. Implementations must be safe for
// concurrent use. Get reports ok=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Memory is an in-memory Store.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// SQLStore persists entries in the kv_entries table.
type SQLStore struct {
	DB *gorm.DB
}

func (s SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	return repo.GetKV(ctx, s.DB, key)
}

func (s SQLStore) Set(ctx context.Context, key, value string) error {
	return repo.PutKV(ctx, s.DB, key, value)
}

func (s SQLStore) Delete(ctx context.Context, key string) error {
	return repo.DeleteKV(ctx, s.DB, key)
}

// Namespaced returns a view of store where every key is prefixed with
// "<namespace>:".
func Namespaced(store Store, namespace string) Store {
	return namespaced{inner: store, prefix: namespace + ":"}
}

type namespaced struct {
	inner  Store
	prefix string
}

func (n namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n namespaced) Set(ctx context.Context, key, value string) error {
	return n.inner.Set(ctx, n.prefix+key, value)
}

func (n namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.prefix+key)
}

// GetJSON decodes the JSON value stored under key into v. ok is false when
// the key is absent; a present but undecodable value is returned as an error.
func GetJSON(ctx context.Context, s Store, key string, v any) (ok bool, err error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, err
	}
	return true, nil
}

// SetJSON stores v under key as JSON.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, string(b))
}
