// Package cache coordina la caché de lectura: construcción de claves, tabla de
// invalidación por evento, coordinador best-effort y helper read-through.
// El backing store se inyecta (Redis en producción, memoria en tests).
package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Store capacidad mínima del backing store. Todas las operaciones pueden fallar;
// ningún fallo debe afectar la corrección del ledger.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete borra claves exactas; borrar una clave ausente no es error.
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPrefix borra todas las claves que empiezan con prefix y devuelve cuántas borró.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore implementación en memoria de Store (tests y despliegues sin Redis).
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memEntry
	now   func() time.Time
}

// NewMemoryStore construye un store vacío.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memEntry), now: time.Now}
}

// Get implementa Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		delete(s.items, key)
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set implementa Store. ttl <= 0 significa sin expiración.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.items[key] = e
	return nil
}

// Delete implementa Store.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.items, k)
	}
	return nil
}

// DeleteByPrefix implementa Store.
func (s *MemoryStore) DeleteByPrefix(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.items {
		if strings.HasPrefix(k, prefix) {
			delete(s.items, k)
			n++
		}
	}
	return n, nil
}

// Keys devuelve las claves presentes (no expiradas), útil en tests.
func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	keys := make([]string, 0, len(s.items))
	for k, e := range s.items {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}
