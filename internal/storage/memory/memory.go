// Package memory is a volatile backend used for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"totalx/internal/core"
	"totalx/internal/storage"
)

type Store struct {
	mu     sync.Mutex
	nextID int64
	logs   map[core.StoreKey][]core.Movement
	admins []core.Identity
}

var _ storage.Repository = (*Store)(nil)

func New() *Store {
	return &Store{logs: make(map[core.StoreKey][]core.Movement)}
}

// Append stores the movement and assigns a monotonically increasing ID.
func (s *Store) Append(_ context.Context, key core.StoreKey, m core.Movement) (core.Movement, error) {
	if err := m.Validate(); err != nil {
		return core.Movement{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.ID = s.nextID
	s.logs[key] = append(s.logs[key], m)
	return m, nil
}

func (s *Store) ReadAll(_ context.Context, key core.StoreKey) ([]core.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Movement{}, s.logs[key]...), nil
}

func (s *Store) UndoLast(_ context.Context, key core.StoreKey) (core.Movement, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.logs[key]
	if len(log) == 0 {
		return core.Movement{}, false, nil
	}
	last := log[len(log)-1]
	s.logs[key] = log[:len(log)-1]
	return last, true, nil
}

func (s *Store) Reset(_ context.Context, key core.StoreKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, key)
	return nil
}

func (s *Store) Keys(_ context.Context) ([]core.StoreKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]core.StoreKey, 0, len(s.logs))
	for k, log := range s.logs {
		if len(log) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

func (s *Store) ListAdmins(_ context.Context) ([]core.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Identity(nil), s.admins...), nil
}

func (s *Store) AddAdmin(_ context.Context, id, _ core.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.admins {
		if a == id {
			return nil
		}
	}
	s.admins = append(s.admins, id)
	return nil
}

func (s *Store) RemoveAdmin(_ context.Context, id core.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.admins[:0]
	for _, a := range s.admins {
		if a != id {
			out = append(out, a)
		}
	}
	s.admins = out
	return nil
}

func (s *Store) Close() error { return nil }
