package ledger

import (
	"sync"

	"totalx/internal/core"
	"totalx/internal/storage"
)

// Stores owns one Handle per StoreKey. Handles are created on first use and
// never removed, so a key always maps to the same lock.
type Stores struct {
	backend storage.MovementStore

	mu      sync.Mutex
	handles map[core.StoreKey]*Handle
}

func NewStores(backend storage.MovementStore) *Stores {
	return &Stores{
		backend: backend,
		handles: make(map[core.StoreKey]*Handle),
	}
}

// Open returns the handle for key. The zero key is a programming error and
// is reported as core.ErrInvalidStoreKey.
func (s *Stores) Open(key core.StoreKey) (*Handle, error) {
	if key.IsZero() {
		return nil, core.ErrInvalidStoreKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[key]
	if !ok {
		h = &Handle{key: key, backend: s.backend}
		s.handles[key] = h
	}
	return h, nil
}

// Backend exposes the underlying store for cross-key queries.
func (s *Stores) Backend() storage.MovementStore {
	return s.backend
}

// Handle serializes every operation on one store.
type Handle struct {
	key     core.StoreKey
	backend storage.MovementStore
	mu      sync.Mutex
}

func (h *Handle) Key() core.StoreKey { return h.key }

// Lock acquires the store's mutex. Callers must Unlock.
func (h *Handle) Lock()   { h.mu.Lock() }
func (h *Handle) Unlock() { h.mu.Unlock() }
