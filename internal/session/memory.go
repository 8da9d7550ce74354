package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/natalis/natalis/internal/chat"
)

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]chat.Session{}}
}

func (m *MemoryStore) Create(context.Context) (chat.Session, error) {
	s := chat.NewSession()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return copySession(s)
}

func (m *MemoryStore) Get(_ context.Context, id string) (chat.Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return chat.Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return copySession(s)
}

func (m *MemoryStore) Save(_ context.Context, s chat.Session) error {
	stored, err := copySession(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.sessions[s.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, s.ID)
	}
	if err := checkExtends(existing.History.Turns(), stored.History.Turns()); err != nil {
		return fmt.Errorf("session %s: %w", s.ID, err)
	}
	m.sessions[s.ID] = stored
	return nil
}

// checkExtends reports ErrConflict unless next starts with every turn of
// prev, in order.
func checkExtends(prev, next []chat.Turn) error {
	if len(next) < len(prev) {
		return fmt.Errorf("%w: history shrank from %d to %d turns", ErrConflict, len(prev), len(next))
	}
	for i := range prev {
		if prev[i].ID != next[i].ID {
			return fmt.Errorf("%w: position %d holds turn %s, not %s", ErrConflict, i, prev[i].ID, next[i].ID)
		}
	}
	return nil
}

// copySession detaches the history so callers never share a backing array.
func copySession(s chat.Session) (chat.Session, error) {
	history, err := chat.RestoreHistory(s.History.Turns())
	if err != nil {
		return chat.Session{}, err
	}
	s.History = history
	return s, nil
}
