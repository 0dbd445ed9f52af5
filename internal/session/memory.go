package session

import "sync"

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]Turn
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{turns: make(map[string][]Turn)}
}

func (s *MemoryStore) Append(sessionID string, turn Turn) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[sessionID] = append(s.turns[sessionID], turn)
	return nil
}

func (s *MemoryStore) Get(sessionID string) ([]Turn, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Turn(nil), s.turns[sessionID]...), nil
}

func (s *MemoryStore) Close() error { return nil }
