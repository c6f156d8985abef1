package conversation

import (
	"sync"

	"github.com/google/uuid"
)

// Store holds live conversations for the process. Conversations have no
// persistence of their own: they are dropped once a trip is created or the
// session is abandoned.
type Store struct {
	mu    sync.RWMutex
	convs map[uuid.UUID]*Conversation
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{convs: make(map[uuid.UUID]*Conversation)}
}

// Put registers a conversation under its ID.
func (s *Store) Put(c *Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[c.ID] = c
}

// Get returns the conversation with the given ID, or nil.
func (s *Store) Get(id uuid.UUID) *Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.convs[id]
}

// Delete drops the conversation with the given ID.
func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, id)
}
