package api

import (
	"sync"
	"time"

	"github.com/narumiruna/lazyopenai"
)

// Conversation is one live agent held by the server.
type Conversation struct {
	ID        string
	Agent     *lazyopenai.Agent
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ConversationStore struct {
	conversations map[string]*Conversation
	mu            sync.RWMutex
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		conversations: make(map[string]*Conversation),
	}
}

// Add stores a under its own id.
func (s *ConversationStore) Add(a *lazyopenai.Agent) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	conv := &Conversation{
		ID:        a.ID(),
		Agent:     a,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[conv.ID] = conv
	return conv
}

func (s *ConversationStore) Get(id string) *Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.conversations[id]
}

// Touch marks the conversation as used now.
func (s *ConversationStore) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.conversations[id]; ok {
		conv.UpdatedAt = time.Now()
	}
}

// Delete removes id and reports whether it existed.
func (s *ConversationStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.conversations[id]
	delete(s.conversations, id)
	return ok
}

func (s *ConversationStore) List() []*Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		list = append(list, conv)
	}
	return list
}

// Cleanup drops conversations idle for longer than maxAge and returns how many went.
func (s *ConversationStore) Cleanup(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	n := 0
	for id, conv := range s.conversations {
		if conv.UpdatedAt.Before(cutoff) {
			delete(s.conversations, id)
			n++
		}
	}
	return n
}
