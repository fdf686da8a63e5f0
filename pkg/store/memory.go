package store

import (
	"context"
	"sort"
	"sync"

	"github.com/supportflow/conversation-router/pkg/conversation"
	"github.com/supportflow/conversation-router/pkg/matcher"
)

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]conversation.Conversation
	rooms         map[string]conversation.Room
	examples      map[string][]matcher.ResolvedExample
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]conversation.Conversation),
		rooms:         make(map[string]conversation.Room),
		examples:      make(map[string][]matcher.ResolvedExample),
	}
}

// ConversationByThreadRoot returns the conversation started by the given
// thread root, or nil when no conversation claims it.
func (s *MemoryStore) ConversationByThreadRoot(_ context.Context, roomID, threadRootID string) (*conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conversations {
		if c.RoomID == roomID && c.ThreadRootID == threadRootID {
			out := c
			return &out, nil
		}
	}
	return nil, nil
}

// RecentActiveConversations returns non-terminal conversations in the room,
// most recently active first, up to limit.
func (s *MemoryStore) RecentActiveConversations(_ context.Context, roomID string, limit int) ([]conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []conversation.Conversation
	for _, c := range s.conversations {
		if c.RoomID == roomID && !c.State.Terminal() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessagePostedOn.After(out[j].LastMessagePostedOn)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Room returns the room's configuration, or nil when unknown.
func (s *MemoryStore) Room(_ context.Context, roomID string) (*conversation.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, nil
	}
	out := room
	return &out, nil
}

// ResolvedExamples returns up to limit prior resolved matches, newest first.
func (s *MemoryStore) ResolvedExamples(_ context.Context, roomID string, limit int) ([]matcher.ResolvedExample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	examples := s.examples[roomID]
	if limit > 0 && len(examples) > limit {
		examples = examples[len(examples)-limit:]
	}
	out := make([]matcher.ResolvedExample, 0, len(examples))
	for i := len(examples) - 1; i >= 0; i-- {
		out = append(out, examples[i])
	}
	return out, nil
}

// CreateConversation inserts a new conversation.
func (s *MemoryStore) CreateConversation(_ context.Context, conv conversation.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conv.ID.String()] = conv
	return nil
}

// UpdateConversation replaces a conversation's stored state.
func (s *MemoryStore) UpdateConversation(_ context.Context, conv conversation.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conv.ID.String()]; !ok {
		return ErrNotFound
	}
	s.conversations[conv.ID.String()] = conv
	return nil
}

// GetConversation returns a conversation by id.
func (s *MemoryStore) GetConversation(_ context.Context, id string) (*conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := c
	return &out, nil
}

// SaveRoom inserts or replaces a room.
func (s *MemoryStore) SaveRoom(_ context.Context, room conversation.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = room
	return nil
}

// AddResolvedExample records a confirmed match for few-shot reuse.
func (s *MemoryStore) AddResolvedExample(_ context.Context, roomID string, example matcher.ResolvedExample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.examples[roomID] = append(s.examples[roomID], example)
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }
