package repo

import (
	"context"
	"sync"

	"github.com/carmelo-bot/server/internal/bot/model"
	"github.com/cloudwego/eino/schema"
)

// DefaultMaxTurns bounds a conversation's history when no cap is configured.
const DefaultMaxTurns = 20

// MemoryConversationStore keeps history in a process-wide map. It is
// constructed once at startup and injected into the dispatcher; nothing here
// survives a restart. Conversations are never evicted wholesale, only their
// oldest turns once the cap is exceeded.
type MemoryConversationStore struct {
	mu       sync.RWMutex
	turns    map[string][]*schema.Message
	maxTurns int
}

func NewMemoryConversationStore(maxTurns int) *MemoryConversationStore {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &MemoryConversationStore{
		turns:    make(map[string][]*schema.Message),
		maxTurns: maxTurns,
	}
}

func (s *MemoryConversationStore) AddTurn(ctx context.Context, conversationID string, turn *schema.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := append(s.turns[conversationID], turn)
	if len(cur) > s.maxTurns {
		// Sliding window: discard from the head until the cap holds. Copy so
		// evicted turns do not pin the backing array.
		trimmed := make([]*schema.Message, s.maxTurns)
		copy(trimmed, cur[len(cur)-s.maxTurns:])
		cur = trimmed
	}
	s.turns[conversationID] = cur
	return nil
}

func (s *MemoryConversationStore) History(ctx context.Context, conversationID string) (*model.ConversationHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.turns[conversationID]
	turns := make([]*schema.Message, len(stored))
	copy(turns, stored)

	return &model.ConversationHistory{ConversationID: conversationID, Turns: turns}, nil
}

func (s *MemoryConversationStore) Clear(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.turns, conversationID)
	return nil
}

func (s *MemoryConversationStore) TurnCount(ctx context.Context, conversationID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.turns[conversationID]), nil
}

var _ model.ConversationStore = (*MemoryConversationStore)(nil)
