package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// ConversationStore owns per-conversation history. Implementations must be
// safe for concurrent use; turns are immutable once appended.
type ConversationStore interface {
	// AddTurn appends a turn to the conversation history, evicting the oldest
	// turns first once the configured cap is exceeded.
	AddTurn(ctx context.Context, conversationID string, turn *schema.Message) error

	// History retrieves the conversation history. Callers receive their own
	// copy of the turn slice and must not rely on mutating it.
	History(ctx context.Context, conversationID string) (*ConversationHistory, error)

	// Clear removes all history for a conversation.
	Clear(ctx context.Context, conversationID string) error

	// TurnCount returns the number of turns stored for a conversation.
	TurnCount(ctx context.Context, conversationID string) (int, error)
}

// ConversationHistory represents loaded conversation data with metadata.
type ConversationHistory struct {
	ConversationID string
	Turns          []*schema.Message
}
