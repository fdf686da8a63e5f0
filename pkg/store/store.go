// Package store persists conversations, rooms and resolved matching examples
// behind a small interface the matcher and API consume. Backends: SQLite and
// an in-memory implementation for tests and single-process deployments.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/supportflow/conversation-router/pkg/config"
	"github.com/supportflow/conversation-router/pkg/conversation"
	"github.com/supportflow/conversation-router/pkg/matcher"
)

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = errors.New("not found")

// Store is the full persistence surface: the matcher's read interface plus
// the writes callers apply after a result is fully produced.
type Store interface {
	matcher.ConversationStore

	// CreateConversation inserts a new conversation.
	CreateConversation(ctx context.Context, conv conversation.Conversation) error

	// UpdateConversation replaces a conversation's stored state atomically.
	UpdateConversation(ctx context.Context, conv conversation.Conversation) error

	// GetConversation returns a conversation by id.
	// Returns ErrNotFound when absent.
	GetConversation(ctx context.Context, id string) (*conversation.Conversation, error)

	// SaveRoom inserts or replaces a room.
	SaveRoom(ctx context.Context, room conversation.Room) error

	// AddResolvedExample records a confirmed match for few-shot reuse.
	AddResolvedExample(ctx context.Context, roomID string, example matcher.ResolvedExample) error

	// Close releases backend resources.
	Close() error
}

// New creates a store from router configuration.
func New(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "memory", "":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q (supported: sqlite, memory)", cfg.Driver)
	}
}
