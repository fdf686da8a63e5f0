// Package audit stores the evidence attached to AI-assisted match decisions
// so they can be reviewed after the fact. It supports pluggable backends
// including memory and Redis.
package audit

import (
	"context"
	"time"
)

// MatchRecord is the auditable record of one matching operation.
type MatchRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	RoomID    string    `json:"room_id,omitempty"`
	MessageID string    `json:"message_id,omitempty"`

	// Outcome is "matched" or "no_match".
	Outcome string `json:"outcome"`
	// Reason is the structured no-match reason, empty on a match.
	Reason string `json:"reason,omitempty"`

	MatchedConversationID string `json:"matched_conversation_id,omitempty"`

	Model            string `json:"model,omitempty"`
	Prompt           string `json:"prompt,omitempty"`
	RawCompletion    string `json:"raw_completion,omitempty"`
	PromptTokens     int64  `json:"prompt_tokens,omitempty"`
	CompletionTokens int64  `json:"completion_tokens,omitempty"`
}

// Store defines the interface for persisting match records.
// Implementations must be thread-safe.
type Store interface {
	// StoreRecord stores a new match record.
	StoreRecord(ctx context.Context, record *MatchRecord) error

	// GetRecord retrieves a match record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetRecord(ctx context.Context, recordID string) (*MatchRecord, error)

	// ListRecords lists match records, newest first.
	ListRecords(ctx context.Context, opts ListOptions) ([]*MatchRecord, error)

	// Close releases resources held by the store.
	Close() error

	// IsEnabled returns whether the store is enabled.
	IsEnabled() bool

	// CheckConnection verifies the store connection is healthy.
	CheckConnection(ctx context.Context) error
}

// ListOptions contains pagination and filtering options.
type ListOptions struct {
	// Limit is the maximum number of items to return.
	Limit int

	// RoomID filters by room when non-empty.
	RoomID string

	// Outcome filters by outcome when non-empty.
	Outcome string
}

// DefaultListLimit bounds list responses when no limit is given.
const DefaultListLimit = 20

// DefaultTTL is the default retention for stored records (30 days).
const DefaultTTL = 30 * 24 * time.Hour
