// Package matcher decides which existing conversation, if any, an incoming
// chat message belongs to. Thread replies match deterministically; ambiguous
// top-level messages are classified by an external language model over a
// bounded candidate set, with all text redacted first.
package matcher

import (
	"context"

	"github.com/supportflow/conversation-router/pkg/conversation"
	"github.com/supportflow/conversation-router/pkg/redaction"
)

// ConversationStore supplies the lookups matching needs. Implementations must
// be safe for concurrent use; the candidate set is read-mostly and fetched
// fresh per operation.
type ConversationStore interface {
	// ConversationByThreadRoot returns the conversation whose first message
	// started the given thread, or nil when no such conversation exists.
	ConversationByThreadRoot(ctx context.Context, roomID, threadRootID string) (*conversation.Conversation, error)

	// RecentActiveConversations returns up to limit open or recently-active
	// conversations in the room, most recently active first.
	RecentActiveConversations(ctx context.Context, roomID string, limit int) ([]conversation.Conversation, error)

	// Room returns the room's configuration, or nil when unknown.
	Room(ctx context.Context, roomID string) (*conversation.Room, error)

	// ResolvedExamples returns up to limit prior resolved matches in the
	// room, for use as few-shot examples.
	ResolvedExamples(ctx context.Context, roomID string, limit int) ([]ResolvedExample, error)
}

// FeatureGate exposes per-organization feature configuration.
type FeatureGate interface {
	// AIMatchingEnabled reports whether AI-assisted matching is enabled for
	// the organization.
	AIMatchingEnabled(ctx context.Context, orgID string) (bool, error)
}

// ResolvedExample is a prior matching decision a human confirmed, replayed as
// a few-shot example. Spans apply to MessageText.
type ResolvedExample struct {
	// CandidateLog is the candidate summary shown at the time.
	CandidateLog string
	// MessageText is the message that was being matched.
	MessageText string
	// Spans are PII detections for MessageText.
	Spans []redaction.Span
	// Answer is the confirmed [Thought]...[/Thought][Action]...[/Action]
	// response.
	Answer string
}

// Role tags a prompt turn.
type Role int

const (
	// RoleSystem is the fixed instruction turn.
	RoleSystem Role = iota
	// RoleExampleUser is a few-shot example input.
	RoleExampleUser
	// RoleExampleAssistant is a few-shot example answer.
	RoleExampleAssistant
	// RoleUser is the actual classification request.
	RoleUser
)

// Turn is one role-tagged text turn of the classification prompt.
type Turn struct {
	Role    Role
	Content string
}

// ChatRequest is a classification request for the external model.
type ChatRequest struct {
	Model       string
	Temperature float64
	Turns       []Turn
}

// TokenUsage is the token accounting reported by the model.
type TokenUsage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// ChatResponse is the raw completion plus usage counts.
type ChatResponse struct {
	Content string
	Usage   TokenUsage
}

// ChatClient invokes the external classification model. Implementations must
// honor context cancellation; callers apply the timeout.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}
