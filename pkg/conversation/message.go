package conversation

import (
	"time"

	"github.com/supportflow/conversation-router/pkg/redaction"
)

// SenderKind classifies who posted a message.
type SenderKind int

const (
	// SenderContact is an external party asking for support.
	SenderContact SenderKind = iota
	// SenderResponder is an agent responding on behalf of the organization.
	SenderResponder
	// SenderBot is an automated integration account.
	SenderBot
	// SenderSystem is the platform itself (joins, topic changes, etc).
	SenderSystem
)

// String returns the sender kind's config name.
func (k SenderKind) String() string {
	switch k {
	case SenderContact:
		return "contact"
	case SenderResponder:
		return "responder"
	case SenderBot:
		return "bot"
	case SenderSystem:
		return "system"
	default:
		return "unknown"
	}
}

// ParseSenderKind maps a config name to a SenderKind.
func ParseSenderKind(name string) (SenderKind, bool) {
	switch name {
	case "contact":
		return SenderContact, true
	case "responder":
		return SenderResponder, true
	case "bot":
		return SenderBot, true
	case "system":
		return SenderSystem, true
	default:
		return SenderContact, false
	}
}

// Sender identifies who posted an incoming message.
type Sender struct {
	ID   string
	Name string
	Kind SenderKind
}

// IncomingMessage is a normalized chat message delivered by the ingestion
// pipeline. Callers feed messages for a single room in increasing timestamp
// order.
type IncomingMessage struct {
	ID        string
	RoomID    string
	Text      string
	Sender    Sender
	Timestamp time.Time

	// ThreadID is the id of the thread root this message replies to.
	// Empty means the message is top-level.
	ThreadID string

	// SensitiveSpans are PII detections for Text, supplied by the external
	// detection collaborator. Nil means detection did not run.
	SensitiveSpans []redaction.Span

	// Hints are externally-supplied classification hints, passed through to
	// the candidate log verbatim.
	Hints []string
}

// InThread reports whether the message is a reply within an existing thread.
func (m *IncomingMessage) InThread() bool { return m.ThreadID != "" }
