package conversation

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a conversation.
type State int

const (
	// StateUnknown is an error sentinel. Valid transitions never produce it.
	StateUnknown State = iota
	// StateNew means the conversation was just created and no responder has
	// replied yet.
	StateNew
	// StateNeedsResponse means an external party posted after a responder
	// reply; the room is waiting on a responder again.
	StateNeedsResponse
	// StateOverdue means the conversation exceeded its deadline threshold
	// while waiting on a responder.
	StateOverdue
	// StateWaiting means a responder has replied and the conversation is
	// awaiting further messages.
	StateWaiting
	// StateSnoozed means the conversation is manually suppressed for a period.
	StateSnoozed
	// StateClosed is terminal for normal processing.
	StateClosed
	// StateArchived is reached only from Closed, after retention fires.
	StateArchived
)

// String returns the state's display name.
func (s State) String() string {
	switch s {
	case StateUnknown:
		return "Unknown"
	case StateNew:
		return "New"
	case StateNeedsResponse:
		return "NeedsResponse"
	case StateOverdue:
		return "Overdue"
	case StateWaiting:
		return "Waiting"
	case StateSnoozed:
		return "Snoozed"
	case StateClosed:
		return "Closed"
	case StateArchived:
		return "Archived"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the state admits no further normal processing.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateArchived
}

// Threshold is a generic budget with optional warning and deadline bounds.
// When both are set, Warning <= Deadline.
type Threshold[T any] struct {
	Warning  *T
	Deadline *T
}

// TimeToRespond is the response-time budget configured per room.
type TimeToRespond = Threshold[time.Duration]

// TagSet is an unordered set of tags, unique by name.
type TagSet map[string]struct{}

// NewTagSet builds a tag set from names, deduplicating as it goes.
func NewTagSet(names ...string) TagSet {
	s := make(TagSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Add inserts a tag.
func (s TagSet) Add(name string) { s[name] = struct{}{} }

// Has reports whether the set contains a tag.
func (s TagSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the tags in sorted order.
func (s TagSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Conversation is a tracked, stateful thread of support interaction anchored
// to a room and a starting message.
//
// Invariants: LastStateChangeOn >= Created; terminal states never transition
// except via explicit reopen, which happens outside this core.
type Conversation struct {
	ID     uuid.UUID
	RoomID string
	State  State

	// ThreadRootID is the platform id of the message that started this
	// conversation's thread. Thread replies referencing it match without
	// any classifier involvement.
	ThreadRootID string

	Title string
	Tags  TagSet

	// Participants are display names of everyone who has posted.
	Participants []string

	Created             time.Time
	LastStateChangeOn   time.Time
	LastMessagePostedOn time.Time
	ClosedOn            *time.Time
	ArchivedOn          *time.Time
}

// Room is the place conversations happen in, with its SLA configuration.
type Room struct {
	ID    string
	OrgID string

	// ConversationTrackingEnabled gates starting new conversations in this
	// room. It does not gate identifying existing ones.
	ConversationTrackingEnabled bool

	TimeToRespond TimeToRespond
}
