package conversation

import (
	"fmt"
	"time"

	"github.com/supportflow/conversation-router/pkg/observability/metrics"
)

// EventKind enumerates the external occurrences that drive the lifecycle.
type EventKind int

const (
	// EventMessagePosted means an external party posted in the conversation.
	EventMessagePosted EventKind = iota
	// EventResponderReplied means a responder replied.
	EventResponderReplied
	// EventSnoozeSet means an agent manually snoozed the conversation.
	EventSnoozeSet
	// EventSnoozeExpired means a snooze period ran out.
	EventSnoozeExpired
	// EventDeadlineExceeded means the deadline threshold elapsed while the
	// conversation was waiting on a responder.
	EventDeadlineExceeded
	// EventManuallyClosed means an agent closed the conversation.
	EventManuallyClosed
	// EventRetentionArchived means the retention policy archived a closed
	// conversation.
	EventRetentionArchived
)

// String returns the event kind's display name.
func (k EventKind) String() string {
	switch k {
	case EventMessagePosted:
		return "MessagePosted"
	case EventResponderReplied:
		return "ResponderReplied"
	case EventSnoozeSet:
		return "SnoozeSet"
	case EventSnoozeExpired:
		return "SnoozeExpired"
	case EventDeadlineExceeded:
		return "DeadlineExceeded"
	case EventManuallyClosed:
		return "ManuallyClosed"
	case EventRetentionArchived:
		return "RetentionArchived"
	default:
		return "Unknown"
	}
}

// Event is one lifecycle occurrence with the time it happened.
type Event struct {
	Kind       EventKind
	OccurredAt time.Time
}

// InvalidTransitionError reports an event that is not valid from the
// conversation's current state. It is surfaced to the caller, never
// auto-corrected.
type InvalidTransitionError struct {
	ConversationID string
	From           State
	Event          EventKind
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: event %s not allowed from state %s (conversation %s)",
		e.Event, e.From, e.ConversationID)
}

// nextState returns the state an event drives a conversation to, or false
// when the event is not valid from the current state. Both switches are
// exhaustive over their enums; the error sentinel admits nothing.
func nextState(from State, kind EventKind) (State, bool) {
	switch from {
	case StateNew:
		switch kind {
		case EventMessagePosted:
			return StateNew, true
		case EventResponderReplied:
			return StateWaiting, true
		case EventDeadlineExceeded:
			return StateOverdue, true
		case EventSnoozeSet:
			return StateSnoozed, true
		case EventManuallyClosed:
			return StateClosed, true
		case EventSnoozeExpired, EventRetentionArchived:
			return StateUnknown, false
		}
	case StateNeedsResponse:
		switch kind {
		case EventMessagePosted:
			return StateNeedsResponse, true
		case EventResponderReplied:
			return StateWaiting, true
		case EventDeadlineExceeded:
			return StateOverdue, true
		case EventSnoozeSet:
			return StateSnoozed, true
		case EventManuallyClosed:
			return StateClosed, true
		case EventSnoozeExpired, EventRetentionArchived:
			return StateUnknown, false
		}
	case StateOverdue:
		switch kind {
		case EventMessagePosted:
			return StateOverdue, true
		case EventResponderReplied:
			return StateWaiting, true
		case EventSnoozeSet:
			return StateSnoozed, true
		case EventManuallyClosed:
			return StateClosed, true
		case EventSnoozeExpired, EventDeadlineExceeded, EventRetentionArchived:
			return StateUnknown, false
		}
	case StateWaiting:
		switch kind {
		case EventMessagePosted:
			return StateNeedsResponse, true
		case EventResponderReplied:
			return StateWaiting, true
		case EventSnoozeSet:
			return StateSnoozed, true
		case EventManuallyClosed:
			return StateClosed, true
		case EventSnoozeExpired, EventDeadlineExceeded, EventRetentionArchived:
			return StateUnknown, false
		}
	case StateSnoozed:
		switch kind {
		case EventMessagePosted:
			return StateNeedsResponse, true
		case EventSnoozeExpired:
			return StateNeedsResponse, true
		case EventResponderReplied:
			return StateWaiting, true
		case EventManuallyClosed:
			return StateClosed, true
		case EventSnoozeSet, EventDeadlineExceeded, EventRetentionArchived:
			return StateUnknown, false
		}
	case StateClosed:
		switch kind {
		case EventRetentionArchived:
			return StateArchived, true
		case EventMessagePosted, EventResponderReplied, EventSnoozeSet,
			EventSnoozeExpired, EventDeadlineExceeded, EventManuallyClosed:
			return StateUnknown, false
		}
	case StateArchived, StateUnknown:
		return StateUnknown, false
	}
	return StateUnknown, false
}

// Transition applies an event to a conversation and returns the updated copy.
// Transitions into the same state are idempotent no-ops and do not update
// LastStateChangeOn. Invalid transitions return *InvalidTransitionError and
// leave the conversation unchanged.
func Transition(conv Conversation, event Event) (Conversation, error) {
	to, ok := nextState(conv.State, event.Kind)
	if !ok {
		return conv, &InvalidTransitionError{
			ConversationID: conv.ID.String(),
			From:           conv.State,
			Event:          event.Kind,
		}
	}

	// Message-bearing events bump the activity clock even when the state
	// does not change.
	switch event.Kind {
	case EventMessagePosted, EventResponderReplied:
		if event.OccurredAt.After(conv.LastMessagePostedOn) {
			conv.LastMessagePostedOn = event.OccurredAt
		}
	case EventSnoozeSet, EventSnoozeExpired, EventDeadlineExceeded,
		EventManuallyClosed, EventRetentionArchived:
	}

	if to == conv.State {
		return conv, nil
	}

	metrics.RecordTransition(conv.State.String(), to.String())
	conv.State = to
	conv.LastStateChangeOn = event.OccurredAt

	switch to {
	case StateClosed:
		t := event.OccurredAt
		conv.ClosedOn = &t
	case StateArchived:
		t := event.OccurredAt
		conv.ArchivedOn = &t
	case StateUnknown, StateNew, StateNeedsResponse, StateOverdue,
		StateWaiting, StateSnoozed:
	}

	return conv, nil
}
