// Package sla evaluates conversations against their room's response-time
// commitments.
package sla

import (
	"time"

	"github.com/supportflow/conversation-router/pkg/conversation"
	"github.com/supportflow/conversation-router/pkg/observability/metrics"
)

// Status is the result of a threshold evaluation, ordered by severity.
type Status int

const (
	// StatusUnevaluated means the room carries no threshold configuration.
	StatusUnevaluated Status = iota
	// StatusOk means the conversation is within its budget.
	StatusOk
	// StatusWarning means the warning bound has elapsed.
	StatusWarning
	// StatusDeadline means the deadline bound has elapsed.
	StatusDeadline
)

// String returns the status display name.
func (s Status) String() string {
	switch s {
	case StatusUnevaluated:
		return "Unevaluated"
	case StatusOk:
		return "Ok"
	case StatusWarning:
		return "Warning"
	case StatusDeadline:
		return "Deadline"
	default:
		return "Unevaluated"
	}
}

// Evaluate returns the threshold status of a conversation at the given
// instant. The relevant elapsed delta depends on the state: New measures from
// creation, NeedsResponse from the last state change. Overdue is
// definitionally past deadline. Waiting, Snoozed, Closed and Archived are
// always Ok. Deadline takes priority over Warning and both comparisons are
// inclusive.
func Evaluate(conv conversation.Conversation, threshold conversation.TimeToRespond, now time.Time) Status {
	status := evaluate(conv, threshold, now)
	metrics.RecordThresholdStatus(status.String())
	return status
}

func evaluate(conv conversation.Conversation, threshold conversation.TimeToRespond, now time.Time) Status {
	var delta time.Duration
	switch conv.State {
	case conversation.StateNew:
		delta = now.Sub(conv.Created)
	case conversation.StateNeedsResponse:
		delta = now.Sub(conv.LastStateChangeOn)
	case conversation.StateOverdue:
		return StatusDeadline
	case conversation.StateWaiting, conversation.StateSnoozed,
		conversation.StateClosed, conversation.StateArchived:
		return StatusOk
	case conversation.StateUnknown:
		return StatusUnevaluated
	default:
		return StatusUnevaluated
	}

	if threshold.Warning == nil && threshold.Deadline == nil {
		return StatusUnevaluated
	}
	if threshold.Deadline != nil && delta >= *threshold.Deadline {
		return StatusDeadline
	}
	if threshold.Warning != nil && delta >= *threshold.Warning {
		return StatusWarning
	}
	return StatusOk
}
