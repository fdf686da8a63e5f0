package matcher

import "github.com/google/uuid"

// NoMatchReason is the structured reason a matching operation produced no
// match. Human-readable text is generated only at the logging boundary.
type NoMatchReason int

const (
	// ReasonNone means the operation matched.
	ReasonNone NoMatchReason = iota
	// ReasonNoCandidates means fewer than two candidates existed, so the
	// classifier was never invoked.
	ReasonNoCandidates
	// ReasonClassificationUnavailable means the model call failed or timed
	// out.
	ReasonClassificationUnavailable
	// ReasonMalformedResponse means no thought/action pair could be parsed
	// from the completion.
	ReasonMalformedResponse
	// ReasonUnknownCandidate means the parsed action referenced an id
	// outside the candidate set.
	ReasonUnknownCandidate
	// ReasonModelDeclined means the model explicitly answered that no
	// candidate matches.
	ReasonModelDeclined
	// ReasonRedactionPolicy means sensitive-span detection was unavailable
	// and policy forbids sending unredacted text, so the AI path was
	// skipped.
	ReasonRedactionPolicy
)

// String returns the reason's wire name.
func (r NoMatchReason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonNoCandidates:
		return "no_candidates"
	case ReasonClassificationUnavailable:
		return "classification_unavailable"
	case ReasonMalformedResponse:
		return "malformed_classifier_response"
	case ReasonUnknownCandidate:
		return "unknown_candidate"
	case ReasonModelDeclined:
		return "model_declined"
	case ReasonRedactionPolicy:
		return "redaction_policy_violation"
	default:
		return "unknown"
	}
}

// MatchResult is the auditable evidence of an AI-assisted matching decision.
// The pure thread-match path carries no MatchResult since no classification
// occurred.
type MatchResult struct {
	// Matched reports whether a candidate was identified.
	Matched bool
	// ConversationID is the matched conversation, zero when unmatched.
	ConversationID uuid.UUID
	// Reason explains a no-match outcome; ReasonNone on a match.
	Reason NoMatchReason

	// Model is the classifier model identifier, empty when no call was
	// attempted.
	Model string
	// Prompt is the redacted prompt actually sent.
	Prompt string
	// RawCompletion is the unmodified model output.
	RawCompletion string
	// Usage is the token accounting for the call.
	Usage TokenUsage
}
