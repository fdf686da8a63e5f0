package matcher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/supportflow/conversation-router/pkg/audit"
	"github.com/supportflow/conversation-router/pkg/config"
	"github.com/supportflow/conversation-router/pkg/conversation"
	"github.com/supportflow/conversation-router/pkg/observability"
	"github.com/supportflow/conversation-router/pkg/observability/metrics"
	"github.com/supportflow/conversation-router/pkg/redaction"
)

// Config is the immutable per-call configuration of the matching path. It is
// threaded through each operation explicitly; there is no process-wide
// mutable settings cache.
type Config struct {
	Model           string
	Temperature     float64
	PromptTemplate  string
	CandidateWindow int
	FewShotLimit    int
	Timeout         time.Duration
}

// ConfigFrom derives a matcher Config from the router configuration.
func ConfigFrom(cfg *config.RouterConfig) Config {
	return Config{
		Model:           cfg.Matcher.Model,
		Temperature:     cfg.Matcher.Temperature,
		PromptTemplate:  cfg.Matcher.PromptTemplate,
		CandidateWindow: cfg.Matcher.CandidateWindow,
		FewShotLimit:    cfg.Matcher.FewShotLimit,
		Timeout:         cfg.Matcher.Timeout.Duration,
	}
}

// Matcher orchestrates message-to-conversation matching.
type Matcher struct {
	store       ConversationStore
	gate        FeatureGate
	chat        ChatClient
	policy      *redaction.PolicyChecker
	eligibility *conversation.StartEligibility
	auditor     *audit.AsyncWriter
	cfg         Config
	now         func() time.Time
}

// Option customizes a Matcher.
type Option func(*Matcher)

// WithAuditWriter attaches an async audit writer recording match evidence.
func WithAuditWriter(w *audit.AsyncWriter) Option {
	return func(m *Matcher) { m.auditor = w }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) { m.now = now }
}

// New creates a Matcher over its collaborators.
func New(store ConversationStore, gate FeatureGate, chat ChatClient,
	policy *redaction.PolicyChecker, eligibility *conversation.StartEligibility,
	cfg Config, opts ...Option,
) *Matcher {
	m := &Matcher{
		store:       store,
		gate:        gate,
		chat:        chat,
		policy:      policy,
		eligibility: eligibility,
		cfg:         cfg,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IdentifyConversation decides which existing conversation the message
// belongs to. The returned MatchResult carries the full evidence of an
// AI-assisted decision and is nil on the pure thread-match path, for
// ineligible messages, and when AI-assisted matching is disabled. Errors are
// returned only for store failures; classifier failures degrade to a
// no-match result.
func (m *Matcher) IdentifyConversation(ctx context.Context, msg *conversation.IncomingMessage) (*conversation.Conversation, *MatchResult, error) {
	if msg == nil {
		return nil, nil, fmt.Errorf("nil message")
	}

	// Thread replies match by construction, no classifier involved.
	if msg.InThread() {
		conv, err := m.store.ConversationByThreadRoot(ctx, msg.RoomID, msg.ThreadID)
		if err != nil {
			return nil, nil, fmt.Errorf("thread root lookup: %w", err)
		}
		if conv == nil {
			// Orphaned thread reply: reported, not fatal, and never a
			// trigger to start a new conversation.
			observability.Warnf("Orphaned thread reply %s in room %s (thread %s)",
				msg.ID, msg.RoomID, msg.ThreadID)
			return nil, nil, nil
		}
		return conv, nil, nil
	}

	// Room enablement only gates starting new conversations, not identifying
	// existing ones; a message no actor could start a conversation with is
	// not worth matching at all.
	if !m.eligibility.CanStart(msg) {
		observability.Debugf("Message %s not eligible to start a conversation, skipping match", msg.ID)
		return nil, nil, nil
	}

	room, err := m.store.Room(ctx, msg.RoomID)
	if err != nil {
		return nil, nil, fmt.Errorf("room lookup: %w", err)
	}
	if room == nil {
		return nil, nil, fmt.Errorf("unknown room %s", msg.RoomID)
	}

	enabled, err := m.gate.AIMatchingEnabled(ctx, room.OrgID)
	if err != nil {
		return nil, nil, fmt.Errorf("feature gate lookup: %w", err)
	}
	if !enabled {
		return nil, nil, nil
	}

	candidates, err := m.store.RecentActiveConversations(ctx, msg.RoomID, m.cfg.CandidateWindow)
	if err != nil {
		return nil, nil, fmt.Errorf("candidate lookup: %w", err)
	}
	if len(candidates) <= 1 {
		// Zero candidates cannot match and a single candidate is not
		// ambiguous enough to justify a model call.
		return nil, m.finish(msg, &MatchResult{Reason: ReasonNoCandidates}), nil
	}

	detectionRan := msg.SensitiveSpans != nil
	if !m.policy.Check(detectionRan) {
		observability.Warnf("PII detection unavailable for message %s and policy is fail-closed, skipping AI match", msg.ID)
		return nil, m.finish(msg, &MatchResult{Reason: ReasonRedactionPolicy}), nil
	}

	// One mapping per operation keeps placeholders consistent across the
	// message, the candidate log and the few-shot examples, without leaking
	// across operations.
	mapping := redaction.NewMapping()
	redactedMessage := mapping.Redact(msg.Text, msg.SensitiveSpans)
	candidateLog := BuildCandidateLog(candidates, m.now(), mapping)

	examples, err := m.store.ResolvedExamples(ctx, msg.RoomID, m.cfg.FewShotLimit)
	if err != nil {
		observability.Warnf("Resolved example lookup failed for room %s: %v", msg.RoomID, err)
		examples = nil
	}

	turns := buildTurns(m.cfg.PromptTemplate, examples, candidateLog, redactedMessage, msg.Hints, mapping)
	prompt := renderPrompt(turns)

	callCtx := ctx
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	start := m.now()
	resp, err := m.chat.Complete(callCtx, ChatRequest{
		Model:       m.cfg.Model,
		Temperature: m.cfg.Temperature,
		Turns:       turns,
	})
	if err != nil {
		metrics.RecordModelInvocation(m.cfg.Model, "error", time.Since(start))
		observability.Warnf("Classifier unavailable for message %s: %v", msg.ID, err)
		return nil, m.finish(msg, &MatchResult{
			Reason: ReasonClassificationUnavailable,
			Model:  m.cfg.Model,
			Prompt: prompt,
		}), nil
	}
	metrics.RecordModelInvocation(m.cfg.Model, "ok", time.Since(start))
	metrics.RecordModelTokens(m.cfg.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	result := &MatchResult{
		Model:         m.cfg.Model,
		Prompt:        prompt,
		RawCompletion: resp.Content,
		Usage:         resp.Usage,
	}

	pairs := ParseResponse(resp.Content)
	if len(pairs) == 0 {
		result.Reason = ReasonMalformedResponse
		return nil, m.finish(msg, result), nil
	}

	// Only the first pair is used for matching.
	action := pairs[0].Action
	if action == "none" {
		result.Reason = ReasonModelDeclined
		return nil, m.finish(msg, result), nil
	}

	id, err := uuid.Parse(action)
	if err != nil {
		result.Reason = ReasonUnknownCandidate
		return nil, m.finish(msg, result), nil
	}
	for i := range candidates {
		if candidates[i].ID == id {
			result.Matched = true
			result.ConversationID = id
			matched := candidates[i]
			return &matched, m.finish(msg, result), nil
		}
	}

	// The model named an id outside the candidate set. Never guess.
	result.Reason = ReasonUnknownCandidate
	return nil, m.finish(msg, result), nil
}

// finish records metrics and audit evidence for a completed operation.
func (m *Matcher) finish(msg *conversation.IncomingMessage, result *MatchResult) *MatchResult {
	outcome := "no_match"
	if result.Matched {
		outcome = "matched"
	}
	metrics.RecordMatchOutcome(outcome, result.Reason.String())

	if !result.Matched {
		observability.Infof("No match for message %s in room %s: %s", msg.ID, msg.RoomID, result.Reason)
	} else {
		observability.Infof("Matched message %s in room %s to conversation %s", msg.ID, msg.RoomID, result.ConversationID)
	}

	if m.auditor != nil {
		m.auditor.Record(&audit.MatchRecord{
			ID:                    uuid.NewString(),
			Timestamp:             m.now(),
			RoomID:                msg.RoomID,
			MessageID:             msg.ID,
			Outcome:               outcome,
			Reason:                result.Reason.String(),
			MatchedConversationID: matchedID(result),
			Model:                 result.Model,
			Prompt:                result.Prompt,
			RawCompletion:         result.RawCompletion,
			PromptTokens:          result.Usage.PromptTokens,
			CompletionTokens:      result.Usage.CompletionTokens,
		})
	}
	return result
}

func matchedID(result *MatchResult) string {
	if !result.Matched {
		return ""
	}
	return result.ConversationID.String()
}
