// Package api exposes the conversation router's public operations over HTTP:
// identify, evaluate, transition, and the match audit trail.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/supportflow/conversation-router/pkg/audit"
	"github.com/supportflow/conversation-router/pkg/config"
	"github.com/supportflow/conversation-router/pkg/conversation"
	"github.com/supportflow/conversation-router/pkg/matcher"
	"github.com/supportflow/conversation-router/pkg/observability"
	"github.com/supportflow/conversation-router/pkg/redaction"
	"github.com/supportflow/conversation-router/pkg/sla"
	"github.com/supportflow/conversation-router/pkg/store"
)

// ConversationAPIServer holds the server state and dependencies.
type ConversationAPIServer struct {
	matcher    *matcher.Matcher
	store      store.Store
	auditStore audit.Store
	config     *config.RouterConfig
}

// NewServer creates an API server over its dependencies.
func NewServer(m *matcher.Matcher, st store.Store, auditStore audit.Store, cfg *config.RouterConfig) *ConversationAPIServer {
	return &ConversationAPIServer{matcher: m, store: st, auditStore: auditStore, config: cfg}
}

// Handler returns the route table.
func (s *ConversationAPIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/identify", s.handleIdentify)
	mux.HandleFunc("POST /api/v1/evaluate", s.handleEvaluate)
	mux.HandleFunc("POST /api/v1/transition", s.handleTransition)
	mux.HandleFunc("GET /api/v1/audit", s.handleAuditList)
	return mux
}

// Start serves the API on the given address, blocking until the listener
// fails.
func (s *ConversationAPIServer) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	observability.Infof("Starting conversation API server on %s", addr)
	return server.ListenAndServe()
}

func (s *ConversationAPIServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SenderPayload is the wire form of a message sender.
type SenderPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// SpanPayload is the wire form of a sensitive span.
type SpanPayload struct {
	Category   string  `json:"category"`
	Text       string  `json:"text"`
	Start      int     `json:"start"`
	Length     int     `json:"length"`
	Confidence float64 `json:"confidence"`
}

// IdentifyRequest is the wire form of an incoming message.
type IdentifyRequest struct {
	MessageID string        `json:"message_id"`
	RoomID    string        `json:"room_id"`
	Text      string        `json:"text"`
	Sender    SenderPayload `json:"sender"`
	Timestamp time.Time     `json:"timestamp"`
	ThreadID  string        `json:"thread_id,omitempty"`
	// Spans is null when PII detection did not run, and an empty array when
	// it ran and found nothing. The distinction drives the redaction policy.
	Spans *[]SpanPayload `json:"spans"`
	Hints []string       `json:"hints,omitempty"`
}

// IdentifyResponse carries the identified conversation and match evidence.
type IdentifyResponse struct {
	Conversation *ConversationPayload `json:"conversation"`
	MatchResult  *MatchResultPayload  `json:"match_result"`
}

// ConversationPayload is the wire form of a conversation.
type ConversationPayload struct {
	ID                  string     `json:"id"`
	RoomID              string     `json:"room_id"`
	State               string     `json:"state"`
	Title               string     `json:"title,omitempty"`
	Tags                []string   `json:"tags,omitempty"`
	Participants        []string   `json:"participants,omitempty"`
	Created             time.Time  `json:"created"`
	LastStateChangeOn   time.Time  `json:"last_state_change_on"`
	LastMessagePostedOn time.Time  `json:"last_message_posted_on"`
	ClosedOn            *time.Time `json:"closed_on,omitempty"`
	ArchivedOn          *time.Time `json:"archived_on,omitempty"`
}

// MatchResultPayload is the wire form of match evidence.
type MatchResultPayload struct {
	Matched          bool   `json:"matched"`
	ConversationID   string `json:"conversation_id,omitempty"`
	Reason           string `json:"reason,omitempty"`
	Model            string `json:"model,omitempty"`
	Prompt           string `json:"prompt,omitempty"`
	RawCompletion    string `json:"raw_completion,omitempty"`
	PromptTokens     int64  `json:"prompt_tokens,omitempty"`
	CompletionTokens int64  `json:"completion_tokens,omitempty"`
	TotalTokens      int64  `json:"total_tokens,omitempty"`
}

func toConversationPayload(c *conversation.Conversation) *ConversationPayload {
	if c == nil {
		return nil
	}
	return &ConversationPayload{
		ID:                  c.ID.String(),
		RoomID:              c.RoomID,
		State:               c.State.String(),
		Title:               c.Title,
		Tags:                c.Tags.Names(),
		Participants:        c.Participants,
		Created:             c.Created,
		LastStateChangeOn:   c.LastStateChangeOn,
		LastMessagePostedOn: c.LastMessagePostedOn,
		ClosedOn:            c.ClosedOn,
		ArchivedOn:          c.ArchivedOn,
	}
}

func toMatchResultPayload(r *matcher.MatchResult) *MatchResultPayload {
	if r == nil {
		return nil
	}
	out := &MatchResultPayload{
		Matched:          r.Matched,
		Reason:           r.Reason.String(),
		Model:            r.Model,
		Prompt:           r.Prompt,
		RawCompletion:    r.RawCompletion,
		PromptTokens:     r.Usage.PromptTokens,
		CompletionTokens: r.Usage.CompletionTokens,
		TotalTokens:      r.Usage.TotalTokens,
	}
	if r.Matched {
		out.ConversationID = r.ConversationID.String()
	}
	return out
}

func (s *ConversationAPIServer) handleIdentify(w http.ResponseWriter, r *http.Request) {
	var req IdentifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid JSON format")
		return
	}
	if req.RoomID == "" || req.MessageID == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_INPUT", "room_id and message_id are required")
		return
	}

	kind, ok := conversation.ParseSenderKind(req.Sender.Kind)
	if !ok {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_INPUT",
			fmt.Sprintf("unknown sender kind %q", req.Sender.Kind))
		return
	}

	msg := &conversation.IncomingMessage{
		ID:        req.MessageID,
		RoomID:    req.RoomID,
		Text:      req.Text,
		Sender:    conversation.Sender{ID: req.Sender.ID, Name: req.Sender.Name, Kind: kind},
		Timestamp: req.Timestamp,
		ThreadID:  req.ThreadID,
		Hints:     req.Hints,
	}
	if req.Spans != nil {
		spans := make([]redaction.Span, 0, len(*req.Spans))
		for _, sp := range *req.Spans {
			spans = append(spans, redaction.Span{
				Category:   sp.Category,
				Text:       sp.Text,
				Start:      sp.Start,
				Length:     sp.Length,
				Confidence: sp.Confidence,
			})
		}
		msg.SensitiveSpans = spans
	}

	conv, result, err := s.matcher.IdentifyConversation(r.Context(), msg)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "MATCH_ERROR", err.Error())
		return
	}
	s.writeJSONResponse(w, http.StatusOK, IdentifyResponse{
		Conversation: toConversationPayload(conv),
		MatchResult:  toMatchResultPayload(result),
	})
}

// EvaluateRequest asks for a conversation's threshold status at an instant.
type EvaluateRequest struct {
	ConversationID string `json:"conversation_id"`
	// Now overrides the evaluation instant; zero means the current time.
	Now time.Time `json:"now,omitempty"`
}

// EvaluateResponse is the threshold evaluation result.
type EvaluateResponse struct {
	ConversationID string `json:"conversation_id"`
	State          string `json:"state"`
	Status         string `json:"status"`
}

func (s *ConversationAPIServer) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid JSON format")
		return
	}

	conv, err := s.store.GetConversation(r.Context(), req.ConversationID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeErrorResponse(w, http.StatusNotFound, "NOT_FOUND", "conversation not found")
		return
	}
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}

	threshold := s.roomThreshold(r, conv.RoomID)

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	status := sla.Evaluate(*conv, threshold, now)
	s.writeJSONResponse(w, http.StatusOK, EvaluateResponse{
		ConversationID: req.ConversationID,
		State:          conv.State.String(),
		Status:         status.String(),
	})
}

// roomThreshold returns the room's threshold, falling back to the configured
// default when the room carries none.
func (s *ConversationAPIServer) roomThreshold(r *http.Request, roomID string) conversation.TimeToRespond {
	room, err := s.store.Room(r.Context(), roomID)
	if err != nil {
		observability.Warnf("Room lookup failed during evaluation: %v", err)
	}
	if room != nil && (room.TimeToRespond.Warning != nil || room.TimeToRespond.Deadline != nil) {
		return room.TimeToRespond
	}

	var threshold conversation.TimeToRespond
	defaults := s.config.Defaults.TimeToRespond
	if defaults.Warning != nil {
		d := defaults.Warning.Duration
		threshold.Warning = &d
	}
	if defaults.Deadline != nil {
		d := defaults.Deadline.Duration
		threshold.Deadline = &d
	}
	return threshold
}

// TransitionRequest applies a lifecycle event to a conversation.
type TransitionRequest struct {
	ConversationID string    `json:"conversation_id"`
	Event          string    `json:"event"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// TransitionResponse returns the conversation after the event.
type TransitionResponse struct {
	Conversation *ConversationPayload `json:"conversation"`
}

var eventKinds = map[string]conversation.EventKind{
	"message_posted":     conversation.EventMessagePosted,
	"responder_replied":  conversation.EventResponderReplied,
	"snooze_set":         conversation.EventSnoozeSet,
	"snooze_expired":     conversation.EventSnoozeExpired,
	"deadline_exceeded":  conversation.EventDeadlineExceeded,
	"manually_closed":    conversation.EventManuallyClosed,
	"retention_archived": conversation.EventRetentionArchived,
}

func (s *ConversationAPIServer) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid JSON format")
		return
	}
	kind, ok := eventKinds[req.Event]
	if !ok {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_INPUT",
			fmt.Sprintf("unknown event %q", req.Event))
		return
	}
	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	conv, err := s.store.GetConversation(r.Context(), req.ConversationID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeErrorResponse(w, http.StatusNotFound, "NOT_FOUND", "conversation not found")
		return
	}
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}

	updated, err := conversation.Transition(*conv, conversation.Event{Kind: kind, OccurredAt: occurredAt})
	var invalid *conversation.InvalidTransitionError
	if errors.As(err, &invalid) {
		s.writeErrorResponse(w, http.StatusConflict, "INVALID_TRANSITION", invalid.Error())
		return
	}
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "TRANSITION_ERROR", err.Error())
		return
	}

	if err := s.store.UpdateConversation(r.Context(), updated); err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	s.writeJSONResponse(w, http.StatusOK, TransitionResponse{Conversation: toConversationPayload(&updated)})
}

// AuditListResponse wraps a page of audit records.
type AuditListResponse struct {
	Records []*audit.MatchRecord `json:"records"`
	Total   int                  `json:"total"`
}

func (s *ConversationAPIServer) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if s.auditStore == nil || !s.auditStore.IsEnabled() {
		s.writeErrorResponse(w, http.StatusServiceUnavailable, "AUDIT_NOT_AVAILABLE",
			"Match audit is not enabled in configuration")
		return
	}

	opts := audit.ListOptions{
		RoomID:  r.URL.Query().Get("room_id"),
		Outcome: r.URL.Query().Get("outcome"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_INPUT", "limit must be a positive integer")
			return
		}
		opts.Limit = limit
	}

	records, err := s.auditStore.ListRecords(r.Context(), opts)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "AUDIT_ERROR", err.Error())
		return
	}
	s.writeJSONResponse(w, http.StatusOK, AuditListResponse{Records: records, Total: len(records)})
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine code and human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *ConversationAPIServer) writeJSONResponse(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		observability.Errorf("Failed to encode response: %v", err)
	}
}

func (s *ConversationAPIServer) writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	s.writeJSONResponse(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}
