package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MatchOutcomeCount tracks IdentifyConversation results by outcome and reason.
	MatchOutcomeCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_match_outcomes_total",
			Help: "The total number of conversation matching outcomes",
		},
		[]string{"outcome", "reason"},
	)

	// ModelInvocationCount tracks classifier model calls by model and result.
	ModelInvocationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_match_model_invocations_total",
			Help: "The total number of classifier model invocations",
		},
		[]string{"model", "result"},
	)

	// ModelTokens tracks token usage reported by the classifier model.
	ModelTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_match_model_tokens_total",
			Help: "The total number of tokens consumed by classifier model calls",
		},
		[]string{"model", "kind"},
	)

	// ModelLatency tracks wall-clock latency of classifier model calls.
	ModelLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conversation_match_model_duration_seconds",
			Help:    "Classifier model call duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	// RedactionFallbackCount tracks how often text passed through unredacted
	// because the fallback policy allowed it.
	RedactionFallbackCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversation_match_redaction_fallbacks_total",
			Help: "The total number of unredacted passthroughs permitted by policy",
		},
	)

	// TransitionCount tracks conversation state transitions.
	TransitionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_state_transitions_total",
			Help: "The total number of conversation state transitions",
		},
		[]string{"from", "to"},
	)

	// ThresholdStatusCount tracks threshold evaluations by resulting status.
	ThresholdStatusCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_threshold_evaluations_total",
			Help: "The total number of SLA threshold evaluations",
		},
		[]string{"status"},
	)
)

// RecordMatchOutcome records one IdentifyConversation outcome.
func RecordMatchOutcome(outcome, reason string) {
	MatchOutcomeCount.WithLabelValues(outcome, reason).Inc()
}

// RecordModelInvocation records one classifier call and its latency.
func RecordModelInvocation(model, result string, duration time.Duration) {
	ModelInvocationCount.WithLabelValues(model, result).Inc()
	ModelLatency.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordModelTokens records prompt and completion token usage for a call.
func RecordModelTokens(model string, promptTokens, completionTokens int64) {
	ModelTokens.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	ModelTokens.WithLabelValues(model, "completion").Add(float64(completionTokens))
}

// RecordRedactionFallback records one policy-permitted unredacted passthrough.
func RecordRedactionFallback() {
	RedactionFallbackCount.Inc()
}

// RecordTransition records one applied state transition.
func RecordTransition(from, to string) {
	TransitionCount.WithLabelValues(from, to).Inc()
}

// RecordThresholdStatus records one threshold evaluation result.
func RecordThresholdStatus(status string) {
	ThresholdStatusCount.WithLabelValues(status).Inc()
}
