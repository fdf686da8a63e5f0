package redaction

import (
	"github.com/supportflow/conversation-router/pkg/observability"
	"github.com/supportflow/conversation-router/pkg/observability/metrics"
)

// PolicyChecker decides whether a text may be sent to an external collaborator
// given the state of PII detection for it.
type PolicyChecker struct {
	allowUnredacted bool
}

// NewPolicyChecker builds a checker. allowUnredacted permits passing text
// through unredacted when detection did not run; the default posture is fail
// closed.
func NewPolicyChecker(allowUnredacted bool) *PolicyChecker {
	return &PolicyChecker{allowUnredacted: allowUnredacted}
}

// Check reports whether text with the given detection result may leave the
// process. detectionRan is false when the PII collaborator failed or never
// ran; a nil span slice with detectionRan=true means detection found nothing.
func (p *PolicyChecker) Check(detectionRan bool) bool {
	if detectionRan {
		return true
	}
	if p.allowUnredacted {
		observability.Warnf("PII detection unavailable; policy permits unredacted passthrough")
		metrics.RecordRedactionFallback()
		return true
	}
	return false
}
