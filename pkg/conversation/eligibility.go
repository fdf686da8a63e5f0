package conversation

import "fmt"

// StartEligibility is the centralized predicate deciding which messages may
// start a new conversation. The rule set comes from configuration rather than
// being re-derived at call sites.
type StartEligibility struct {
	allowed map[SenderKind]struct{}
}

// NewStartEligibility builds the predicate from config sender-kind names.
func NewStartEligibility(senderKinds []string) (*StartEligibility, error) {
	allowed := make(map[SenderKind]struct{}, len(senderKinds))
	for _, name := range senderKinds {
		kind, ok := ParseSenderKind(name)
		if !ok {
			return nil, fmt.Errorf("unknown sender kind %q", name)
		}
		allowed[kind] = struct{}{}
	}
	return &StartEligibility{allowed: allowed}, nil
}

// CanStart reports whether the message is eligible to start a new
// conversation. Thread replies never are; neither are senders outside the
// configured allow list.
func (e *StartEligibility) CanStart(msg *IncomingMessage) bool {
	if msg == nil || msg.InThread() {
		return false
	}
	_, ok := e.allowed[msg.Sender.Kind]
	return ok
}
