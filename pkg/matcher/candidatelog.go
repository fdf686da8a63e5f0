package matcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/supportflow/conversation-router/pkg/conversation"
	"github.com/supportflow/conversation-router/pkg/redaction"
)

// BuildCandidateLog renders the textual summary of candidate conversations
// fed to the classifier: one numbered block per candidate with participants,
// tags, time since last activity and the redacted summary. Known sensitive
// values are replaced consistently using the operation's mapping.
func BuildCandidateLog(candidates []conversation.Conversation, now time.Time, m *redaction.Mapping) string {
	var b strings.Builder
	for i, c := range candidates {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. Conversation %s\n", i+1, c.ID)
		fmt.Fprintf(&b, "   State: %s\n", c.State)
		if len(c.Participants) > 0 {
			fmt.Fprintf(&b, "   Participants: %s\n", strings.Join(c.Participants, ", "))
		}
		if len(c.Tags) > 0 {
			fmt.Fprintf(&b, "   Tags: %s\n", strings.Join(c.Tags.Names(), ", "))
		}
		fmt.Fprintf(&b, "   Last activity: %s ago\n", formatAge(now.Sub(c.LastMessagePostedOn)))
		if c.Title != "" {
			fmt.Fprintf(&b, "   Summary: %s\n", m.RedactKnown(c.Title))
		}
	}
	return b.String()
}

// formatAge renders a duration the way a human would say it in a log line.
func formatAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
