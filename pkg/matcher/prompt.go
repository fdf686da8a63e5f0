package matcher

import (
	"fmt"
	"strings"

	"github.com/supportflow/conversation-router/pkg/redaction"
)

// defaultSystemPrompt is the built-in instruction turn. Deployments can
// replace it via matcher.prompt_template in the config file.
const defaultSystemPrompt = `You route support chat messages to ongoing conversations.

You are given a numbered list of candidate conversations from one chat room,
and a new top-level message posted in that room. Decide whether the message
continues one of the candidate conversations or starts something new.

Sensitive values have been replaced with placeholders like <SSN_1>; treat two
occurrences of the same placeholder as the same value.

Respond with exactly one block of the form:

[Thought]your reasoning[/Thought][Action]conversation-id[/Action]

where conversation-id is the id of the matching candidate, or the word "none"
if no candidate matches. Never invent an id that is not in the list.`

// buildTurns assembles the ordered role-tagged prompt: system instruction,
// few-shot examples from prior resolved matches, then the actual request.
// Example message text is redacted with the operation's mapping so
// placeholders stay consistent across the whole prompt.
func buildTurns(systemPrompt string, examples []ResolvedExample, candidateLog, redactedMessage string, hints []string, m *redaction.Mapping) []Turn {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	turns := make([]Turn, 0, 2+2*len(examples))
	turns = append(turns, Turn{Role: RoleSystem, Content: systemPrompt})

	for _, ex := range examples {
		exMessage := m.Redact(ex.MessageText, ex.Spans)
		turns = append(turns,
			Turn{Role: RoleExampleUser, Content: formatRequest(m.RedactKnown(ex.CandidateLog), exMessage, nil)},
			Turn{Role: RoleExampleAssistant, Content: ex.Answer},
		)
	}

	turns = append(turns, Turn{Role: RoleUser, Content: formatRequest(candidateLog, redactedMessage, hints)})
	return turns
}

// formatRequest renders one classification request body.
func formatRequest(candidateLog, message string, hints []string) string {
	var b strings.Builder
	b.WriteString("Candidate conversations:\n")
	if candidateLog == "" {
		b.WriteString("(none)\n")
	} else {
		b.WriteString(candidateLog)
	}
	b.WriteString("\nNew message:\n")
	b.WriteString(message)
	if len(hints) > 0 {
		fmt.Fprintf(&b, "\n\nHints: %s", strings.Join(hints, "; "))
	}
	return b.String()
}

// renderPrompt flattens turns into the audit-trail form of the prompt.
func renderPrompt(turns []Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		fmt.Fprintf(&b, "[%s]\n%s", roleName(t.Role), t.Content)
	}
	return b.String()
}

func roleName(r Role) string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleExampleUser:
		return "example-user"
	case RoleExampleAssistant:
		return "example-assistant"
	case RoleUser:
		return "user"
	default:
		return "user"
	}
}
