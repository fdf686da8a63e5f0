package matcher

import (
	"regexp"
	"strings"
)

// ThoughtAction is one reasoning/action pair extracted from a model response.
type ThoughtAction struct {
	Thought string
	Action  string
}

var (
	thoughtActionRe = regexp.MustCompile(`(?s)\[Thought\](.*?)\[/Thought\]\s*\[Action\](.*?)\[/Action\]`)
	fenceRe         = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\r?\n(.*?)```")
)

// ParseResponse extracts ordered (thought, action) pairs from a raw model
// completion. If the completion contains a fenced code block, content is
// taken from within the first fence before parsing; otherwise the whole text
// is parsed as-is. Malformed input yields an empty slice, never an error.
func ParseResponse(raw string) []ThoughtAction {
	text := raw
	if fence := fenceRe.FindStringSubmatch(raw); fence != nil {
		text = fence[1]
	}

	matches := thoughtActionRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	pairs := make([]ThoughtAction, 0, len(matches))
	for _, m := range matches {
		pairs = append(pairs, ThoughtAction{
			Thought: strings.TrimSpace(m[1]),
			Action:  strings.TrimSpace(m[2]),
		})
	}
	return pairs
}
