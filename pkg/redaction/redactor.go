// Package redaction masks sensitive spans in free text before it leaves the
// process, and restores original values in structured output that references
// the masked text.
package redaction

import (
	"fmt"
	"sort"
	"strings"
)

// Span is one sensitive region detected in a text by the external PII
// detection collaborator.
type Span struct {
	// Category names the kind of sensitive value, e.g. "ssn",
	// "credit-card", "phone".
	Category string
	// Text is the original sensitive value.
	Text string
	// Start is the byte offset of the span in the source text.
	Start int
	// Length is the byte length of the span.
	Length int
	// Confidence is the detector's confidence in [0, 1].
	Confidence float64
}

// Mapping tracks placeholder assignments for one matching operation.
// Two occurrences of the same sensitive value get the same placeholder; two
// different values of the same category get different placeholders. Mappings
// are never reused across operations.
type Mapping struct {
	byValue   map[string]string // category + "\x00" + original -> placeholder
	byHolder  map[string]string // placeholder -> original
	catCounts map[string]int
}

// NewMapping creates an empty mapping for a single matching operation.
func NewMapping() *Mapping {
	return &Mapping{
		byValue:   make(map[string]string),
		byHolder:  make(map[string]string),
		catCounts: make(map[string]int),
	}
}

// Len returns the number of distinct placeholders assigned so far.
func (m *Mapping) Len() int { return len(m.byHolder) }

// placeholder returns the stable placeholder for a value, assigning a fresh
// one on first sight.
func (m *Mapping) placeholder(category, original string) string {
	key := category + "\x00" + original
	if p, ok := m.byValue[key]; ok {
		return p
	}
	m.catCounts[category]++
	p := fmt.Sprintf("<%s_%d>", normalizeCategory(category), m.catCounts[category])
	m.byValue[key] = p
	m.byHolder[p] = original
	return p
}

func normalizeCategory(category string) string {
	upper := strings.ToUpper(category)
	upper = strings.ReplaceAll(upper, "-", "_")
	return strings.ReplaceAll(upper, " ", "_")
}

// Redact replaces each span's substring with a category-typed placeholder,
// preserving text outside spans verbatim. Spans are applied right-to-left by
// offset so earlier replacements of a different length cannot invalidate
// later indices. Out-of-range and overlapping spans are skipped.
func (m *Mapping) Redact(text string, spans []Span) string {
	if len(spans) == 0 {
		return text
	}

	ordered := make([]Span, len(spans))
	copy(ordered, spans)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start > ordered[j].Start })

	out := text
	prevStart := len(text)
	for _, span := range ordered {
		if span.Start < 0 || span.Length <= 0 || span.Start+span.Length > len(text) {
			continue
		}
		if span.Start+span.Length > prevStart {
			// Overlaps a span already applied to its right.
			continue
		}
		original := text[span.Start : span.Start+span.Length]
		out = out[:span.Start] + m.placeholder(span.Category, original) + out[span.Start+span.Length:]
		prevStart = span.Start
	}
	return out
}

// RedactKnown replaces occurrences of values this mapping has already
// assigned placeholders to. It covers text with no span detections of its
// own, such as stored conversation summaries, so one operation's log stays
// consistent end to end.
func (m *Mapping) RedactKnown(text string) string {
	if len(m.byHolder) == 0 {
		return text
	}
	pairs := make([]string, 0, len(m.byHolder)*2)
	for placeholder, original := range m.byHolder {
		pairs = append(pairs, original, placeholder)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// Unredact restores original values for every placeholder this mapping has
// assigned. Text without placeholders passes through unchanged.
func (m *Mapping) Unredact(text string) string {
	if len(m.byHolder) == 0 {
		return text
	}
	pairs := make([]string, 0, len(m.byHolder)*2)
	for placeholder, original := range m.byHolder {
		pairs = append(pairs, placeholder, original)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// Redact is the single-call form: it redacts one text with a fresh mapping.
func Redact(text string, spans []Span) (string, *Mapping) {
	m := NewMapping()
	return m.Redact(text, spans), m
}

// Unredact is the inverse of Redact given the same mapping.
func Unredact(text string, m *Mapping) string {
	if m == nil {
		return text
	}
	return m.Unredact(text)
}
