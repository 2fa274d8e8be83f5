// Package script parses annotated dialog text into speakable lines. A line
// starting with the literal prefix "Speaker 1:" or "Speaker 2:" is voiced by
// that speaker slot with the prefix stripped; every other non-blank line is
// voiced by slot 1 verbatim.
package script

import (
	"strings"
	"unicode"
)

const (
	prefixSpeaker1 = "Speaker 1:"
	prefixSpeaker2 = "Speaker 2:"
)

// Line is one entry of a dispatch plan: the text to synthesize and the
// speaker slot that voices it.
type Line struct {
	Speaker int
	Text    string
}

// Parse splits raw text on line breaks and drops lines that are blank after
// trimming. The remaining lines keep their original order. Parse never
// fails; empty input yields an empty plan.
func Parse(raw string) []Line {
	var plan []Line
	for _, l := range strings.Split(raw, "\n") {
		l = strings.TrimSuffix(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		plan = append(plan, parseLine(l))
	}
	return plan
}

// parseLine assigns a speaker to a single non-blank line. Prefix matching is
// literal: a line with leading whitespace before the tag is spoken verbatim
// by slot 1.
func parseLine(l string) Line {
	switch {
	case strings.HasPrefix(l, prefixSpeaker1):
		return Line{Speaker: 1, Text: stripTag(l, prefixSpeaker1)}
	case strings.HasPrefix(l, prefixSpeaker2):
		return Line{Speaker: 2, Text: stripTag(l, prefixSpeaker2)}
	}
	return Line{Speaker: 1, Text: l}
}

// stripTag removes the speaker prefix and any whitespace immediately
// following it, exactly once.
func stripTag(l, prefix string) string {
	return strings.TrimLeftFunc(l[len(prefix):], unicode.IsSpace)
}
