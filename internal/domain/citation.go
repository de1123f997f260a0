package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// citationPattern is the canonical marker grammar. Bare numeric anchors like
// [1] are not recognized; prompt revisions that emitted them predate this
// grammar and their markers are treated as plain text.
var citationPattern = regexp.MustCompile(`\[citation:(\d+)\]`)

// ExtractCitations parses citation markers out of a generated answer.
// Markers referencing ordinals outside [1, passageCount] are dropped; the
// returned int reports how many were dropped so the caller can log them.
// The answer text itself is never rewritten.
func ExtractCitations(answer string, passageCount int) ([]Citation, int) {
	matches := citationPattern.FindAllStringSubmatchIndex(answer, -1)
	if len(matches) == 0 {
		return nil, 0
	}

	citations := make([]Citation, 0, len(matches))
	dropped := 0
	prevEnd := -1
	prevStart := 0
	for _, m := range matches {
		start := spanStart(answer, m[0])
		if m[0] == prevEnd {
			// Adjacent marker, e.g. [citation:1][citation:2]: both cite the
			// same sentence.
			start = prevStart
		}
		prevStart, prevEnd = start, m[1]

		ordinal, err := strconv.Atoi(answer[m[2]:m[3]])
		if err != nil || ordinal < 1 || ordinal > passageCount {
			dropped++
			continue
		}
		citations = append(citations, Citation{
			PassageOrdinal: ordinal,
			SpanStart:      start,
			SpanEnd:        m[0],
			Span:           spanText(answer[start:m[0]]),
		})
	}
	if len(citations) == 0 {
		return nil, dropped
	}
	return citations, dropped
}

// spanStart finds the beginning of the sentence a marker is attached to.
func spanStart(answer string, markerPos int) int {
	i := markerPos - 1
	// Skip punctuation and whitespace directly before the marker so that
	// "...done. [citation:1]" spans the sentence, not the empty string.
	for i >= 0 && (isSentenceBreak(answer[i]) || isSpace(answer[i])) {
		i--
	}
	for ; i >= 0; i-- {
		if isSentenceBreak(answer[i]) || answer[i] == ']' {
			return i + 1
		}
	}
	return 0
}

func isSentenceBreak(c byte) bool {
	switch c {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}

// spanText normalizes the cited sentence: earlier markers inside the span
// are removed and surrounding whitespace plus the trailing sentence
// punctuation are trimmed.
func spanText(span string) string {
	cleaned := citationPattern.ReplaceAllString(span, "")
	cleaned = strings.TrimSpace(cleaned)
	return strings.TrimRight(cleaned, ".!?\n ")
}
