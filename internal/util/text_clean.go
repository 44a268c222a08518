package util

import "strings"

// CleanText normalizes raw extracted text before chunking: NUL bytes and
// non-printing control characters are dropped, tabs become spaces, and runs of
// spaces or newlines collapse to a single one. Chunk offsets are relative to
// the cleaned text, so this runs exactly once per document.
func CleanText(s string) string {
	if s == "" {
		return s
	}
	// NUL bytes show up in output from some PDF extractors.
	s = strings.ReplaceAll(s, "\x00", "")

	r := make([]rune, 0, len(s))
	var prevSpace, prevNewline bool
	for _, ch := range s {
		switch {
		case ch == '\n':
			if prevNewline {
				continue
			}
			// A newline swallows trailing spaces of the previous line.
			for len(r) > 0 && r[len(r)-1] == ' ' {
				r = r[:len(r)-1]
			}
			r = append(r, '\n')
			prevNewline = true
			prevSpace = false
		case ch == ' ' || ch == '\t':
			if prevSpace || prevNewline {
				continue
			}
			r = append(r, ' ')
			prevSpace = true
		case ch < 0x20 || ch == 0x7f:
			continue
		default:
			r = append(r, ch)
			prevSpace = false
			prevNewline = false
		}
	}
	return strings.TrimSpace(string(r))
}

// Preview shortens a string for log output.
func Preview(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 420
	}
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > maxRunes {
		return strings.TrimSpace(string(runes[:maxRunes])) + "..."
	}
	return s
}
