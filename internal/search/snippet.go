package search

import "unicode"

// Snippet markers shared by both renditions. The persisted index passes
// them to the engine's snippet function; the in-memory index uses
// MakeSnippet below.
const (
	MarkStart = "<mark>"
	MarkEnd   = "</mark>"
	Ellipsis  = "..."

	// SnippetWindow is the character budget kept on each side of a match.
	SnippetWindow = 60
)

// MakeSnippet returns a bounded excerpt of text around the first
// case-insensitive occurrence of needle, wrapping the match in markStart
// and markEnd and adding ellipses at truncated edges. Without a literal
// match it returns the leading window of the text. Slicing is rune-safe.
func MakeSnippet(text, needle string, window int, markStart, markEnd string) string {
	if window <= 0 {
		window = SnippetWindow
	}
	runes := []rune(text)

	start, end := runeMatch(runes, []rune(needle))
	if start < 0 {
		if len(runes) <= 2*window {
			return text
		}
		return string(runes[:2*window]) + Ellipsis
	}

	from := start - window
	if from < 0 {
		from = 0
	}
	to := end + window
	if to > len(runes) {
		to = len(runes)
	}

	var b []rune
	if from > 0 {
		b = append(b, []rune(Ellipsis)...)
	}
	b = append(b, runes[from:start]...)
	b = append(b, []rune(markStart)...)
	b = append(b, runes[start:end]...)
	b = append(b, []rune(markEnd)...)
	b = append(b, runes[end:to]...)
	if to < len(runes) {
		b = append(b, []rune(Ellipsis)...)
	}
	return string(b)
}

// runeMatch finds the first case-insensitive occurrence of needle in
// haystack, both as rune slices, returning the [start, end) rune range or
// (-1, -1).
func runeMatch(haystack, needle []rune) (int, int) {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1, -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if unicode.ToLower(haystack[i+j]) != unicode.ToLower(needle[j]) {
				match = false
				break
			}
		}
		if match {
			return i, i + len(needle)
		}
	}
	return -1, -1
}
