package ingest

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	datePrefixRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-`)
	trailingNumRe = regexp.MustCompile(`\b\d+\b$`)
)

// GenerateTitle derives a display title from a filename stem:
// "2024-03-01-algebra-review-02" becomes "Algebra Review". A leading date
// and a trailing take number are dropped, separators become spaces, and
// each word is capitalized. Falls back to the raw stem when nothing
// survives the cleanup.
func GenerateTitle(stem string) string {
	title := datePrefixRe.ReplaceAllString(stem, "")
	title = strings.NewReplacer("-", " ", "_", " ").Replace(title)

	words := strings.Fields(title)
	for i, w := range words {
		words[i] = capitalize(w)
	}
	title = strings.Join(words, " ")
	title = strings.TrimSpace(trailingNumRe.ReplaceAllString(title, ""))

	if title == "" {
		return stem
	}
	return title
}

// capitalize uppercases the first rune and lowercases the rest, so "MATH"
// and "math" both title-case to "Math".
func capitalize(w string) string {
	r := []rune(strings.ToLower(w))
	if len(r) == 0 {
		return ""
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
