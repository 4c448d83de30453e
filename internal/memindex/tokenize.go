// Package memindex is the in-memory backend of the segment index: an
// inverted index with token positions, built fresh from the full document
// set at load time. It answers the same query contract as the persisted
// index in the store package.
package memindex

import (
	"strings"
	"unicode"
)

// Token is a single normalized term and its token position within the
// segment text.
type Token struct {
	Term     string
	Position int
}

// Tokenize lower-cases text and splits it on non-alphanumeric boundaries.
// No stemming and no stop-word removal: the persisted index does neither,
// and both index implementations must agree on what matches.
func Tokenize(text string) []Token {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words))
	for i, w := range words {
		tokens = append(tokens, Token{Term: w, Position: i})
	}
	return tokens
}
