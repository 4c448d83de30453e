package search

import (
	"strings"
	"unicode"
)

// SplitContext locates the first case-insensitive occurrence of needle in
// text and splits the text into whitespace-delimited words around the
// matched word span: contextWords words to the left, the span itself, and
// contextWords words to the right. The keyword covers whole words, so a
// needle matching inside a longer word returns that word (query "quick"
// against "quickly" yields keyword "quickly"). ok is false when the needle
// does not occur literally, which callers surface as a degraded hit.
func SplitContext(text, needle string, contextWords int) (left, keyword, right string, ok bool) {
	needle = strings.TrimSpace(needle)
	if text == "" || needle == "" {
		return "", "", "", false
	}

	lowerText := strings.ToLower(text)
	lowerNeedle := strings.ToLower(needle)
	matchStart := strings.Index(lowerText, lowerNeedle)
	if matchStart < 0 {
		return "", "", "", false
	}
	matchEnd := matchStart + len(lowerNeedle)

	words, _, _ := fieldsWithOffsets(text)
	_, lowerStarts, lowerEnds := fieldsWithOffsets(lowerText)
	if len(words) == 0 || len(words) != len(lowerStarts) {
		// Case folding changed the word structure; give up cleanly.
		return "", "", "", false
	}

	startWord := wordAt(lowerStarts, lowerEnds, matchStart, 0)
	endWord := wordAt(lowerStarts, lowerEnds, matchEnd-1, len(words)-1)
	if endWord < startWord {
		endWord = startWord
	}

	contextStart := startWord - contextWords
	if contextStart < 0 {
		contextStart = 0
	}
	contextEnd := endWord + 1 + contextWords
	if contextEnd > len(words) {
		contextEnd = len(words)
	}

	left = strings.Join(words[contextStart:startWord], " ")
	keyword = strings.Join(words[startWord:endWord+1], " ")
	right = strings.Join(words[endWord+1:contextEnd], " ")
	return left, keyword, right, true
}

// wordAt returns the index of the word whose byte range contains pos, or
// fallback when pos falls outside every word.
func wordAt(starts, ends []int, pos, fallback int) int {
	for i := range starts {
		if pos >= starts[i] && pos < ends[i] {
			return i
		}
	}
	return fallback
}

// fieldsWithOffsets splits s around whitespace like strings.Fields, also
// returning each word's byte range [start, end) in s.
func fieldsWithOffsets(s string) (words []string, starts, ends []int) {
	inWord := false
	wordStart := 0
	for i, r := range s {
		if unicode.IsSpace(r) {
			if inWord {
				words = append(words, s[wordStart:i])
				starts = append(starts, wordStart)
				ends = append(ends, i)
				inWord = false
			}
			continue
		}
		if !inWord {
			wordStart = i
			inWord = true
		}
	}
	if inWord {
		words = append(words, s[wordStart:])
		starts = append(starts, wordStart)
		ends = append(ends, len(s))
	}
	return words, starts, ends
}
