package search

import "testing"

// ── SplitContext ─────────────────────────────────────────────────────────

func TestSplitContext(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		needle       string
		contextWords int
		wantLeft     string
		wantKeyword  string
		wantRight    string
		wantOK       bool
	}{
		{
			name: "one word each side",
			text: "the quick brown fox jumps", needle: "quick", contextWords: 1,
			wantLeft: "the", wantKeyword: "quick", wantRight: "brown", wantOK: true,
		},
		{
			name: "wide window clips at edges",
			text: "the quick brown fox jumps", needle: "quick", contextWords: 10,
			wantLeft: "the", wantKeyword: "quick", wantRight: "brown fox jumps", wantOK: true,
		},
		{
			name: "match at start has no left",
			text: "the quick brown fox", needle: "the", contextWords: 2,
			wantLeft: "", wantKeyword: "the", wantRight: "quick brown", wantOK: true,
		},
		{
			name: "match at end has no right",
			text: "learn about math", needle: "math", contextWords: 2,
			wantLeft: "learn about", wantKeyword: "math", wantRight: "", wantOK: true,
		},
		{
			name: "case insensitive",
			text: "Today we will learn about Math", needle: "math", contextWords: 1,
			wantLeft: "about", wantKeyword: "Math", wantRight: "", wantOK: true,
		},
		{
			name: "substring expands to whole word",
			text: "he moved quickly today", needle: "quick", contextWords: 1,
			wantLeft: "moved", wantKeyword: "quickly", wantRight: "today", wantOK: true,
		},
		{
			name: "phrase spans words",
			text: "the quick brown fox jumps", needle: "brown fox", contextWords: 1,
			wantLeft: "quick", wantKeyword: "brown fox", wantRight: "jumps", wantOK: true,
		},
		{
			name: "punctuation stays attached",
			text: "Today we will learn about math.", needle: "math", contextWords: 2,
			wantLeft: "learn about", wantKeyword: "math.", wantRight: "", wantOK: true,
		},
		{
			name: "zero context words",
			text: "the quick brown fox", needle: "quick", contextWords: 0,
			wantLeft: "", wantKeyword: "quick", wantRight: "", wantOK: true,
		},
		{
			name: "collapsed whitespace between words",
			text: "the  quick\tbrown fox", needle: "brown", contextWords: 1,
			wantLeft: "quick", wantKeyword: "brown", wantRight: "fox", wantOK: true,
		},
		{
			name: "needle absent",
			text: "the quick brown fox", needle: "zebra", contextWords: 1,
			wantOK: false,
		},
		{
			name: "empty text",
			text: "", needle: "fox", contextWords: 1,
			wantOK: false,
		},
		{
			name: "empty needle",
			text: "the quick brown fox", needle: "", contextWords: 1,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left, keyword, right, ok := SplitContext(tt.text, tt.needle, tt.contextWords)
			if ok != tt.wantOK {
				t.Fatalf("SplitContext ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if left != tt.wantLeft {
				t.Errorf("left = %q, want %q", left, tt.wantLeft)
			}
			if keyword != tt.wantKeyword {
				t.Errorf("keyword = %q, want %q", keyword, tt.wantKeyword)
			}
			if right != tt.wantRight {
				t.Errorf("right = %q, want %q", right, tt.wantRight)
			}
		})
	}
}

func TestFieldsWithOffsets(t *testing.T) {
	words, starts, ends := fieldsWithOffsets("  the quick  fox ")
	wantWords := []string{"the", "quick", "fox"}
	if len(words) != len(wantWords) {
		t.Fatalf("words = %v, want %v", words, wantWords)
	}
	for i := range wantWords {
		if words[i] != wantWords[i] {
			t.Errorf("words[%d] = %q, want %q", i, words[i], wantWords[i])
		}
		if got := "  the quick  fox "[starts[i]:ends[i]]; got != wantWords[i] {
			t.Errorf("offset slice [%d] = %q, want %q", i, got, wantWords[i])
		}
	}
}
