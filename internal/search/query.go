package search

import "strings"

// Query is a parsed user query. A query wrapped in double quotes is an
// exact adjacent phrase; otherwise whitespace-separated tokens match
// independently and results are unioned. A single unquoted token behaves
// as a plain keyword either way.
type Query struct {
	Raw    string
	Phrase string   // dequoted phrase; set when the query was quoted
	Terms  []string // independent tokens; set when the query was unquoted
}

// Parse validates and classifies a raw query string.
func Parse(raw string) (Query, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Query{}, ErrEmptyQuery
	}

	if len(trimmed) >= 2 && strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) {
		phrase := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
		if phrase == "" {
			return Query{}, ErrEmptyQuery
		}
		return Query{Raw: raw, Phrase: phrase}, nil
	}

	return Query{Raw: raw, Terms: strings.Fields(trimmed)}, nil
}

// IsPhrase reports whether the query demands exact adjacent-phrase
// matching.
func (q Query) IsPhrase() bool { return q.Phrase != "" }

// Needle is the literal substring KWIC tries to locate in matched text:
// the dequoted phrase for quoted queries, the trimmed raw query otherwise.
func (q Query) Needle() string {
	if q.IsPhrase() {
		return q.Phrase
	}
	return strings.TrimSpace(q.Raw)
}
