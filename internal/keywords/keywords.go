package keywords

import "strings"

// maxKeywords caps how many search terms a theme contributes.
const maxKeywords = 5

// minTokenLen drops short filler words regardless of the stop list.
const minTokenLen = 4

// stopWords are articles, prepositions and connective filler that carry
// no search value in a weekly theme title.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {},
	"about": {}, "into": {}, "over": {}, "under": {}, "through": {},
	"our": {}, "your": {}, "their": {}, "this": {}, "that": {},
	"a": {}, "an": {}, "of": {}, "in": {}, "on": {}, "at": {}, "to": {},
}

// Extract turns a free-text weekly theme into an ordered list of up to
// five lowercase search terms. Deterministic, never fails; an empty
// theme yields an empty list.
func Extract(theme string) []string {
	fields := strings.Fields(strings.ToLower(theme))
	terms := make([]string, 0, maxKeywords)

	for _, f := range fields {
		token := strings.Trim(f, ".,!?;:'\"()&-")
		if len(token) < minTokenLen {
			continue
		}
		if _, stop := stopWords[token]; stop {
			continue
		}
		terms = append(terms, token)
		if len(terms) == maxKeywords {
			break
		}
	}

	return terms
}
