package retriever

import (
	"regexp"
	"strings"
)

// DefaultNoiseFilterLength is the minimum salient-token length
// (exclusive). The threshold is empirical - a query of two short tokens
// retrieves nothing - and is kept tunable through config rather than
// baked into the matching logic.
const DefaultNoiseFilterLength = 3

var wordRunPattern = regexp.MustCompile(`\w+`)

// SalientTokens is the set of lowercase, length-filtered word runs drawn
// from a query. An empty set means the query carries no signal to match
// against - the retriever treats that as insufficient data, not an error.
type SalientTokens map[string]struct{}

// ExtractSalientTokens tokenizes query into SalientTokens: lowercase,
// word-character runs, length strictly greater than minLength.
func ExtractSalientTokens(query string, minLength int) SalientTokens {
	tokens := make(SalientTokens)
	for _, match := range wordRunPattern.FindAllString(strings.ToLower(query), -1) {
		if len(match) > minLength {
			tokens[match] = struct{}{}
		}
	}
	return tokens
}
