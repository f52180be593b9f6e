package usecase

import (
	"strings"
	"unicode"
)

// Shared lexical helpers for re-ranking and deduplication. Tokens shorter
// than three runes carry almost no signal in Indonesian service queries
// ("di", "ke", "yg") and are dropped everywhere.
const minTokenRunes = 3

func tokenizeLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}

func significantTokens(s string) []string {
	all := tokenizeLower(s)
	out := all[:0:len(all)]
	for _, token := range all {
		if len([]rune(token)) >= minTokenRunes {
			out = append(out, token)
		}
	}
	return out
}

func toTokenSet(s string) map[string]struct{} {
	tokens := significantTokens(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

// jaccard is |intersection| / |union| over two token sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	intersection := 0
	for token := range small {
		if _, ok := large[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
