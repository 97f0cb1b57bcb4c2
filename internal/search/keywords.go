package search

import (
	"regexp"
	"strings"

	"github.com/kotaeru-ai/kensaku/internal/variant"
)

// Keyword extraction patterns. Identifier-style tokens (product codes,
// model numbers) are weighted far above generic lexical keywords.
var (
	identifierKeywordRe = regexp.MustCompile(`[A-Za-z]+[-_]?[0-9]+[0-9A-Za-z-]*|[0-9]{4,}`)
	alnumRunRe          = regexp.MustCompile(`[A-Za-z0-9]+`)
	cjkRunRe            = regexp.MustCompile(`[\p{Han}\p{Hiragana}\p{Katakana}ー]{2,}`)
)

// Keyword is one extracted query term.
type Keyword struct {
	Text       string
	Identifier bool
}

// extractKeywords pulls salient terms from a query: identifier patterns
// first, then alphanumeric runs and CJK runs of 2+ characters. Terms
// are deduplicated case-insensitively, preserving first occurrence.
func extractKeywords(texts ...string) []Keyword {
	seen := make(map[string]struct{})
	var keywords []Keyword

	add := func(text string, identifier bool) {
		key := strings.ToLower(text)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		keywords = append(keywords, Keyword{Text: key, Identifier: identifier})
	}

	for _, text := range texts {
		text = variant.FoldWidth(text)
		for _, m := range identifierKeywordRe.FindAllString(text, -1) {
			add(m, true)
		}
		for _, m := range alnumRunRe.FindAllString(text, -1) {
			if _, ok := seen[strings.ToLower(m)]; !ok {
				add(m, false)
			}
		}
		for _, m := range cjkRunRe.FindAllString(text, -1) {
			add(m, false)
		}
	}
	return keywords
}

// normalizeText folds text for fuzzy comparison: canonical width,
// katakana read as hiragana, lowercase, no whitespace.
func normalizeText(s string) string {
	return strings.ToLower(variant.StripSpaces(variant.FoldKana(variant.FoldWidth(s))))
}
