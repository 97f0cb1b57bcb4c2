// Package variant expands one query into surface-form variants so that
// retrieval matches text regardless of character width, kana script, or
// spacing conventions.
package variant

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

// Organization marker tokens that must be followed by exactly one
// half-width space before the next token.
var orgMarkers = []string{
	"株式会社",
	"有限会社",
	"合同会社",
	"合資会社",
	"(株)",
	"(有)",
	"（株）",
	"（有）",
}

var orgMarkerRe = func() *regexp.Regexp {
	quoted := make([]string, len(orgMarkers))
	for i, m := range orgMarkers {
		quoted[i] = regexp.QuoteMeta(m)
	}
	// Marker, any run of half/full-width whitespace, then a non-space rune.
	return regexp.MustCompile("(" + strings.Join(quoted, "|") + ")[ \t　]*([^ \t　])")
}()

// NarrowWidth folds full-width characters to their half-width forms.
func NarrowWidth(s string) string {
	return width.Narrow.String(s)
}

// WidenWidth folds half-width characters to their full-width forms.
func WidenWidth(s string) string {
	return width.Widen.String(s)
}

// FoldWidth canonicalizes character width: full-width Latin and digits
// narrow to ASCII while half-width katakana widens to standard katakana.
func FoldWidth(s string) string {
	return width.Fold.String(s)
}

// FoldKana converts katakana to hiragana. All other runes pass through
// unchanged.
func FoldKana(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'ァ' && r <= 'ヶ' {
			return r - 0x60
		}
		return r
	}, s)
}

// StripSpaces removes all half-width and full-width whitespace.
func StripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '　':
			return -1
		}
		return r
	}, s)
}

// SwapKana converts hiragana to katakana and vice versa. Runes outside
// the two kana blocks pass through unchanged.
func SwapKana(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'ぁ' && r <= 'ゖ':
			return r + 0x60
		case r >= 'ァ' && r <= 'ヶ':
			return r - 0x60
		}
		return r
	}, s)
}

// NormalizeOrgSpacing rewrites every organization marker so that exactly
// one half-width space separates it from the following token. A marker at
// the end of the string is left untouched.
func NormalizeOrgSpacing(s string) string {
	return orgMarkerRe.ReplaceAllString(s, "$1 $2")
}
