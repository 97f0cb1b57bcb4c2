package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractKeywords(t *testing.T) {
	keywords := extractKeywords("ABC-100 マウス の 在庫")

	byText := make(map[string]bool)
	for _, kw := range keywords {
		byText[kw.Text] = kw.Identifier
	}

	require.Contains(t, byText, "abc-100")
	assert.True(t, byText["abc-100"], "product code should be identifier-weighted")
	require.Contains(t, byText, "マウス")
	assert.False(t, byText["マウス"])
	require.Contains(t, byText, "在庫")
	// Single-rune CJK particles are dropped.
	assert.NotContains(t, byText, "の")
}

func TestExtractKeywords_FullWidthFolded(t *testing.T) {
	keywords := extractKeywords("ＡＢＣ１００")
	require.NotEmpty(t, keywords)
	assert.Equal(t, "abc100", keywords[0].Text)
	assert.True(t, keywords[0].Identifier)
}

func TestExtractKeywords_DedupAcrossVariants(t *testing.T) {
	keywords := extractKeywords("mouse guide", "mouse guide", "MOUSE GUIDE")
	assert.Len(t, keywords, 2)
}

func TestExtractKeywords_HalfWidthKanaWidened(t *testing.T) {
	keywords := extractKeywords("ﾜｲﾔﾚｽﾏｳｽ")
	require.NotEmpty(t, keywords)
	assert.Equal(t, "ワイヤレスマウス", keywords[0].Text)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "abc100", normalizeText("ＡＢＣ　１００"))
	// Katakana folds to hiragana so script choice never blocks a match.
	assert.Equal(t, "まうす", normalizeText("マウス"))
	assert.Equal(t, normalizeText("ﾏｳｽ"), normalizeText("まうす"))
}
