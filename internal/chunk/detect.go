package chunk

import (
	"regexp"
	"strings"
)

// Patterns for structured record detection.
var (
	// Matches identifier-style codes: JAN-like digit runs, product codes
	// such as "AB-1234" or "SKU00042".
	identifierPattern = regexp.MustCompile(`\b[A-Za-z]{1,6}[-_]?[0-9]{2,}[0-9A-Za-z-]*\b|\b[0-9]{6,}\b`)

	// Column-style separators: tabs, pipes, or runs of 2+ spaces between
	// non-space text.
	columnSeparatorPattern = regexp.MustCompile(`\t|\||\S {2,}\S|\S,\S`)
)

// IsRecordOriented reports whether text looks like structured records:
// at least two distinct identifier patterns each appearing twice or
// more, plus column-style separators on a meaningful share of lines.
func IsRecordOriented(text string) bool {
	counts := make(map[string]int)
	for _, id := range identifierPattern.FindAllString(text, -1) {
		counts[id]++
	}

	repeated := 0
	for _, n := range counts {
		if n >= 2 {
			repeated++
		}
	}
	if repeated < 2 {
		return false
	}

	lines := strings.Split(text, "\n")
	nonEmpty, separated := 0, 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		nonEmpty++
		if columnSeparatorPattern.MatchString(line) {
			separated++
		}
	}
	if nonEmpty == 0 {
		return false
	}
	return separated*10 >= nonEmpty*3
}

// lineIdentifier returns the first identifier on a line, or "" when the
// line carries none and therefore continues the current record.
func lineIdentifier(line string) string {
	return identifierPattern.FindString(line)
}
