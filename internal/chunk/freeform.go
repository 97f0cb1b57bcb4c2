package chunk

import (
	"strings"
	"unicode/utf8"
)

// splitFreeform slides a window over prose. Each piece targets
// TargetSize bytes with Overlap bytes repeated from the previous
// piece. Cuts prefer a newline or space within the window's tail;
// failing that the piece is hard-cut at MaxSize, backed off to the
// nearest space at or above MinCutSize.
func (c *Chunker) splitFreeform(text string) []Piece {
	var pieces []Piece
	pos := 0

	for pos < len(text) {
		remaining := len(text) - pos
		if remaining <= c.opts.MaxSize {
			pieces = append(pieces, Piece{
				Content: text[pos:],
				Start:   pos,
				End:     len(text),
			})
			break
		}

		cut := c.findCut(text, pos)
		pieces = append(pieces, Piece{
			Content: text[pos:cut],
			Start:   pos,
			End:     cut,
		})

		next := cut - c.opts.Overlap
		// Never start a piece mid-rune.
		for next > pos && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= pos {
			// Always make forward progress.
			next = cut
		}
		pos = next
	}

	return pieces
}

// findCut returns the exclusive end offset for a piece starting at pos.
func (c *Chunker) findCut(text string, pos int) int {
	target := pos + c.opts.TargetSize

	// Natural cut: the last newline or space in the window's tail.
	tailStart := target - cutWindow
	if tailStart < pos {
		tailStart = pos
	}
	tail := text[tailStart:target]
	if i := strings.LastIndexAny(tail, "\n "); i >= 0 {
		return tailStart + i + 1
	}

	// Hard cut: extend to the maximum, backing off to a space at or
	// above the minimum.
	hard := pos + c.opts.MaxSize
	if hard > len(text) {
		hard = len(text)
	}
	floor := pos + c.opts.MinCutSize
	if i := strings.LastIndexAny(text[floor:hard], "\n "); i >= 0 {
		return floor + i + 1
	}
	// Never split a multi-byte rune.
	for hard > pos && !utf8.RuneStart(text[hard]) {
		hard--
	}
	return hard
}
