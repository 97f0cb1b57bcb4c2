package chunk

import "strings"

// splitRecords walks lines and cuts on record boundaries. A boundary is
// forced when the record identifier changes and the current piece has
// reached the minimum size, or when the piece would exceed the maximum.
// Lines sharing one identifier stay together unless the maximum forces
// a cut.
func (c *Chunker) splitRecords(text string) []Piece {
	lines := strings.SplitAfter(text, "\n")

	var pieces []Piece
	var buf strings.Builder
	start := 0
	offset := 0
	currentID := ""

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		pieces = append(pieces, Piece{
			Content: buf.String(),
			Start:   start,
			End:     start + buf.Len(),
			Record:  true,
		})
		buf.Reset()
	}

	for _, line := range lines {
		if line == "" {
			continue
		}
		id := lineIdentifier(line)

		switch {
		case buf.Len() > 0 && buf.Len()+len(line) > c.opts.MaxSize:
			// Size forces a cut even mid-record.
			flush()
			start = offset
		case buf.Len() >= c.opts.MinRecordSize && id != "" && id != currentID:
			flush()
			start = offset
		}

		if id != "" {
			currentID = id
		}
		buf.WriteString(line)
		offset += len(line)
	}
	flush()

	return pieces
}
