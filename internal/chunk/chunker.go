// Package chunk splits document text into retrievable pieces. Two paths
// exist: record-oriented text (structured rows keyed by identifiers) is
// split on record boundaries, free-form prose by a sliding window.
package chunk

import (
	"strings"
)

// Chunk size defaults, in UTF-8 bytes. Cuts never split a rune, so a
// piece may come in a few bytes under its nominal size.
const (
	DefaultTargetSize    = 700 // Sliding window target
	DefaultMaxSize       = 800 // Absolute maximum, atomic records excepted
	DefaultMinCutSize    = 600 // Back-off floor for hard cuts
	DefaultOverlap       = 50  // Overlap between consecutive free-form pieces
	DefaultMinRecordSize = 400 // Minimum before an identifier change may cut
	cutWindow            = 50  // Tail region searched for a natural cut point
)

// Hint tells the chunker which path to take.
type Hint string

const (
	HintAuto     Hint = "auto"
	HintRecord   Hint = "record"
	HintFreeform Hint = "freeform"
)

// Piece is one chunk of a document. Start and End are byte offsets into
// the original text; consecutive free-form pieces overlap, so
// Start may precede the previous piece's End.
type Piece struct {
	Index   int
	Content string
	Start   int
	End     int
	Record  bool
}

// Options configures chunk sizing. All sizes are UTF-8 bytes.
type Options struct {
	TargetSize    int
	MaxSize       int
	MinCutSize    int
	Overlap       int
	MinRecordSize int
}

// Chunker splits document text into ordered pieces.
type Chunker struct {
	opts Options
}

// New creates a chunker, filling zero options with defaults.
func New(opts Options) *Chunker {
	if opts.TargetSize <= 0 {
		opts.TargetSize = DefaultTargetSize
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.MinCutSize <= 0 {
		opts.MinCutSize = DefaultMinCutSize
	}
	if opts.Overlap <= 0 {
		opts.Overlap = DefaultOverlap
	}
	if opts.MinRecordSize <= 0 {
		opts.MinRecordSize = DefaultMinRecordSize
	}
	return &Chunker{opts: opts}
}

// Split chunks text into pieces indexed 0..N-1. An empty or
// whitespace-only document yields no pieces.
func (c *Chunker) Split(text string, hint Hint) []Piece {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var pieces []Piece
	switch {
	case hint == HintRecord,
		hint != HintFreeform && IsRecordOriented(text):
		pieces = c.splitRecords(text)
	default:
		pieces = c.splitFreeform(text)
	}

	for i := range pieces {
		pieces[i].Index = i
	}
	return pieces
}
