package search

import "errors"

// Degradable pipeline conditions. Only corpus-store failures propagate
// to the caller; everything below costs at most one stage.
var (
	// ErrStrategyTimeout marks a strategy that missed its deadline.
	ErrStrategyTimeout = errors.New("strategy timed out")

	// ErrMalformedRerank marks unusable rerank output; pre-rerank order
	// is kept.
	ErrMalformedRerank = errors.New("malformed rerank output")
)
