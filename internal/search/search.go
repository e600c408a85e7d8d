// Package search defines the retrieval capability consumed by the query
// pipeline. The ranking backend itself lives behind the Searcher interface.
package search

import "context"

// Result is one ranked document hit.
type Result struct {
	DocID   string  `json:"doc_id"`
	Title   string  `json:"title"`
	Excerpt string  `json:"excerpt"`
	Rank    float64 `json:"rank"`
}

// Searcher returns ranked results, highest rank first. An empty slice means
// nothing matched; errors mean the backend itself failed.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// RetrievalError marks a backend failure (unreachable, timeout). Callers
// recover from it locally by treating the turn as having zero results.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string {
	return "retrieval backend unavailable: " + e.Err.Error()
}

func (e *RetrievalError) Unwrap() error { return e.Err }
