// Package rag turns ranked retrieval results into a model context block and
// builds the answer for a turn, with a deterministic fallback when the model
// is unavailable.
package rag

import (
	"fmt"
	"strings"

	"inquest/internal/models"
	"inquest/internal/search"
)

// contextSeparator delimits document units inside the context block. The
// chosen sequence never appears inside excerpts.
const contextSeparator = "\n---\n"

// Assembled pairs the model input block with the parallel citation list.
type Assembled struct {
	ContextBlock string
	Sources      []models.Source
}

// Assemble renders up to maxResults results as indexed context units and a
// Source list with excerpts truncated to excerptLen for display. Result
// order (rank descending) is preserved in both outputs.
func Assemble(results []search.Result, maxResults, excerptLen int) Assembled {
	if maxResults <= 0 {
		maxResults = 5
	}
	if excerptLen <= 0 {
		excerptLen = 200
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	parts := make([]string, 0, len(results))
	sources := make([]models.Source, 0, len(results))
	for i, r := range results {
		parts = append(parts, fmt.Sprintf("[#%d %s]\n%s", i+1, r.Title, r.Excerpt))
		sources = append(sources, models.Source{
			DocID:   r.DocID,
			Title:   r.Title,
			Excerpt: truncate(r.Excerpt, excerptLen),
			Rank:    r.Rank,
		})
	}

	return Assembled{
		ContextBlock: strings.Join(parts, contextSeparator),
		Sources:      sources,
	}
}

// truncate keeps the prefix and appends an ellipsis when s exceeds maxLen.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
