package models

// Source is one citation attached to an answer. Excerpts are truncated for
// display; Rank preserves the retrieval backend's descending order.
type Source struct {
	DocID   string  `json:"doc_id"`
	Title   string  `json:"title"`
	Excerpt string  `json:"excerpt"`
	Rank    float64 `json:"rank"`
}

// QueryResult is the complete outcome of one turn: the answer text, its
// citations and up to three follow-up queries.
type QueryResult struct {
	Answer           string   `json:"answer"`
	Sources          []Source `json:"sources"`
	SuggestedQueries []string `json:"suggested_queries,omitempty"`
}
