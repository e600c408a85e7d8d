package rag

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"inquest/internal/llm"
	"inquest/internal/models"
	"inquest/internal/search"
)

// NoResultsAnswer is the fixed terminal reply when retrieval finds nothing.
const NoResultsAnswer = "I couldn't find relevant information in the documents for that query. Try rephrasing or using different keywords."

// Synthesizer builds the answer for a turn: model analysis when available,
// deterministic fallback otherwise.
type Synthesizer struct {
	llm        llm.Client
	llmTimeout time.Duration
	log        *slog.Logger
}

func NewSynthesizer(client llm.Client, llmTimeout time.Duration, log *slog.Logger) *Synthesizer {
	if llmTimeout <= 0 {
		llmTimeout = 120 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Synthesizer{llm: client, llmTimeout: llmTimeout, log: log}
}

// Synthesize is total: it returns a well-formed QueryResult for every
// combination of result count and model outcome, and never errors. Model
// failures (error, timeout, empty analysis) select the fallback path.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, results []search.Result, asm Assembled) *models.QueryResult {
	if len(results) == 0 {
		return &models.QueryResult{
			Answer:           NoResultsAnswer,
			Sources:          []models.Source{},
			SuggestedQueries: []string{},
		}
	}

	llmCtx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()

	analysis, err := s.llm.Analyze(llmCtx, query, asm.ContextBlock)
	if err != nil || analysis == nil || analysis.Analysis == "" {
		if err != nil {
			s.log.Warn("model analyze failed, using fallback", "error", err)
		}
		return &models.QueryResult{
			Answer:           buildFallbackAnswer(query, results),
			Sources:          asm.Sources,
			SuggestedQueries: fallbackSuggestions(query, results),
		}
	}

	return &models.QueryResult{
		Answer:           analysis.Analysis,
		Sources:          asm.Sources,
		SuggestedQueries: dedupeSuggestions(analysis.SuggestedQueries, query),
	}
}

// dedupeSuggestions drops empty entries, duplicates and anything matching
// the triggering query, all case-insensitively, and caps the list.
func dedupeSuggestions(suggestions []string, query string) []string {
	queryLower := strings.ToLower(strings.TrimSpace(query))
	seen := make(map[string]bool)
	out := make([]string, 0, maxSuggestions)
	for _, sg := range suggestions {
		sg = strings.TrimSpace(sg)
		if sg == "" {
			continue
		}
		key := strings.ToLower(sg)
		if key == queryLower || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, sg)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}
