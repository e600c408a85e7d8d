package rag

import (
	"fmt"
	"strings"
	"unicode"

	"inquest/internal/search"
)

const (
	fallbackBodyResults  = 3
	fallbackExcerptLimit = 300
	maxSuggestions       = 3
)

var genericFollowups = []string{
	"What evidence exists?",
	"Who else was involved?",
	"What are the key dates?",
}

// buildFallbackAnswer deterministically synthesizes an answer from the raw
// results when the model is unavailable.
func buildFallbackAnswer(query string, results []search.Result) string {
	var answer strings.Builder

	switch Classify(query) {
	case ClassWhoOrConnection:
		answer.WriteString(fmt.Sprintf("Based on the documents, here's what I found about **%s**:\n\n", extractSubject(query)))
	case ClassWhat:
		answer.WriteString(fmt.Sprintf("Here's the relevant information from %d source(s):\n\n", len(results)))
	default:
		answer.WriteString(fmt.Sprintf("Found %d relevant document(s). Top result: **%s**\n\n", len(results), results[0].Title))
	}

	for i, r := range results {
		if i >= fallbackBodyResults {
			break
		}
		excerpt := cleanExcerpt(r.Excerpt)
		if len(excerpt) > fallbackExcerptLimit {
			excerpt = excerpt[:fallbackExcerptLimit] + "..."
		}
		answer.WriteString(fmt.Sprintf("**[%d] %s**\n%s\n\n", i+1, r.Title, excerpt))
	}

	if len(results) > fallbackBodyResults {
		answer.WriteString(fmt.Sprintf("...and %d more sources available.", len(results)-fallbackBodyResults))
	}

	return strings.TrimRight(answer.String(), "\n")
}

// extractSubject pulls the likely subject words out of the query, skipping
// interrogatives and filler.
func extractSubject(query string) string {
	skipWords := map[string]bool{
		"who": true, "whom": true, "what": true, "where": true, "when": true,
		"how": true, "is": true, "are": true, "was": true, "were": true,
		"the": true, "a": true, "an": true, "of": true, "to": true, "in": true,
		"about": true, "tell": true, "me": true,
	}

	var subjects []string
	for _, w := range strings.Fields(query) {
		w = strings.Trim(w, ".,!?;:'\"()")
		if len(w) <= 2 || skipWords[strings.ToLower(w)] {
			continue
		}
		subjects = append(subjects, capitalize(w))
		if len(subjects) == 3 {
			break
		}
	}
	if len(subjects) == 0 {
		return "this topic"
	}
	return strings.Join(subjects, " ")
}

// cleanExcerpt strips highlight markers so the fallback body cannot nest
// emphasis, and collapses whitespace.
func cleanExcerpt(excerpt string) string {
	excerpt = strings.ReplaceAll(excerpt, "**", "")
	return strings.Join(strings.Fields(excerpt), " ")
}

// fallbackSuggestions scans result titles for capitalized tokens absent from
// the query and formats them as follow-up questions, padding with fixed
// generics. Candidates are taken in first-seen order (results in rank order,
// tokens left to right) so the output is deterministic.
func fallbackSuggestions(query string, results []search.Result) []string {
	queryLower := strings.ToLower(query)
	seen := make(map[string]bool)
	suggestions := make([]string, 0, maxSuggestions)

	for _, r := range results {
		if len(suggestions) >= maxSuggestions {
			break
		}
		for _, w := range strings.Fields(r.Title) {
			if len(suggestions) >= maxSuggestions {
				break
			}
			w = strings.Trim(w, ".,!?;:'\"()")
			if len(w) <= 3 || w[0] < 'A' || w[0] > 'Z' {
				continue
			}
			key := strings.ToLower(w)
			if seen[key] || strings.Contains(queryLower, key) {
				continue
			}
			seen[key] = true
			suggestions = append(suggestions, fmt.Sprintf("What is %s's connection to this case?", w))
		}
	}

	for _, g := range genericFollowups {
		if len(suggestions) >= maxSuggestions {
			break
		}
		suggestions = append(suggestions, g)
	}

	return suggestions
}

func capitalize(w string) string {
	runes := []rune(strings.ToLower(w))
	if len(runes) == 0 {
		return w
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
