package llm

import (
	"encoding/json"
	"strings"
)

// ParseAnalysis decodes a model reply into an Analysis. Models sometimes
// wrap the JSON in markdown fences or ignore the format entirely; in the
// latter case the whole reply becomes the analysis text with no suggestions.
func ParseAnalysis(raw string) *Analysis {
	text := strings.TrimSpace(raw)
	candidate := stripFences(text)

	var parsed Analysis
	if err := json.Unmarshal([]byte(candidate), &parsed); err == nil && parsed.Analysis != "" {
		parsed.Analysis = strings.TrimSpace(parsed.Analysis)
		return &parsed
	}

	return &Analysis{Analysis: text}
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
