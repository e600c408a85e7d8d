// Package llm adapts a chat-model provider to the three capabilities the
// pipeline consumes: generate, analyze and health.
package llm

import "context"

// Analysis is a successful analyze outcome. Analysis text must be non-empty
// for the call to count as a success.
type Analysis struct {
	Analysis         string   `json:"analysis"`
	SuggestedQueries []string `json:"suggested_queries,omitempty"`
}

// Health reports whether the model backend currently answers.
type Health struct {
	Status string `json:"status"`
	Model  string `json:"model"`
	Ready  bool   `json:"ready"`
}

// Client is the language-model capability.
type Client interface {
	// Generate produces free-form text for a prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// Analyze answers a query against an assembled context block and may
	// propose follow-up queries.
	Analyze(ctx context.Context, query, contextBlock string) (*Analysis, error)
	// Health probes the backend.
	Health(ctx context.Context) *Health
}

// SynthesisError marks a model failure (error, timeout, empty output). It is
// recovered locally by the deterministic fallback and never shown to users.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string {
	return "model synthesis failed: " + e.Err.Error()
}

func (e *SynthesisError) Unwrap() error { return e.Err }
