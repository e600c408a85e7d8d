package llm

import (
	"context"
	"errors"
)

// Unavailable stands in when no model backend could be configured. Every
// call fails, which routes synthesis to the extractive fallback.
type Unavailable struct {
	Reason string
}

func (u *Unavailable) Generate(ctx context.Context, prompt string) (string, error) {
	return "", &SynthesisError{Err: errors.New("model backend unavailable: " + u.Reason)}
}

func (u *Unavailable) Analyze(ctx context.Context, query, contextBlock string) (*Analysis, error) {
	return nil, &SynthesisError{Err: errors.New("model backend unavailable: " + u.Reason)}
}

func (u *Unavailable) Health(ctx context.Context) *Health {
	return &Health{Status: "unavailable", Ready: false}
}
