// Package pipeline orchestrates one turn: session lookup, retrieval,
// context assembly, synthesis, streaming and history append.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"inquest/internal/models"
	"inquest/internal/rag"
	"inquest/internal/search"
	"inquest/internal/session"
	"inquest/internal/stream"
)

// Fixed user-visible failure vocabulary. Internal errors are logged, never
// forwarded.
const (
	msgTurnBusy     = "another question is already being answered for this session"
	msgEmptyQuery   = "a question is required"
	greetingAnswer  = "Hello! I can search the case documents and analyze what they contain. Ask me a question to get started."
	statusSearching = "Searching documents..."
	statusAnalyzing = "Analyzing documents..."
)

// ErrEmptyQuery rejects blank submissions before any work happens.
var ErrEmptyQuery = errors.New("empty query")

var greetings = []string{"hello", "hi", "hey", "good morning", "good evening", "greetings"}

type Options struct {
	MaxResults    int
	ExcerptLength int
	SearchTimeout time.Duration
}

// Pipeline runs turns against a session store, a retrieval backend and a
// synthesizer. One Pipeline serves all sessions; per-session serialization
// is enforced by the store's turn guard.
type Pipeline struct {
	sessions   *session.Store
	searcher   search.Searcher
	synth      *rag.Synthesizer
	dispatcher *stream.Dispatcher
	opts       Options
	log        *slog.Logger
}

func New(sessions *session.Store, searcher search.Searcher, synth *rag.Synthesizer, dispatcher *stream.Dispatcher, opts Options, log *slog.Logger) *Pipeline {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	if opts.ExcerptLength <= 0 {
		opts.ExcerptLength = 200
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		sessions:   sessions,
		searcher:   searcher,
		synth:      synth,
		dispatcher: dispatcher,
		opts:       opts,
		log:        log,
	}
}

// Sessions exposes the underlying store for read endpoints.
func (p *Pipeline) Sessions() *session.Store { return p.sessions }

// RunTurn executes one complete turn and emits its event sequence through
// emit. History is appended only after the full answer has been delivered,
// so a client that disconnects mid-stream leaves no trace of the turn. The
// returned session id identifies the (possibly freshly created) session.
func (p *Pipeline) RunTurn(ctx context.Context, sessionID, query string, emit stream.EmitFunc) (*models.QueryResult, string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		_ = emit(stream.Error(msgEmptyQuery))
		return nil, "", ErrEmptyQuery
	}

	se := p.sessions.GetOrCreate(sessionID)

	if err := p.sessions.BeginTurn(se.ID); err != nil {
		_ = emit(stream.Error(msgTurnBusy))
		return nil, se.ID, err
	}
	defer p.sessions.EndTurn(se.ID)

	if err := emit(stream.Start(se.ID, query)); err != nil {
		return nil, se.ID, err
	}

	result, err := p.answer(ctx, query, emit)
	if err != nil {
		return nil, se.ID, err
	}

	if err := p.dispatcher.StreamResult(ctx, result, emit); err != nil {
		return nil, se.ID, err
	}
	if ctx.Err() != nil {
		return nil, se.ID, ctx.Err()
	}

	now := time.Now().UTC()
	if err := p.sessions.Append(se.ID, models.Message{
		Role:      models.RoleUser,
		Content:   query,
		CreatedAt: now,
	}); err != nil {
		p.log.Error("append user message failed", "session", se.ID, "error", err)
	}
	if err := p.sessions.Append(se.ID, models.Message{
		Role:      models.RoleAssistant,
		Content:   result.Answer,
		Sources:   result.Sources,
		CreatedAt: now,
	}); err != nil {
		p.log.Error("append assistant message failed", "session", se.ID, "error", err)
	}

	if err := emit(stream.Done(se.ID)); err != nil {
		return result, se.ID, err
	}
	return result, se.ID, nil
}

// answer produces the turn's QueryResult, emitting status events along the
// way. It only fails when the client is gone or the turn was cancelled.
func (p *Pipeline) answer(ctx context.Context, query string, emit stream.EmitFunc) (*models.QueryResult, error) {
	if isGreeting(query) {
		return &models.QueryResult{
			Answer:           greetingAnswer,
			Sources:          []models.Source{},
			SuggestedQueries: []string{},
		}, nil
	}

	if err := emit(stream.Status(statusSearching)); err != nil {
		return nil, err
	}

	results := p.retrieve(ctx, query)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	asm := rag.Assemble(results, p.opts.MaxResults, p.opts.ExcerptLength)

	if len(results) > 0 {
		if err := emit(stream.Status(statusAnalyzing)); err != nil {
			return nil, err
		}
	}

	result := p.synth.Synthesize(ctx, query, results, asm)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return result, nil
}

// retrieve runs the bounded search. Backend failures fold into the
// zero-results path; they are logged and never surfaced.
func (p *Pipeline) retrieve(ctx context.Context, query string) []search.Result {
	searchCtx, cancel := context.WithTimeout(ctx, p.opts.SearchTimeout)
	defer cancel()

	results, err := p.searcher.Search(searchCtx, query, p.opts.MaxResults)
	if err != nil {
		var re *search.RetrievalError
		if errors.As(err, &re) {
			p.log.Warn("retrieval backend failed, treating as zero results", "error", re.Err)
		} else {
			p.log.Warn("retrieval failed, treating as zero results", "error", err)
		}
		return nil
	}
	return results
}

func isGreeting(query string) bool {
	lower := strings.ToLower(strings.TrimSpace(query))
	for _, g := range greetings {
		if lower == g || strings.HasPrefix(lower, g+" ") || strings.HasPrefix(lower, g+"!") {
			return true
		}
	}
	return false
}
