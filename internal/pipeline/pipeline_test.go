package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"inquest/internal/llm"
	"inquest/internal/models"
	"inquest/internal/rag"
	"inquest/internal/search"
	"inquest/internal/session"
	"inquest/internal/stream"
)

type fakeSearcher struct {
	results []search.Result
	err     error
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

type fakeLLM struct {
	analysis *llm.Analysis
	err      error
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeLLM) Analyze(ctx context.Context, query, contextBlock string) (*llm.Analysis, error) {
	return f.analysis, f.err
}

func (f *fakeLLM) Health(ctx context.Context) *llm.Health {
	return &llm.Health{Ready: f.err == nil}
}

func newTestPipeline(searcher search.Searcher, model llm.Client) *Pipeline {
	synth := rag.NewSynthesizer(model, time.Second, nil)
	return New(session.NewStore(), searcher, synth, stream.NewDispatcher(5, 0), Options{}, nil)
}

func eventTypes(events []stream.Event) []stream.EventType {
	types := make([]stream.EventType, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}

func TestRunTurnEventSequence(t *testing.T) {
	searcher := &fakeSearcher{results: []search.Result{
		{DocID: "1", Title: "Marlowe Deposition", Excerpt: "met the supplier", Rank: 2},
		{DocID: "2", Title: "Bank Records", Excerpt: "three transfers", Rank: 1},
	}}
	model := &fakeLLM{analysis: &llm.Analysis{
		Analysis:         "Marlowe met the supplier before the transfers [1][2].",
		SuggestedQueries: []string{"What happened next?"},
	}}
	p := newTestPipeline(searcher, model)

	var events []stream.Event
	result, sessionID, err := p.RunTurn(context.Background(), "", "who is Marlowe", func(ev stream.Event) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if sessionID == "" {
		t.Fatalf("expected a session id")
	}
	if result.Answer != "Marlowe met the supplier before the transfers [1][2]." {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}

	types := eventTypes(events)
	if types[0] != stream.EventStart {
		t.Fatalf("first event must be start, got %s", types[0])
	}
	if types[1] != stream.EventStatus || types[2] != stream.EventStatus {
		t.Fatalf("expected searching and analyzing status events, got %v", types)
	}
	if types[len(types)-1] != stream.EventDone {
		t.Fatalf("last event must be done, got %s", types[len(types)-1])
	}
	var sawChunk, sawSources, sawSuggestions bool
	for _, typ := range types {
		switch typ {
		case stream.EventChunk:
			sawChunk = true
		case stream.EventSources:
			if !sawChunk {
				t.Fatalf("sources emitted before chunks: %v", types)
			}
			sawSources = true
		case stream.EventSuggestions:
			if !sawSources {
				t.Fatalf("suggestions emitted before sources: %v", types)
			}
			sawSuggestions = true
		}
	}
	if !sawChunk || !sawSources || !sawSuggestions {
		t.Fatalf("missing event kinds in %v", types)
	}

	// Both turn messages land in history, answer delivered first.
	se, ok := p.Sessions().Get(sessionID)
	if !ok {
		t.Fatalf("session not stored")
	}
	if len(se.Messages) != 2 {
		t.Fatalf("expected 2 history messages, got %d", len(se.Messages))
	}
	if se.Messages[0].Role != models.RoleUser || se.Messages[0].Content != "who is Marlowe" {
		t.Fatalf("unexpected user message: %+v", se.Messages[0])
	}
	if se.Messages[1].Role != models.RoleAssistant || se.Messages[1].Content != result.Answer {
		t.Fatalf("unexpected assistant message: %+v", se.Messages[1])
	}
	if len(se.Messages[1].Sources) != 2 {
		t.Fatalf("assistant message must carry sources, got %d", len(se.Messages[1].Sources))
	}
}

func TestRunTurnZeroResults(t *testing.T) {
	p := newTestPipeline(&fakeSearcher{}, &fakeLLM{err: errors.New("must not be called")})

	var events []stream.Event
	result, sessionID, err := p.RunTurn(context.Background(), "", "tungsten carbide shipments", func(ev stream.Event) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if result.Answer != rag.NoResultsAnswer {
		t.Fatalf("expected fixed no-results answer, got %q", result.Answer)
	}

	for _, ev := range events {
		if ev.Type == stream.EventSources || ev.Type == stream.EventSuggestions {
			t.Fatalf("zero-result turn emitted %s", ev.Type)
		}
	}
	types := eventTypes(events)
	if types[len(types)-1] != stream.EventDone {
		t.Fatalf("expected terminal done event, got %v", types)
	}

	// The no-results reply is still part of history.
	se, _ := p.Sessions().Get(sessionID)
	if len(se.Messages) != 2 || se.Messages[1].Content != rag.NoResultsAnswer {
		t.Fatalf("no-results turn must still append history: %+v", se.Messages)
	}
}

func TestRunTurnRetrievalFailureFoldsToZeroResults(t *testing.T) {
	searcher := &fakeSearcher{err: &search.RetrievalError{Err: errors.New("fts offline")}}
	p := newTestPipeline(searcher, &fakeLLM{})

	result, _, err := p.RunTurn(context.Background(), "", "warehouse fire", func(stream.Event) error { return nil })
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if result.Answer != rag.NoResultsAnswer {
		t.Fatalf("backend failure must read as zero results, got %q", result.Answer)
	}
	if strings.Contains(result.Answer, "fts") {
		t.Fatalf("internal error text leaked: %q", result.Answer)
	}
}

func TestRunTurnBusySession(t *testing.T) {
	p := newTestPipeline(&fakeSearcher{}, &fakeLLM{})
	se := p.Sessions().GetOrCreate("")
	if err := p.Sessions().BeginTurn(se.ID); err != nil {
		t.Fatalf("BeginTurn: %v", err)
	}

	var events []stream.Event
	_, _, err := p.RunTurn(context.Background(), se.ID, "who is Marlowe", func(ev stream.Event) error {
		events = append(events, ev)
		return nil
	})
	if !errors.Is(err, session.ErrTurnInFlight) {
		t.Fatalf("expected ErrTurnInFlight, got %v", err)
	}
	if len(events) != 1 || events[0].Type != stream.EventError {
		t.Fatalf("expected a single error event, got %#v", events)
	}

	got, _ := p.Sessions().Get(se.ID)
	if len(got.Messages) != 0 {
		t.Fatalf("rejected turn must not touch history")
	}
}

func TestRunTurnEmptyQuery(t *testing.T) {
	p := newTestPipeline(&fakeSearcher{}, &fakeLLM{})

	var events []stream.Event
	_, _, err := p.RunTurn(context.Background(), "", "   ", func(ev stream.Event) error {
		events = append(events, ev)
		return nil
	})
	if !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
	if len(events) != 1 || events[0].Type != stream.EventError {
		t.Fatalf("expected a single error event, got %#v", events)
	}
	if p.Sessions().Count() != 0 {
		t.Fatalf("blank query must not create a session")
	}
}

func TestRunTurnGreetingSkipsRetrieval(t *testing.T) {
	searcher := &fakeSearcher{}
	p := newTestPipeline(searcher, &fakeLLM{})

	var events []stream.Event
	result, _, err := p.RunTurn(context.Background(), "", "hello", func(ev stream.Event) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if len(searcher.queries) != 0 {
		t.Fatalf("greeting must not hit the corpus")
	}
	if !strings.HasPrefix(result.Answer, "Hello!") {
		t.Fatalf("unexpected greeting answer: %q", result.Answer)
	}
	for _, ev := range events {
		if ev.Type == stream.EventStatus {
			t.Fatalf("greeting turn emitted a status event")
		}
	}
}

func TestRunTurnDisconnectLeavesNoHistory(t *testing.T) {
	searcher := &fakeSearcher{results: []search.Result{
		{DocID: "1", Title: "Marlowe Deposition", Excerpt: "met the supplier", Rank: 1},
	}}
	p := newTestPipeline(searcher, &fakeLLM{analysis: &llm.Analysis{Analysis: "a long answer with many words to split across chunks"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sessionID string
	_, sid, err := p.RunTurn(ctx, "", "who is Marlowe", func(ev stream.Event) error {
		if ev.Type == stream.EventChunk {
			// Client goes away mid-stream.
			cancel()
			return context.Canceled
		}
		return nil
	})
	sessionID = sid
	if err == nil {
		t.Fatalf("expected the turn to fail after disconnect")
	}

	se, ok := p.Sessions().Get(sessionID)
	if !ok {
		t.Fatalf("session should survive the aborted turn")
	}
	if len(se.Messages) != 0 {
		t.Fatalf("aborted turn must leave no history, got %d messages", len(se.Messages))
	}

	// The session accepts a new turn immediately after the abort.
	if err := p.Sessions().BeginTurn(sessionID); err != nil {
		t.Fatalf("turn guard not released after abort: %v", err)
	}
}
