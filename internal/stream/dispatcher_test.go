package stream

import (
	"context"
	"errors"
	"strings"
	"testing"

	"inquest/internal/models"
)

func collectEmitter(events *[]Event) EmitFunc {
	return func(ev Event) error {
		*events = append(*events, ev)
		return nil
	}
}

func TestSplitChunksReassembly(t *testing.T) {
	answer := "Based on the documents, here's what I found about John Marlowe in the deposition records"
	chunks := SplitChunks(answer, 5)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks for 15 words, got %d: %#v", len(chunks), chunks)
	}
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c)
	}
	if sb.String() != answer {
		t.Fatalf("concatenated chunks differ from answer:\n%q\nvs\n%q", sb.String(), answer)
	}
	if strings.HasSuffix(chunks[len(chunks)-1], " ") {
		t.Fatalf("last chunk must not carry a trailing space: %q", chunks[len(chunks)-1])
	}
}

func TestSplitChunksShortAnswer(t *testing.T) {
	chunks := SplitChunks("one two", 5)
	if len(chunks) != 1 || chunks[0] != "one two" {
		t.Fatalf("expected single chunk, got %#v", chunks)
	}
	if SplitChunks("   ", 5) != nil {
		t.Fatalf("blank text should yield no chunks")
	}
}

func TestStreamResultEventOrder(t *testing.T) {
	result := &models.QueryResult{
		Answer:           "alpha beta gamma delta epsilon zeta",
		Sources:          []models.Source{{DocID: "1", Title: "Doc"}},
		SuggestedQueries: []string{"What evidence exists?"},
	}

	var events []Event
	d := NewDispatcher(5, 0)
	if err := d.StreamResult(context.Background(), result, collectEmitter(&events)); err != nil {
		t.Fatalf("StreamResult: %v", err)
	}

	wantTypes := []EventType{EventChunk, EventChunk, EventSources, EventSuggestions}
	if len(events) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d: %#v", len(wantTypes), len(events), events)
	}
	for i, typ := range wantTypes {
		if events[i].Type != typ {
			t.Fatalf("event %d = %s, want %s", i, events[i].Type, typ)
		}
	}
}

func TestStreamResultOmitsEmptySections(t *testing.T) {
	result := &models.QueryResult{
		Answer:           "short answer",
		Sources:          []models.Source{},
		SuggestedQueries: []string{},
	}

	var events []Event
	d := NewDispatcher(5, 0)
	if err := d.StreamResult(context.Background(), result, collectEmitter(&events)); err != nil {
		t.Fatalf("StreamResult: %v", err)
	}
	for _, ev := range events {
		if ev.Type == EventSources || ev.Type == EventSuggestions {
			t.Fatalf("empty section emitted: %s", ev.Type)
		}
	}
}

func TestStreamResultStopsOnEmitError(t *testing.T) {
	result := &models.QueryResult{Answer: strings.Repeat("word ", 20)}

	calls := 0
	failAfter := 2
	emit := func(Event) error {
		calls++
		if calls > failAfter {
			return errors.New("client gone")
		}
		return nil
	}

	d := NewDispatcher(5, 0)
	if err := d.StreamResult(context.Background(), result, emit); err == nil {
		t.Fatalf("expected emit error to propagate")
	}
	if calls != failAfter+1 {
		t.Fatalf("expected streaming to stop after the failed emit, got %d calls", calls)
	}
}

func TestStreamResultHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	result := &models.QueryResult{Answer: strings.Repeat("word ", 30)}

	emit := func(Event) error {
		cancel()
		return nil
	}
	d := NewDispatcher(5, 10_000_000) // paced, so cancellation is observed between chunks
	if err := d.StreamResult(ctx, result, emit); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
