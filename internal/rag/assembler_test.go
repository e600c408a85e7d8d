package rag

import (
	"strings"
	"testing"

	"inquest/internal/search"
)

func TestAssemble(t *testing.T) {
	results := []search.Result{
		{DocID: "7", Title: "Marlowe Deposition", Excerpt: "met the supplier", Rank: 2.5},
		{DocID: "9", Title: "Bank Records", Excerpt: "three transfers", Rank: 1.25},
	}
	asm := Assemble(results, 5, 200)

	want := "[#1 Marlowe Deposition]\nmet the supplier\n---\n[#2 Bank Records]\nthree transfers"
	if asm.ContextBlock != want {
		t.Fatalf("context block mismatch:\n%q\nwant\n%q", asm.ContextBlock, want)
	}
	if len(asm.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(asm.Sources))
	}
	if asm.Sources[0].DocID != "7" || asm.Sources[0].Rank != 2.5 {
		t.Fatalf("source 0 mismatch: %+v", asm.Sources[0])
	}
	if asm.Sources[1].Title != "Bank Records" {
		t.Fatalf("source order not preserved: %+v", asm.Sources)
	}
}

func TestAssembleCapsResults(t *testing.T) {
	results := resultsN(8)
	asm := Assemble(results, 5, 200)
	if len(asm.Sources) != 5 {
		t.Fatalf("expected 5 sources, got %d", len(asm.Sources))
	}
	if strings.Contains(asm.ContextBlock, "Report 6") {
		t.Fatalf("result past the cap leaked into context block")
	}
}

func TestAssembleTruncatesSourceExcerpts(t *testing.T) {
	long := strings.Repeat("y", 250)
	asm := Assemble([]search.Result{{Title: "Doc", Excerpt: long}}, 5, 200)

	got := asm.Sources[0].Excerpt
	if len(got) != 200 || !strings.HasSuffix(got, "...") {
		t.Fatalf("expected 200-char ellipsised excerpt, got len %d", len(got))
	}
	// The model context keeps the full excerpt; only the citation is cut.
	if !strings.Contains(asm.ContextBlock, long) {
		t.Fatalf("context block should carry the untruncated excerpt")
	}
}

func TestAssembleEmpty(t *testing.T) {
	asm := Assemble(nil, 5, 200)
	if asm.ContextBlock != "" {
		t.Fatalf("expected empty context block, got %q", asm.ContextBlock)
	}
	if len(asm.Sources) != 0 {
		t.Fatalf("expected no sources, got %d", len(asm.Sources))
	}
}
