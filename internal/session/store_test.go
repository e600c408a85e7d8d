package session

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"inquest/internal/models"
)

func TestGetOrCreateNewSession(t *testing.T) {
	store := NewStore()

	se := store.GetOrCreate("")
	if se.ID == "" {
		t.Fatalf("expected generated session id")
	}
	if se.Title != defaultTitle {
		t.Fatalf("expected default title %q, got %q", defaultTitle, se.Title)
	}
	if len(se.Messages) != 0 {
		t.Fatalf("expected empty history, got %d messages", len(se.Messages))
	}

	again := store.GetOrCreate(se.ID)
	if again.ID != se.ID {
		t.Fatalf("expected same session for known id, got %s vs %s", again.ID, se.ID)
	}
	if store.Count() != 1 {
		t.Fatalf("expected 1 session, got %d", store.Count())
	}
}

func TestGetOrCreateUnknownIDCreatesFresh(t *testing.T) {
	store := NewStore()
	se := store.GetOrCreate("no-such-session")
	if se.ID == "no-such-session" {
		t.Fatalf("unknown id must not be adopted as the new session id")
	}
	if _, ok := store.Get("no-such-session"); ok {
		t.Fatalf("unknown id should not resolve to a session")
	}
}

func TestAppendSetsTitleFromFirstUserMessage(t *testing.T) {
	store := NewStore()
	se := store.GetOrCreate("")

	if err := store.Append(se.ID, models.Message{Role: models.RoleUser, Content: "who is John Marlowe"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, ok := store.Get(se.ID)
	if !ok {
		t.Fatalf("session vanished")
	}
	if got.Title != "John Marlowe" {
		t.Fatalf("expected derived title %q, got %q", "John Marlowe", got.Title)
	}

	// Later user messages must not retitle.
	if err := store.Append(se.ID, models.Message{Role: models.RoleUser, Content: "what about the warehouse"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, _ = store.Get(se.ID)
	if got.Title != "John Marlowe" {
		t.Fatalf("title changed on second message: %q", got.Title)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
}

func TestAppendUnknownSession(t *testing.T) {
	store := NewStore()
	if err := store.Append("missing", models.Message{Role: models.RoleUser, Content: "hi"}); err == nil {
		t.Fatalf("expected error appending to unknown session")
	}
}

func TestTurnGuard(t *testing.T) {
	store := NewStore()
	se := store.GetOrCreate("")

	if err := store.BeginTurn(se.ID); err != nil {
		t.Fatalf("first BeginTurn: %v", err)
	}
	if err := store.BeginTurn(se.ID); err != ErrTurnInFlight {
		t.Fatalf("expected ErrTurnInFlight, got %v", err)
	}
	store.EndTurn(se.ID)
	if err := store.BeginTurn(se.ID); err != nil {
		t.Fatalf("BeginTurn after EndTurn: %v", err)
	}

	// Other sessions are unaffected by a busy one.
	other := store.GetOrCreate("")
	if err := store.BeginTurn(other.ID); err != nil {
		t.Fatalf("BeginTurn on second session: %v", err)
	}
}

func TestDelete(t *testing.T) {
	store := NewStore()
	se := store.GetOrCreate("")
	if !store.Delete(se.ID) {
		t.Fatalf("expected delete to succeed")
	}
	if store.Delete(se.ID) {
		t.Fatalf("expected second delete to report missing")
	}
	if _, ok := store.Get(se.ID); ok {
		t.Fatalf("deleted session still resolvable")
	}
}

func TestListOrder(t *testing.T) {
	store := NewStore()
	a := store.GetOrCreate("")
	b := store.GetOrCreate("")

	list := store.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}
	ids := map[string]bool{list[0].ID: true, list[1].ID: true}
	if !ids[a.ID] || !ids[b.ID] {
		t.Fatalf("list missing sessions: %#v", list)
	}
	if list[1].CreatedAt.Before(list[0].CreatedAt) {
		t.Fatalf("expected oldest-first ordering")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	store := NewStore()
	se := store.GetOrCreate("")
	if err := store.Append(se.ID, models.Message{Role: models.RoleUser, Content: "first", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("append: %v", err)
	}

	snap, _ := store.Get(se.ID)
	snap.Messages[0].Content = "tampered"
	snap.Title = "tampered"

	fresh, _ := store.Get(se.ID)
	if fresh.Messages[0].Content != "first" {
		t.Fatalf("snapshot mutation leaked into store")
	}
	if fresh.Title == "tampered" {
		t.Fatalf("title mutation leaked into store")
	}
}

func TestGenerateTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"who is John Marlowe", "John Marlowe"},
		{"tell me about the warehouse fire", "The warehouse fire"},
		{"bank records", "Bank records"},
		{"   ", defaultTitle},
	}
	for _, tc := range cases {
		if got := generateTitle(tc.in); got != tc.want {
			t.Errorf("generateTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	long := generateTitle(strings.Repeat("a", 80))
	if len(long) != 50 || !strings.HasSuffix(long, "...") {
		t.Errorf("expected 50-char ellipsised title, got %q (len %d)", long, len(long))
	}

	// Truncation counts runes, so multibyte input stays valid UTF-8.
	wide := generateTitle(strings.Repeat("é", 60))
	if !utf8.ValidString(wide) {
		t.Errorf("truncated title is not valid UTF-8: %q", wide)
	}
	if want := "É" + strings.Repeat("é", 46) + "..."; wide != want {
		t.Errorf("generateTitle long multibyte = %q, want %q", wide, want)
	}
}
