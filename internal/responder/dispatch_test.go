package responder

import "testing"

type staticResponder []string

func (s staticResponder) Responses(string) []string { return s }

func TestRespond_ConcatenatesInOrder(t *testing.T) {
	set := []Responder{
		staticResponder{"a1", "a2"},
		staticResponder(nil),
		staticResponder{"b1"},
	}
	got, ok := Respond(set, "msg")
	if !ok {
		t.Fatalf("expected a reply")
	}
	if got != "a1\na2\nb1" {
		t.Fatalf("Respond = %q", got)
	}
}

func TestRespond_NothingMatched(t *testing.T) {
	got, ok := Respond([]Responder{staticResponder(nil)}, "msg")
	if ok || got != "" {
		t.Fatalf("expected no reply, got %q ok=%v", got, ok)
	}
	if _, ok := Respond(nil, "msg"); ok {
		t.Fatalf("empty set must not reply")
	}
}

func TestRespond_WithPatterns(t *testing.T) {
	links := mustPattern(t, trackerPattern, "gi", trackerResponse)
	thanks := mustPattern(t, `\bthanks\b`, "i", "you're welcome")

	got, ok := Respond([]Responder{thanks, links}, "Thanks for PD-9")
	if !ok {
		t.Fatalf("expected a reply")
	}
	want := "you're welcome\nPD-9: https://tracker.example.com/browse/PD-9"
	if got != want {
		t.Fatalf("Respond = %q; want %q", got, want)
	}
}
