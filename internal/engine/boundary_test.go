package engine

import (
	"fmt"
	"testing"

	"github.com/dmpilot/dmpilot/internal/instagram"
)

func textMsg(id, text string) instagram.Message {
	return instagram.Message{ID: id, Type: "text", Text: text}
}

func TestResolveNew_FirstContact(t *testing.T) {
	msgs := []instagram.Message{
		textMsg("3", "are you there?"),
		textMsg("2", "hello"),
		{ID: "1", Type: "media"},
	}

	got := ResolveNew(msgs, "")
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].ID != "3" || got[1].ID != "2" {
		t.Errorf("order not preserved: %q, %q", got[0].ID, got[1].ID)
	}
}

func TestResolveNew_BoundaryAtEveryPosition(t *testing.T) {
	const total = 6
	reply := "bot reply text"

	// The reply anchor can sit anywhere in the fetched page; everything
	// newer than it is new, the anchor and older are not.
	for pos := 0; pos < total; pos++ {
		t.Run(fmt.Sprintf("boundary_at_%d", pos), func(t *testing.T) {
			msgs := make([]instagram.Message, total)
			for i := range msgs {
				msgs[i] = textMsg(fmt.Sprintf("m%d", i), fmt.Sprintf("user message %d", i))
			}
			msgs[pos] = textMsg(fmt.Sprintf("m%d", pos), reply)

			got := ResolveNew(msgs, reply)
			if len(got) != pos {
				t.Fatalf("got %d new messages, want %d", len(got), pos)
			}
			for i, msg := range got {
				if msg.ID != msgs[i].ID {
					t.Errorf("message %d = %q, want %q", i, msg.ID, msgs[i].ID)
				}
			}
		})
	}
}

func TestResolveNew_AnchorOutsideWindow(t *testing.T) {
	msgs := []instagram.Message{
		textMsg("2", "newer"),
		textMsg("1", "older"),
	}

	// The anchor scrolled out of the fetched page: nothing can be safely
	// considered new.
	if got := ResolveNew(msgs, "a reply that is not here"); got != nil {
		t.Errorf("got %d messages, want none", len(got))
	}
}

func TestResolveNew_SkipsNonText(t *testing.T) {
	msgs := []instagram.Message{
		{ID: "4", Type: "media"},
		textMsg("3", "question"),
		{ID: "2", Type: "like"},
		textMsg("1", "the reply"),
	}

	got := ResolveNew(msgs, "the reply")
	if len(got) != 1 || got[0].ID != "3" {
		t.Fatalf("got %v, want only message 3", got)
	}
}

func TestAttribution_IsBot(t *testing.T) {
	a := NewAttribution("[bot] ", "thanks for reaching out")

	tests := []struct {
		name string
		text string
		bot  bool
	}{
		{"known bot text", "thanks for reaching out", true},
		{"prefixed text", "[bot] anything at all", true},
		{"plain user text", "hey what's up", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.IsBot(tt.text); got != tt.bot {
				t.Errorf("IsBot(%q) = %v, want %v", tt.text, got, tt.bot)
			}
		})
	}
}

func TestAttribution_NoPrefix(t *testing.T) {
	a := NewAttribution("", "the last reply")

	if !a.IsBot("the last reply") {
		t.Error("known reply text not attributed to bot")
	}
	if a.IsBot("user says something") {
		t.Error("user text attributed to bot without prefix")
	}
	if got := a.StripPrefix("unchanged"); got != "unchanged" {
		t.Errorf("StripPrefix without prefix = %q", got)
	}
}

func TestAttribution_Participant(t *testing.T) {
	a := NewAttribution("[bot] ", "old reply")
	msgs := []instagram.Message{
		textMsg("5", "second user msg"),
		textMsg("4", "[bot] automated answer"),
		{ID: "3", Type: "media"},
		textMsg("2", "first user msg"),
		textMsg("1", "old reply"),
	}

	got := a.Participant(msgs)
	if len(got) != 2 {
		t.Fatalf("got %d participant messages, want 2", len(got))
	}
	if got[0].ID != "5" || got[1].ID != "2" {
		t.Errorf("participant ids = %q, %q", got[0].ID, got[1].ID)
	}
}
