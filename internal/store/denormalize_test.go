package store

import "testing"

func TestDenormalizeExpandsInOrder(t *testing.T) {
	s := NewChannelStore()
	seedChannel(t, s, "C", "m1", "m2", "m3")

	out, ok := s.Denormalize("C")
	if !ok {
		t.Fatalf("channel not found")
	}
	if len(out.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(out.Messages))
	}
	for i, want := range []string{"m1", "m2", "m3"} {
		if out.Messages[i].ID != want {
			t.Fatalf("position %d: got %s, want %s", i, out.Messages[i].ID, want)
		}
	}
}

func TestDenormalizeSkipsUnknownIDs(t *testing.T) {
	s := NewChannelStore()
	seedChannel(t, s, "C", "m1")
	if err := s.AppendMessageIDs("C", "ghost"); err != nil {
		t.Fatalf("append: %v", err)
	}

	out, _ := s.Denormalize("C")
	if len(out.Messages) != 1 || out.Messages[0].ID != "m1" {
		t.Fatalf("unexpected expansion: %+v", out.Messages)
	}
}

func TestDenormalizeDoesNotAliasStoreState(t *testing.T) {
	s := NewChannelStore()
	seedChannel(t, s, "C", "m1")

	out, _ := s.Denormalize("C")
	out.MessageIDs[0] = "mutated"
	out.Messages[0].Text = "mutated"

	ch, _ := s.Channel("C")
	if ch.MessageIDs[0] != "m1" {
		t.Fatalf("denormalized view aliased the id list")
	}
	msg, _ := s.Message("m1")
	if msg.Text == "mutated" {
		t.Fatalf("denormalized view aliased a message")
	}
}

func TestDenormalizeUntrackedChannel(t *testing.T) {
	s := NewChannelStore()
	if _, ok := s.Denormalize("missing"); ok {
		t.Fatalf("expected miss for untracked channel")
	}
}
