package usecase

import (
	"testing"
	"time"

	"lumen-chat/go-client/internal/domains/contracts"
	"lumen-chat/go-client/internal/store"
	"lumen-chat/go-client/pkg/models"
)

func TestReceiveNewMessageAppendsAndCountsUnread(t *testing.T) {
	s := store.NewChannelStore()
	seedTrackedChannel(t, s, "C", "m1")

	var notified []string
	svc := NewInboundService(InboundServiceDeps{
		Store: s, SelfID: "me",
		Notify: func(method string, payload any) { notified = append(notified, method) },
	})

	svc.ReceiveNewMessage("C", models.Message{ID: "m2", SenderID: "peer", Text: "hi", CreatedAt: time.Now().UTC()})

	if got := listIDs(t, s, "C"); !equalIDs(got, []string{"m1", "m2"}) {
		t.Fatalf("unexpected list: %v", got)
	}
	ch, _ := s.Channel("C")
	if ch.UnreadCount != 1 {
		t.Fatalf("unread not incremented: %d", ch.UnreadCount)
	}
	if ch.LastMessageID != "m2" {
		t.Fatalf("tail pointer not advanced: %s", ch.LastMessageID)
	}
	if len(notified) != 1 || notified[0] != "notify.message.received" {
		t.Fatalf("unexpected notifications: %v", notified)
	}
}

func TestReceiveNewMessageDuplicateIsNoOp(t *testing.T) {
	s := store.NewChannelStore()
	seedTrackedChannel(t, s, "C", "m1")

	notifications := 0
	svc := NewInboundService(InboundServiceDeps{
		Store: s, SelfID: "me",
		Notify: func(method string, payload any) { notifications++ },
	})

	svc.ReceiveNewMessage("C", models.Message{ID: "m1", SenderID: "peer", Text: "replayed"})

	if got := listIDs(t, s, "C"); !equalIDs(got, []string{"m1"}) {
		t.Fatalf("duplicate delivery mutated the list: %v", got)
	}
	ch, _ := s.Channel("C")
	if ch.UnreadCount != 0 {
		t.Fatalf("duplicate delivery incremented unread: %d", ch.UnreadCount)
	}
	if notifications != 0 {
		t.Fatalf("duplicate delivery notified subscribers")
	}
}

func TestReceiveNewMessageUntrackedChannelIgnored(t *testing.T) {
	s := store.NewChannelStore()
	svc := NewInboundService(InboundServiceDeps{Store: s, SelfID: "me"})

	svc.ReceiveNewMessage("ghost", models.Message{ID: "m1", SenderID: "peer"})

	if _, ok := s.Channel("ghost"); ok {
		t.Fatalf("push created an untracked channel")
	}
}

func TestReceiveNewMessageEchoCanonicalizesInPlace(t *testing.T) {
	s := store.NewChannelStore()
	seedTrackedChannel(t, s, "C", "m1")
	pending := models.Message{
		OptimisticID: "opt_abc",
		ChannelID:    "C",
		SenderID:     "me",
		Text:         "hello",
		SendStatus:   models.SendStatusSending,
	}
	if err := s.UpsertMessage(pending); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	trailing := models.Message{ID: "m3", ChannelID: "C", SenderID: "peer", SendStatus: models.SendStatusSuccess}
	if err := s.UpsertMessage(trailing); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.AppendMessageIDs("C", "opt_abc", "m3"); err != nil {
		t.Fatalf("append: %v", err)
	}

	svc := NewInboundService(InboundServiceDeps{Store: s, SelfID: "me"})
	svc.ReceiveNewMessage("C", models.Message{ID: "m2", OptimisticID: "opt_abc", SenderID: "me", Text: "hello"})

	if got := listIDs(t, s, "C"); !equalIDs(got, []string{"m1", "m2", "m3"}) {
		t.Fatalf("echo did not canonicalize in place: %v", got)
	}
	if _, ok := s.Message("opt_abc"); ok {
		t.Fatalf("provisional entity survived canonicalization")
	}
	ch, _ := s.Channel("C")
	if ch.UnreadCount != 0 {
		t.Fatalf("own echo counted as unread: %d", ch.UnreadCount)
	}
}

func TestReceiveNewMessageActiveChannelStaysRead(t *testing.T) {
	s := store.NewChannelStore()
	seedTrackedChannel(t, s, "C", "m1")
	if err := s.ApplyUnreadDelta("C", 3); err != nil {
		t.Fatalf("seed unread: %v", err)
	}

	notifications := 0
	svc := NewInboundService(InboundServiceDeps{
		Store: s, SelfID: "me",
		ActiveChannelID: func() string { return "C" },
		IsFocused:       func() bool { return true },
		Notify:          func(method string, payload any) { notifications++ },
	})

	svc.ReceiveNewMessage("C", models.Message{ID: "m2", SenderID: "peer", Text: "hi"})

	ch, _ := s.Channel("C")
	if ch.UnreadCount != 0 {
		t.Fatalf("active channel not marked read: %d", ch.UnreadCount)
	}
	if notifications != 0 {
		t.Fatalf("focused active channel still notified")
	}
}

func TestReceiveNewMessageActiveUnfocusedStillNotifies(t *testing.T) {
	s := store.NewChannelStore()
	seedTrackedChannel(t, s, "C")

	notifications := 0
	svc := NewInboundService(InboundServiceDeps{
		Store: s, SelfID: "me",
		ActiveChannelID: func() string { return "C" },
		IsFocused:       func() bool { return false },
		Notify:          func(method string, payload any) { notifications++ },
	})

	svc.ReceiveNewMessage("C", models.Message{ID: "m1", SenderID: "peer"})
	if notifications != 1 {
		t.Fatalf("unfocused window missed the notification: %d", notifications)
	}
}

func TestReceiveEditAppliesPatch(t *testing.T) {
	s := store.NewChannelStore()
	seedTrackedChannel(t, s, "C", "m1")

	svc := NewInboundService(InboundServiceDeps{Store: s, SelfID: "me"})
	text := "revised"
	svc.ReceiveEdit("C", "m1", contracts.MessagePatch{Text: &text})

	msg, _ := s.Message("m1")
	if msg.Text != "revised" || !msg.Edited {
		t.Fatalf("edit not applied: %+v", msg)
	}
}

func TestReceiveEditUnknownMessageIsNoOp(t *testing.T) {
	s := store.NewChannelStore()
	seedTrackedChannel(t, s, "C", "m1")

	notifications := 0
	svc := NewInboundService(InboundServiceDeps{
		Store: s, SelfID: "me",
		Notify: func(method string, payload any) { notifications++ },
	})
	text := "revised"
	svc.ReceiveEdit("C", "ghost", contracts.MessagePatch{Text: &text})

	if notifications != 0 {
		t.Fatalf("edit of unknown message notified subscribers")
	}
}

func TestReceiveDeleteIsIdempotent(t *testing.T) {
	s := store.NewChannelStore()
	seedTrackedChannel(t, s, "C", "m1", "m2")

	notifications := 0
	svc := NewInboundService(InboundServiceDeps{
		Store: s, SelfID: "me",
		Notify: func(method string, payload any) { notifications++ },
	})

	svc.ReceiveDelete("C", "m2")
	svc.ReceiveDelete("C", "m2")

	if got := listIDs(t, s, "C"); !equalIDs(got, []string{"m1"}) {
		t.Fatalf("unexpected list: %v", got)
	}
	if _, ok := s.Message("m2"); ok {
		t.Fatalf("deleted entity still stored")
	}
	if notifications != 1 {
		t.Fatalf("replayed delete notified twice: %d", notifications)
	}
}

func TestReceiveNewMessageSpawnsPreview(t *testing.T) {
	s := store.NewChannelStore()
	seedTrackedChannel(t, s, "C")

	spawned := ""
	svc := NewInboundService(InboundServiceDeps{
		Store: s, SelfID: "me",
		SpawnPreview: func(channelID, messageKey, url string) { spawned = messageKey + " " + url },
	})

	svc.ReceiveNewMessage("C", models.Message{ID: "m1", SenderID: "peer", Text: "see https://example.com/a"})
	if spawned != "m1 https://example.com/a" {
		t.Fatalf("preview not requested: %q", spawned)
	}
}
