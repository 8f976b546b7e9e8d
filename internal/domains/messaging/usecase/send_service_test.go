package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"lumen-chat/go-client/internal/domains/contracts"
	"lumen-chat/go-client/internal/store"
	"lumen-chat/go-client/pkg/models"
)

func TestSendOptimisticVisibility(t *testing.T) {
	s := store.NewChannelStore()
	seedTrackedChannel(t, s, "C", "m1")

	var visibleDuringSend []models.Message
	api := &fakeChatAPI{
		SendMessageFunc: func(ctx context.Context, req contracts.SendMessageRequest) (models.Message, error) {
			out, _ := s.Denormalize("C")
			visibleDuringSend = out.Messages
			return models.Message{ID: "m2", OptimisticID: req.OptimisticID, ChannelID: "C", Text: req.Text, CreatedAt: time.Now().UTC()}, nil
		},
	}
	svc := NewSendService(SendServiceDeps{Store: s, API: api, SelfID: "me"})

	if _, err := svc.Send(context.Background(), "C", "hello", nil, nil); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(visibleDuringSend) != 2 {
		t.Fatalf("provisional message not visible before the network call resolved: %d entries", len(visibleDuringSend))
	}
	last := visibleDuringSend[1]
	if !last.Provisional() || last.SendStatus != models.SendStatusSending || last.Text != "hello" {
		t.Fatalf("unexpected provisional entry: %+v", last)
	}
}

func TestSendExactlyOnceCanonicalization(t *testing.T) {
	s := store.NewChannelStore()
	seedTrackedChannel(t, s, "C", "m1")

	api := &fakeChatAPI{
		SendMessageFunc: func(ctx context.Context, req contracts.SendMessageRequest) (models.Message, error) {
			return models.Message{ID: "m2", OptimisticID: req.OptimisticID, ChannelID: "C", Text: req.Text, CreatedAt: time.Now().UTC()}, nil
		},
	}
	svc := NewSendService(SendServiceDeps{Store: s, API: api, SelfID: "me"})

	sent, err := svc.Send(context.Background(), "C", "hello", nil, nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sent.ID != "m2" || sent.SendStatus != models.SendStatusSuccess {
		t.Fatalf("unexpected canonical result: %+v", sent)
	}
	if got := listIDs(t, s, "C"); !equalIDs(got, []string{"m1", "m2"}) {
		t.Fatalf("expected exactly one entry for the sent message: %v", got)
	}
	ch, _ := s.Channel("C")
	if ch.LastMessageID != "m2" {
		t.Fatalf("tail pointer not advanced: %s", ch.LastMessageID)
	}
}

func TestSendFailureRollsBackExactly(t *testing.T) {
	s := store.NewChannelStore()
	seedTrackedChannel(t, s, "C", "m1", "m2")

	api := &fakeChatAPI{
		SendMessageFunc: func(ctx context.Context, req contracts.SendMessageRequest) (models.Message, error) {
			return models.Message{}, errors.New("connection reset")
		},
	}
	recorded := make([]string, 0, 1)
	svc := NewSendService(SendServiceDeps{
		Store: s, API: api, SelfID: "me",
		RecordError: func(category string, err error) { recorded = append(recorded, category) },
	})

	_, err := svc.Send(context.Background(), "C", "hi", nil, nil)
	if err == nil {
		t.Fatalf("expected send error")
	}
	if contracts.ErrorCategory(err) != contracts.ErrorCategoryNetwork {
		t.Fatalf("unexpected category: %s", contracts.ErrorCategory(err))
	}
	if got := listIDs(t, s, "C"); !equalIDs(got, []string{"m1", "m2"}) {
		t.Fatalf("rollback is not exact: %v", got)
	}
	if len(recorded) == 0 || recorded[0] != contracts.ErrorCategoryNetwork {
		t.Fatalf("error not recorded: %v", recorded)
	}
}

func TestSendValidationRejectsBeforeMutation(t *testing.T) {
	s := store.NewChannelStore()
	seedTrackedChannel(t, s, "C", "m1")

	called := false
	api := &fakeChatAPI{
		SendMessageFunc: func(ctx context.Context, req contracts.SendMessageRequest) (models.Message, error) {
			called = true
			return models.Message{}, nil
		},
	}
	svc := NewSendService(SendServiceDeps{Store: s, API: api, SelfID: "me"})

	_, err := svc.Send(context.Background(), "C", "   ", nil, nil)
	if err == nil || contracts.ErrorCategory(err) != contracts.ErrorCategoryValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if called {
		t.Fatalf("network call made for invalid input")
	}
	if got := listIDs(t, s, "C"); !equalIDs(got, []string{"m1"}) {
		t.Fatalf("state changed before validation: %v", got)
	}
}

func TestSendSpawnsPreviewWithoutBlocking(t *testing.T) {
	s := store.NewChannelStore()
	seedTrackedChannel(t, s, "C")

	spawnedBeforeNetwork := false
	spawned := ""
	api := &fakeChatAPI{
		SendMessageFunc: func(ctx context.Context, req contracts.SendMessageRequest) (models.Message, error) {
			spawnedBeforeNetwork = spawned != ""
			return models.Message{ID: "m1", OptimisticID: req.OptimisticID, ChannelID: "C"}, nil
		},
	}
	svc := NewSendService(SendServiceDeps{
		Store: s, API: api, SelfID: "me",
		SpawnPreview: func(channelID, messageKey, url string) { spawned = url },
	})

	if _, err := svc.Send(context.Background(), "C", "look https://example.com/x", nil, nil); err != nil {
		t.Fatalf("send: %v", err)
	}
	if spawned != "https://example.com/x" {
		t.Fatalf("preview not requested: %q", spawned)
	}
	if !spawnedBeforeNetwork {
		t.Fatalf("preview resolution delayed the network call")
	}
}

func TestEditRevertsOnFailure(t *testing.T) {
	s := store.NewChannelStore()
	seedTrackedChannel(t, s, "C")
	orig := models.Message{ID: "m1", ChannelID: "C", SenderID: "me", Text: "original", SendStatus: models.SendStatusSuccess}
	if err := s.UpsertMessage(orig); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.AppendMessageIDs("C", "m1"); err != nil {
		t.Fatalf("append: %v", err)
	}

	var textDuringCall string
	api := &fakeChatAPI{
		EditMessageFunc: func(ctx context.Context, channelID, messageID, text string, mentioned []string) (models.Message, error) {
			msg, _ := s.Message("m1")
			textDuringCall = msg.Text
			return models.Message{}, errors.New("conflict: deleted on another device")
		},
	}
	svc := NewSendService(SendServiceDeps{Store: s, API: api, SelfID: "me"})

	if _, err := svc.EditMessage(context.Background(), "C", "m1", "edited", nil); err == nil {
		t.Fatalf("expected edit error")
	}
	if textDuringCall != "edited" {
		t.Fatalf("edit was not optimistic: %q", textDuringCall)
	}
	msg, _ := s.Message("m1")
	if msg.Text != "original" || msg.Edited {
		t.Fatalf("edit not reverted: %+v", msg)
	}
}

func TestEditAppliesServerText(t *testing.T) {
	s := store.NewChannelStore()
	seedTrackedChannel(t, s, "C", "m1")

	api := &fakeChatAPI{
		EditMessageFunc: func(ctx context.Context, channelID, messageID, text string, mentioned []string) (models.Message, error) {
			return models.Message{ID: messageID, Text: text + " (server)"}, nil
		},
	}
	svc := NewSendService(SendServiceDeps{Store: s, API: api, SelfID: "me"})

	updated, err := svc.EditMessage(context.Background(), "C", "m1", "edited", nil)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if updated.Text != "edited (server)" || !updated.Edited {
		t.Fatalf("server text not applied: %+v", updated)
	}
}

func TestDeleteRestoresOnFailure(t *testing.T) {
	s := store.NewChannelStore()
	seedTrackedChannel(t, s, "C", "m1", "m2", "m3")

	var listedDuringCall []string
	api := &fakeChatAPI{
		DeleteMessageFunc: func(ctx context.Context, channelID, messageID string) error {
			listedDuringCall = listIDs(t, s, "C")
			return errors.New("timeout")
		},
	}
	svc := NewSendService(SendServiceDeps{Store: s, API: api, SelfID: "me"})

	if err := svc.DeleteMessage(context.Background(), "C", "m2"); err == nil {
		t.Fatalf("expected delete error")
	}
	if !equalIDs(listedDuringCall, []string{"m1", "m3"}) {
		t.Fatalf("delete was not optimistic: %v", listedDuringCall)
	}
	if got := listIDs(t, s, "C"); !equalIDs(got, []string{"m1", "m2", "m3"}) {
		t.Fatalf("delete not restored: %v", got)
	}
}

func TestDeleteSuccessDropsEntityAndRecomputesTail(t *testing.T) {
	s := store.NewChannelStore()
	seedTrackedChannel(t, s, "C", "m1", "m2")
	if err := s.SetLastMessage("C", "m2", time.Now().UTC()); err != nil {
		t.Fatalf("set last: %v", err)
	}

	api := &fakeChatAPI{
		DeleteMessageFunc: func(ctx context.Context, channelID, messageID string) error { return nil },
	}
	svc := NewSendService(SendServiceDeps{Store: s, API: api, SelfID: "me"})

	if err := svc.DeleteMessage(context.Background(), "C", "m2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := listIDs(t, s, "C"); !equalIDs(got, []string{"m1"}) {
		t.Fatalf("unexpected list: %v", got)
	}
	if _, ok := s.Message("m2"); ok {
		t.Fatalf("deleted entity still stored")
	}
	ch, _ := s.Channel("C")
	if ch.LastMessageID != "m1" {
		t.Fatalf("tail pointer not recomputed: %s", ch.LastMessageID)
	}
}

func TestDeleteUnknownMessageIsAnError(t *testing.T) {
	s := store.NewChannelStore()
	seedTrackedChannel(t, s, "C", "m1")

	api := &fakeChatAPI{
		DeleteMessageFunc: func(ctx context.Context, channelID, messageID string) error {
			t.Fatalf("network call for unknown id")
			return nil
		},
	}
	svc := NewSendService(SendServiceDeps{Store: s, API: api, SelfID: "me"})

	err := svc.DeleteMessage(context.Background(), "C", "ghost")
	if err == nil || contracts.ErrorCategory(err) != contracts.ErrorCategoryValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
