package usecase

import (
	"context"
	"testing"
	"time"

	"lumen-chat/go-client/internal/domains/contracts"
	"lumen-chat/go-client/internal/store"
	"lumen-chat/go-client/pkg/models"
)

type fakeChatAPI struct {
	FetchMessagesFunc       func(ctx context.Context, channelID string, before *time.Time) (models.MessagePage, error)
	FetchNewMessagesFunc    func(ctx context.Context, channelID string, after time.Time) (models.MessagePage, error)
	SendMessageFunc         func(ctx context.Context, req contracts.SendMessageRequest) (models.Message, error)
	EditMessageFunc         func(ctx context.Context, channelID, messageID, text string, mentionedUserIDs []string) (models.Message, error)
	DeleteMessageFunc       func(ctx context.Context, channelID, messageID string) error
	UploadMediaFunc         func(ctx context.Context, req contracts.UploadMediaRequest) (models.Message, error)
	UploadAttachmentFunc    func(ctx context.Context, file contracts.FileUpload) (models.FileDescriptor, error)
	SendFileMessageFunc     func(ctx context.Context, req contracts.SendFileMessageRequest) (models.Message, error)
	SendExternalMessageFunc func(ctx context.Context, req contracts.SendExternalMessageRequest) (models.Message, error)
	ResolveLinkPreviewFunc  func(ctx context.Context, url string) (models.LinkPreview, error)
}

func (f *fakeChatAPI) FetchMessages(ctx context.Context, channelID string, before *time.Time) (models.MessagePage, error) {
	return f.FetchMessagesFunc(ctx, channelID, before)
}

func (f *fakeChatAPI) FetchNewMessages(ctx context.Context, channelID string, after time.Time) (models.MessagePage, error) {
	return f.FetchNewMessagesFunc(ctx, channelID, after)
}

func (f *fakeChatAPI) SendMessage(ctx context.Context, req contracts.SendMessageRequest) (models.Message, error) {
	return f.SendMessageFunc(ctx, req)
}

func (f *fakeChatAPI) EditMessage(ctx context.Context, channelID, messageID, text string, mentionedUserIDs []string) (models.Message, error) {
	return f.EditMessageFunc(ctx, channelID, messageID, text, mentionedUserIDs)
}

func (f *fakeChatAPI) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return f.DeleteMessageFunc(ctx, channelID, messageID)
}

func (f *fakeChatAPI) UploadMedia(ctx context.Context, req contracts.UploadMediaRequest) (models.Message, error) {
	return f.UploadMediaFunc(ctx, req)
}

func (f *fakeChatAPI) UploadAttachment(ctx context.Context, file contracts.FileUpload) (models.FileDescriptor, error) {
	return f.UploadAttachmentFunc(ctx, file)
}

func (f *fakeChatAPI) SendFileMessage(ctx context.Context, req contracts.SendFileMessageRequest) (models.Message, error) {
	return f.SendFileMessageFunc(ctx, req)
}

func (f *fakeChatAPI) SendExternalMessage(ctx context.Context, req contracts.SendExternalMessageRequest) (models.Message, error) {
	return f.SendExternalMessageFunc(ctx, req)
}

func (f *fakeChatAPI) ResolveLinkPreview(ctx context.Context, url string) (models.LinkPreview, error) {
	return f.ResolveLinkPreviewFunc(ctx, url)
}

func seedTrackedChannel(t *testing.T, s *store.ChannelStore, channelID string, ids ...string) {
	t.Helper()
	if err := s.TrackChannel(channelID); err != nil {
		t.Fatalf("track channel: %v", err)
	}
	for _, id := range ids {
		msg := models.Message{ID: id, ChannelID: channelID, SenderID: "peer", SendStatus: models.SendStatusSuccess}
		if err := s.UpsertMessage(msg); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
	if err := s.AppendMessageIDs(channelID, ids...); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func listIDs(t *testing.T, s *store.ChannelStore, channelID string) []string {
	t.Helper()
	ch, ok := s.Channel(channelID)
	if !ok {
		t.Fatalf("channel %s is not tracked", channelID)
	}
	return ch.MessageIDs
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
