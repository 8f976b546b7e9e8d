package contracts

import (
	"context"
	"time"

	"lumen-chat/go-client/pkg/models"
)

// FileUpload carries raw bytes selected for upload.
type FileUpload struct {
	Name     string
	MimeType string
	Data     []byte
}

type SendMessageRequest struct {
	ChannelID        string
	Text             string
	MentionedUserIDs []string
	ParentMessageID  string
	OptimisticID     string
}

type UploadMediaRequest struct {
	ChannelID     string
	File          FileUpload
	RootMessageID string
	OptimisticID  string
	Width         int
	Height        int
}

type SendFileMessageRequest struct {
	ChannelID     string
	File          models.FileDescriptor
	RootMessageID string
	OptimisticID  string
}

type SendExternalMessageRequest struct {
	ChannelID     string
	URL           string
	MimeType      string
	Name          string
	RootMessageID string
	OptimisticID  string
}

// ChatAPI is the network boundary. Implementations decide the transport;
// the engine only requires these request/response semantics. Every call
// runs to completion: results are reconciled even if the triggering
// context has been torn down.
type ChatAPI interface {
	FetchMessages(ctx context.Context, channelID string, before *time.Time) (models.MessagePage, error)
	FetchNewMessages(ctx context.Context, channelID string, after time.Time) (models.MessagePage, error)
	SendMessage(ctx context.Context, req SendMessageRequest) (models.Message, error)
	EditMessage(ctx context.Context, channelID, messageID, text string, mentionedUserIDs []string) (models.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	UploadMedia(ctx context.Context, req UploadMediaRequest) (models.Message, error)
	UploadAttachment(ctx context.Context, file FileUpload) (models.FileDescriptor, error)
	SendFileMessage(ctx context.Context, req SendFileMessageRequest) (models.Message, error)
	SendExternalMessage(ctx context.Context, req SendExternalMessageRequest) (models.Message, error)
	ResolveLinkPreview(ctx context.Context, url string) (models.LinkPreview, error)
}
