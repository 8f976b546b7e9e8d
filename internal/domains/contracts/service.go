package contracts

import (
	"context"
	"time"

	"lumen-chat/go-client/pkg/models"
)

// NotificationEvent is one locally-emitted notification, sequenced for
// replay by streaming subscribers.
type NotificationEvent struct {
	Seq       int64     `json:"seq"`
	Method    string    `json:"method"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// MessagePatch carries the mutable fields of a pushed edit event.
type MessagePatch struct {
	Text        *string                  `json:"text,omitempty"`
	Media       []models.MediaAttachment `json:"media,omitempty"`
	LinkPreview *models.LinkPreview      `json:"link_preview,omitempty"`
}

// UploadBatchItem selects either raw bytes or an externally-hosted
// reference for one message of an upload batch.
type UploadBatchItem struct {
	File             *FileUpload
	ExternalURL      string
	ExternalMimeType string
	ExternalName     string
}

type UploadResult struct {
	Message models.Message `json:"message"`
	Error   string         `json:"error,omitempty"`
}

// SyncService is the surface the RPC adapter exposes: UI-facing
// operations, push entry points for the real-time transport, and the
// read-only denormalized view.
type SyncService interface {
	Send(ctx context.Context, channelID, text string, mentionedUserIDs []string, parentMessageID string) (models.Message, error)
	EditMessage(ctx context.Context, channelID, messageID, text string, mentionedUserIDs []string) (models.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	Fetch(ctx context.Context, channelID string, before *time.Time) error
	FetchNew(ctx context.Context, channelID string) (int, error)
	Denormalize(channelID string) (models.DenormalizedChannel, bool)
	UploadBatch(ctx context.Context, channelID, parentMessageID string, items []UploadBatchItem) ([]UploadResult, error)

	ReceiveNewMessage(channelID string, msg models.Message)
	ReceiveEdit(channelID, messageID string, patch MessagePatch)
	ReceiveDelete(channelID, messageID string)

	SetActiveChannel(channelID string, focused bool)
	SubscribeNotifications(fromSeq int64) ([]NotificationEvent, <-chan NotificationEvent, func())
	MetricsSnapshot() models.MetricsSnapshot
}
