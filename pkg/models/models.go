package models

import "time"

// SendStatus tracks the lifecycle of a locally-created message.
type SendStatus string

const (
	SendStatusSending SendStatus = "sending"
	SendStatusSuccess SendStatus = "success"
	SendStatusFailed  SendStatus = "failed"
)

type MediaAttachment struct {
	ID       string `json:"id,omitempty"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Name     string `json:"name,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	External bool   `json:"external,omitempty"`
}

type LinkPreview struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Message is either canonical (server-assigned ID) or provisional
// (empty ID, client-generated OptimisticID). A message is never both.
type Message struct {
	ID              string            `json:"id,omitempty"`
	OptimisticID    string            `json:"optimistic_id,omitempty"`
	ChannelID       string            `json:"channel_id"`
	SenderID        string            `json:"sender_id"`
	Text            string            `json:"text"`
	CreatedAt       time.Time         `json:"created_at"`
	ParentMessageID string            `json:"parent_message_id,omitempty"`
	RootMessageID   string            `json:"root_message_id,omitempty"`
	Media           []MediaAttachment `json:"media,omitempty"`
	LinkPreview     *LinkPreview      `json:"link_preview,omitempty"`
	SendStatus      SendStatus        `json:"send_status"`
	Edited          bool              `json:"edited,omitempty"`
}

// Key returns the identifier a message is stored and listed under:
// the canonical ID once assigned, the optimistic token before that.
func (m Message) Key() string {
	if m.ID != "" {
		return m.ID
	}
	return m.OptimisticID
}

// Provisional reports whether the message still awaits its canonical ID.
func (m Message) Provisional() bool {
	return m.ID == "" && m.OptimisticID != ""
}

type Channel struct {
	ID                   string    `json:"id"`
	MessageIDs           []string  `json:"message_ids"`
	HasMore              bool      `json:"has_more"`
	HasLoadedMessages    bool      `json:"has_loaded_messages"`
	LastMessageID        string    `json:"last_message_id,omitempty"`
	LastMessageCreatedAt time.Time `json:"last_message_created_at,omitempty"`
	ShouldSyncChannels   bool      `json:"should_sync_channels"`
	UnreadCount          int       `json:"unread_count"`
}

// FileDescriptor references uploaded bytes held by remote storage.
type FileDescriptor struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	URL      string `json:"url,omitempty"`
}

// MessagePage is one history page, ordered oldest to newest.
type MessagePage struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

// DenormalizedChannel is the read-side expansion of a channel's id list.
type DenormalizedChannel struct {
	Channel
	Messages []Message `json:"messages"`
}

type MetricsSnapshot struct {
	ErrorCounters   map[string]int             `json:"error_counters"`
	OperationStats  map[string]OperationMetric `json:"operation_stats"`
	TrackedChannels int                        `json:"tracked_channels"`
	LastUpdatedAt   time.Time                  `json:"last_updated_at"`
}

type OperationMetric struct {
	Count         int   `json:"count"`
	Errors        int   `json:"errors"`
	AvgLatencyMs  int64 `json:"avg_latency_ms"`
	MaxLatencyMs  int64 `json:"max_latency_ms"`
	LastLatencyMs int64 `json:"last_latency_ms"`
}
