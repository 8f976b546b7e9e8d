package policy

import (
	"crypto/rand"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"lumen-chat/go-client/pkg/models"
)

// MaxMessageTextBytes bounds a single message body; oversized input is
// rejected before any optimistic mutation.
const MaxMessageTextBytes = 8192

var (
	ErrChannelIDRequired = errors.New("channel id is required")
	ErrEmptyMessageBody  = errors.New("message body is empty")
	ErrMessageTooLarge   = errors.New("message body exceeds the size limit")
	ErrMessageIDRequired = errors.New("message id is required")
	ErrMessageNotFound   = errors.New("message not found")
	ErrMessageInFlight   = errors.New("message is still sending")
)

func ValidateSendInput(channelID, text string) (string, string, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return "", "", ErrChannelIDRequired
	}
	if strings.TrimSpace(text) == "" {
		return "", "", ErrEmptyMessageBody
	}
	if len(text) > MaxMessageTextBytes {
		return "", "", ErrMessageTooLarge
	}
	return channelID, text, nil
}

func ValidateEditInput(channelID, messageID, text string) (string, string, string, error) {
	channelID = strings.TrimSpace(channelID)
	messageID = strings.TrimSpace(messageID)
	if channelID == "" {
		return "", "", "", ErrChannelIDRequired
	}
	if messageID == "" {
		return "", "", "", ErrMessageIDRequired
	}
	if strings.TrimSpace(text) == "" {
		return "", "", "", ErrEmptyMessageBody
	}
	if len(text) > MaxMessageTextBytes {
		return "", "", "", ErrMessageTooLarge
	}
	return channelID, messageID, text, nil
}

func ValidateDeleteInput(channelID, messageID string) (string, string, error) {
	channelID = strings.TrimSpace(channelID)
	messageID = strings.TrimSpace(messageID)
	if channelID == "" {
		return "", "", ErrChannelIDRequired
	}
	if messageID == "" {
		return "", "", ErrMessageIDRequired
	}
	return channelID, messageID, nil
}

// EnsureEditableMessage rejects edits of messages that are missing or
// still awaiting canonicalization.
func EnsureEditableMessage(msg models.Message, found bool) error {
	if !found {
		return ErrMessageNotFound
	}
	if msg.SendStatus == models.SendStatusSending {
		return ErrMessageInFlight
	}
	return nil
}

// NewOptimisticID mints a client-side correlation token.
func NewOptimisticID() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "opt_" + base58.Encode(buf), nil
}

// NewProvisionalMessage builds the locally-visible message appended
// before the network call resolves.
func NewProvisionalMessage(optimisticID, channelID, senderID, text string, parent *models.Message, now time.Time) models.Message {
	msg := models.Message{
		OptimisticID: optimisticID,
		ChannelID:    channelID,
		SenderID:     senderID,
		Text:         text,
		CreatedAt:    now.UTC(),
		SendStatus:   models.SendStatusSending,
	}
	if parent != nil {
		msg.ParentMessageID = parent.ID
		msg.RootMessageID = parent.RootMessageID
		if msg.RootMessageID == "" {
			msg.RootMessageID = parent.ID
		}
	}
	return msg
}

// NewProvisionalUpload builds a provisional message for one file of an
// upload batch.
func NewProvisionalUpload(optimisticID, channelID, senderID string, media models.MediaAttachment, parent *models.Message, now time.Time) models.Message {
	msg := NewProvisionalMessage(optimisticID, channelID, senderID, "", parent, now)
	msg.Media = []models.MediaAttachment{media}
	return msg
}

// FirstURL returns the first http(s) URL in a message body, or "".
func FirstURL(text string) string {
	for _, field := range strings.Fields(text) {
		if !strings.HasPrefix(field, "http://") && !strings.HasPrefix(field, "https://") {
			continue
		}
		u, err := url.Parse(field)
		if err != nil || u.Host == "" {
			continue
		}
		return u.String()
	}
	return ""
}
