package usecase

import (
	"strings"

	"lumen-chat/go-client/internal/domains/contracts"
	messagingpolicy "lumen-chat/go-client/internal/domains/messaging/policy"
	"lumen-chat/go-client/internal/store"
	"lumen-chat/go-client/pkg/models"
)

type InboundServiceDeps struct {
	Store  *store.ChannelStore
	SelfID string

	ActiveChannelID func() string
	IsFocused       func() bool
	Notify          func(method string, payload any)
	RecordError     func(category string, err error)
	SpawnPreview    func(channelID, messageKey, url string)
}

// InboundService reconciles server-pushed message events into the store.
// Payloads arrive already decoded and decrypted; duplicates and unknown
// ids are absorbed silently.
type InboundService struct {
	deps InboundServiceDeps
}

func NewInboundService(deps InboundServiceDeps) *InboundService {
	return &InboundService{deps: deps}
}

func (s *InboundService) ReceiveNewMessage(channelID string, msg models.Message) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" || msg.ID == "" {
		return
	}
	if _, tracked := s.deps.Store.Channel(channelID); !tracked {
		return
	}
	if s.deps.Store.ContainsMessageID(channelID, msg.ID) {
		// Duplicate delivery.
		return
	}

	msg.ChannelID = channelID
	if msg.SendStatus == "" {
		msg.SendStatus = models.SendStatusSuccess
	}
	if err := s.deps.Store.UpsertMessage(msg); err != nil {
		s.recordErr(contracts.ErrorCategoryStorage, err)
		return
	}

	if pending, ok := s.deps.Store.PendingByOptimisticID(channelID, msg.OptimisticID); ok {
		// Push echo of a message this client sent: canonicalize the
		// provisional entry in place.
		if _, err := s.deps.Store.ReplaceMessageID(channelID, pending.OptimisticID, msg.ID); err != nil {
			s.recordErr(contracts.ErrorCategoryStorage, err)
			return
		}
	} else {
		if err := s.deps.Store.AppendMessageIDs(channelID, msg.ID); err != nil {
			s.recordErr(contracts.ErrorCategoryStorage, err)
			return
		}
	}
	if err := s.deps.Store.SetLastMessage(channelID, msg.ID, msg.CreatedAt); err != nil {
		s.recordErr(contracts.ErrorCategoryStorage, err)
	}

	if url := messagingpolicy.FirstURL(msg.Text); url != "" && msg.LinkPreview == nil && s.deps.SpawnPreview != nil {
		s.deps.SpawnPreview(channelID, msg.ID, url)
	}

	active := s.activeChannel() == channelID
	if active {
		if err := s.deps.Store.MarkRead(channelID); err != nil {
			s.recordErr(contracts.ErrorCategoryStorage, err)
		}
	} else if msg.SenderID != s.deps.SelfID {
		if err := s.deps.Store.ApplyUnreadDelta(channelID, 1); err != nil {
			s.recordErr(contracts.ErrorCategoryStorage, err)
		}
	}
	if !(active && s.focused()) {
		s.notify("notify.message.received", map[string]any{"channel_id": channelID, "message": msg})
	}
}

// ReceiveEdit applies a pushed edit; an unknown id is a silent no-op.
func (s *InboundService) ReceiveEdit(channelID, messageID string, patch contracts.MessagePatch) {
	if !s.deps.Store.ContainsMessageID(channelID, messageID) {
		return
	}
	patched, err := s.deps.Store.PatchMessage(messageID, func(m *models.Message) {
		if patch.Text != nil {
			m.Text = *patch.Text
			m.Edited = true
		}
		if patch.Media != nil {
			m.Media = patch.Media
		}
		if patch.LinkPreview != nil {
			m.LinkPreview = patch.LinkPreview
		}
	})
	if err != nil {
		s.recordErr(contracts.ErrorCategoryStorage, err)
		return
	}
	if patched {
		s.notify("notify.message.edited", map[string]any{"channel_id": channelID, "message_id": messageID})
	}
}

// ReceiveDelete removes a pushed deletion; an id already gone is a
// silent no-op.
func (s *InboundService) ReceiveDelete(channelID, messageID string) {
	removed, err := s.deps.Store.RemoveMessageID(channelID, messageID)
	if err != nil {
		s.recordErr(contracts.ErrorCategoryStorage, err)
		return
	}
	if !removed {
		return
	}
	if err := s.deps.Store.DropMessage(messageID); err != nil {
		s.recordErr(contracts.ErrorCategoryStorage, err)
	}
	if err := s.deps.Store.RecomputeLastMessage(channelID); err != nil {
		s.recordErr(contracts.ErrorCategoryStorage, err)
	}
	s.notify("notify.message.deleted", map[string]any{"channel_id": channelID, "message_id": messageID})
}

func (s *InboundService) activeChannel() string {
	if s.deps.ActiveChannelID == nil {
		return ""
	}
	return s.deps.ActiveChannelID()
}

func (s *InboundService) focused() bool {
	return s.deps.IsFocused != nil && s.deps.IsFocused()
}

func (s *InboundService) notify(method string, payload any) {
	if s.deps.Notify != nil {
		s.deps.Notify(method, payload)
	}
}

func (s *InboundService) recordErr(category string, err error) {
	if s.deps.RecordError != nil && err != nil {
		s.deps.RecordError(category, err)
	}
}
