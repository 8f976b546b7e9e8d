package usecase

import (
	"context"
	"time"

	"lumen-chat/go-client/internal/domains/contracts"
	"lumen-chat/go-client/internal/store"
	"lumen-chat/go-client/pkg/models"
)

type HistoryServiceDeps struct {
	Store  *store.ChannelStore
	API    contracts.ChatAPI
	SelfID string

	TrackOperation func(operation string, errRef *error) func()
	RecordError    func(category string, err error)
	Notify         func(method string, payload any)
}

// HistoryService merges fetched history pages into the store. A failed
// fetch leaves the store untouched, and replaying a page is a no-op
// because merges are id-keyed unions.
type HistoryService struct {
	deps HistoryServiceDeps
}

func NewHistoryService(deps HistoryServiceDeps) *HistoryService {
	return &HistoryService{deps: deps}
}

// Fetch loads the most recent page when before is nil, or the page
// strictly older than before. Callers only pass timestamps taken from
// the current head, so older pages prepend without re-sorting.
func (h *HistoryService) Fetch(ctx context.Context, channelID string, before *time.Time) (err error) {
	if h.deps.TrackOperation != nil {
		defer h.deps.TrackOperation("channel.fetch", &err)()
	}
	if err = h.deps.Store.TrackChannel(channelID); err != nil {
		return h.storageErr(err)
	}

	page, fetchErr := h.deps.API.FetchMessages(ctx, channelID, before)
	if fetchErr != nil {
		err = contracts.WrapCategorizedError(contracts.ErrorCategoryNetwork, fetchErr)
		h.recordErr(contracts.ErrorCategory(err), err)
		return err
	}

	ids, err := h.upsertPage(channelID, page.Messages)
	if err != nil {
		return err
	}

	if before == nil {
		if err = h.deps.Store.AppendMessageIDs(channelID, ids...); err != nil {
			return h.storageErr(err)
		}
		if err = h.deps.Store.MarkHistoryLoaded(channelID, page.HasMore); err != nil {
			return h.storageErr(err)
		}
		if last, ok := lastOf(page.Messages); ok {
			if err = h.deps.Store.SetLastMessage(channelID, last.ID, last.CreatedAt); err != nil {
				return h.storageErr(err)
			}
		}
	} else {
		if err = h.deps.Store.PrependMessageIDs(channelID, ids...); err != nil {
			return h.storageErr(err)
		}
		if err = h.deps.Store.SetHasMore(channelID, page.HasMore); err != nil {
			return h.storageErr(err)
		}
	}
	h.notify("notify.channel.fetched", map[string]any{"channel_id": channelID, "count": len(ids)})
	return nil
}

// FetchNew polls for messages newer than the cached tail, the reconnect
// catch-up path. Returns how many genuinely new messages arrived.
func (h *HistoryService) FetchNew(ctx context.Context, channelID string) (count int, err error) {
	if h.deps.TrackOperation != nil {
		defer h.deps.TrackOperation("channel.fetchNew", &err)()
	}
	ch, ok := h.deps.Store.Channel(channelID)
	if !ok {
		if err = h.deps.Store.TrackChannel(channelID); err != nil {
			return 0, h.storageErr(err)
		}
	}

	page, fetchErr := h.deps.API.FetchNewMessages(ctx, channelID, ch.LastMessageCreatedAt)
	if fetchErr != nil {
		err = contracts.WrapCategorizedError(contracts.ErrorCategoryNetwork, fetchErr)
		h.recordErr(contracts.ErrorCategory(err), err)
		return 0, err
	}

	unread := 0
	fresh := make([]string, 0, len(page.Messages))
	for _, msg := range page.Messages {
		if h.deps.Store.ContainsMessageID(channelID, msg.ID) {
			continue
		}
		fresh = append(fresh, msg.ID)
		if msg.SenderID != h.deps.SelfID {
			unread++
		}
	}
	if _, err = h.upsertPage(channelID, page.Messages); err != nil {
		return 0, err
	}
	if err = h.deps.Store.AppendMessageIDs(channelID, fresh...); err != nil {
		return 0, h.storageErr(err)
	}
	if last, ok := lastOf(page.Messages); ok {
		if err = h.deps.Store.SetLastMessage(channelID, last.ID, last.CreatedAt); err != nil {
			return 0, h.storageErr(err)
		}
	}
	if unread > 0 {
		if err = h.deps.Store.ApplyUnreadDelta(channelID, unread); err != nil {
			return 0, h.storageErr(err)
		}
	}
	if err = h.deps.Store.MarkSyncRequired(channelID); err != nil {
		return 0, h.storageErr(err)
	}
	if len(fresh) > 0 {
		h.notify("notify.channel.caughtUp", map[string]any{"channel_id": channelID, "count": len(fresh)})
	}
	return len(fresh), nil
}

func (h *HistoryService) upsertPage(channelID string, messages []models.Message) ([]string, error) {
	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		if msg.ID == "" {
			continue
		}
		msg.ChannelID = channelID
		if msg.SendStatus == "" {
			msg.SendStatus = models.SendStatusSuccess
		}
		if err := h.deps.Store.UpsertMessage(msg); err != nil {
			return nil, h.storageErr(err)
		}
		ids = append(ids, msg.ID)
	}
	return ids, nil
}

func (h *HistoryService) notify(method string, payload any) {
	if h.deps.Notify != nil {
		h.deps.Notify(method, payload)
	}
}

func (h *HistoryService) recordErr(category string, err error) {
	if h.deps.RecordError != nil && err != nil {
		h.deps.RecordError(category, err)
	}
}

func (h *HistoryService) storageErr(err error) error {
	err = contracts.WrapCategorizedError(contracts.ErrorCategoryStorage, err)
	h.recordErr(contracts.ErrorCategoryStorage, err)
	return err
}

func lastOf(messages []models.Message) (models.Message, bool) {
	if len(messages) == 0 {
		return models.Message{}, false
	}
	return messages[len(messages)-1], true
}
