package usecase

import (
	"context"
	"time"

	"lumen-chat/go-client/internal/domains/contracts"
	messagingpolicy "lumen-chat/go-client/internal/domains/messaging/policy"
	"lumen-chat/go-client/internal/store"
	"lumen-chat/go-client/pkg/models"
)

type SendServiceDeps struct {
	Store  *store.ChannelStore
	API    contracts.ChatAPI
	SelfID string

	NewOptimisticID func() (string, error)
	Now             func() time.Time
	TrackOperation  func(operation string, errRef *error) func()
	Notify          func(method string, payload any)
	RecordError     func(category string, err error)
	SpawnPreview    func(channelID, messageKey, url string)
}

// SendService is the optimistic send pipeline: every user-initiated
// send, edit and delete becomes immediately visible, then reconciles
// against the network result. It never retries on its own.
type SendService struct {
	deps SendServiceDeps
}

func NewSendService(deps SendServiceDeps) *SendService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewOptimisticID == nil {
		deps.NewOptimisticID = messagingpolicy.NewOptimisticID
	}
	return &SendService{deps: deps}
}

func (s *SendService) Send(ctx context.Context, channelID, text string, mentionedUserIDs []string, parent *models.Message) (msg models.Message, err error) {
	if s.deps.TrackOperation != nil {
		defer s.deps.TrackOperation("message.send", &err)()
	}
	channelID, text, err = messagingpolicy.ValidateSendInput(channelID, text)
	if err != nil {
		return models.Message{}, contracts.WrapCategorizedError(contracts.ErrorCategoryValidation, err)
	}

	optimisticID, err := s.deps.NewOptimisticID()
	if err != nil {
		return models.Message{}, contracts.WrapCategorizedError(contracts.ErrorCategoryAPI, err)
	}
	if err = s.deps.Store.TrackChannel(channelID); err != nil {
		return models.Message{}, s.storageErr(err)
	}
	snapshot := s.deps.Store.SnapshotMessageIDs(channelID)

	provisional := messagingpolicy.NewProvisionalMessage(optimisticID, channelID, s.deps.SelfID, text, parent, s.deps.Now())
	if err = s.deps.Store.UpsertMessage(provisional); err != nil {
		return models.Message{}, s.storageErr(err)
	}
	if err = s.deps.Store.AppendMessageIDs(channelID, optimisticID); err != nil {
		return models.Message{}, s.storageErr(err)
	}
	s.notify("notify.message.new", map[string]any{"channel_id": channelID, "message": provisional})

	if url := messagingpolicy.FirstURL(text); url != "" && s.deps.SpawnPreview != nil {
		s.deps.SpawnPreview(channelID, optimisticID, url)
	}

	canonical, sendErr := s.deps.API.SendMessage(ctx, contracts.SendMessageRequest{
		ChannelID:        channelID,
		Text:             text,
		MentionedUserIDs: mentionedUserIDs,
		ParentMessageID:  provisional.ParentMessageID,
		OptimisticID:     optimisticID,
	})
	if sendErr != nil {
		// Roll the channel back to its last known-good state. Anything
		// appended after the snapshot is discarded with it.
		if restoreErr := s.deps.Store.RestoreMessageIDs(channelID, snapshot); restoreErr != nil {
			s.recordErr(contracts.ErrorCategoryStorage, restoreErr)
		}
		if dropErr := s.deps.Store.DropMessage(optimisticID); dropErr != nil {
			s.recordErr(contracts.ErrorCategoryStorage, dropErr)
		}
		err = contracts.WrapCategorizedError(contracts.ErrorCategoryNetwork, sendErr)
		s.recordErr(contracts.ErrorCategory(err), err)
		return models.Message{}, err
	}

	canonical.SendStatus = models.SendStatusSuccess
	if canonical.OptimisticID == "" {
		canonical.OptimisticID = optimisticID
	}
	if err = s.deps.Store.UpsertMessage(canonical); err != nil {
		return models.Message{}, s.storageErr(err)
	}
	if _, err = s.deps.Store.ReplaceMessageID(channelID, optimisticID, canonical.ID); err != nil {
		return models.Message{}, s.storageErr(err)
	}
	if err = s.deps.Store.SetLastMessage(channelID, canonical.ID, canonical.CreatedAt); err != nil {
		return models.Message{}, s.storageErr(err)
	}
	s.notify("notify.message.sent", map[string]any{"channel_id": channelID, "message": canonical})
	return canonical, nil
}

func (s *SendService) EditMessage(ctx context.Context, channelID, messageID, text string, mentionedUserIDs []string) (msg models.Message, err error) {
	if s.deps.TrackOperation != nil {
		defer s.deps.TrackOperation("message.edit", &err)()
	}
	channelID, messageID, text, err = messagingpolicy.ValidateEditInput(channelID, messageID, text)
	if err != nil {
		return models.Message{}, contracts.WrapCategorizedError(contracts.ErrorCategoryValidation, err)
	}
	current, found := s.deps.Store.Message(messageID)
	if err = messagingpolicy.EnsureEditableMessage(current, found); err != nil {
		return models.Message{}, contracts.WrapCategorizedError(contracts.ErrorCategoryValidation, err)
	}

	prevText, prevEdited := current.Text, current.Edited
	if _, err = s.deps.Store.PatchMessage(messageID, func(m *models.Message) {
		m.Text = text
		m.Edited = true
	}); err != nil {
		return models.Message{}, s.storageErr(err)
	}

	updated, editErr := s.deps.API.EditMessage(ctx, channelID, messageID, text, mentionedUserIDs)
	if editErr != nil {
		if _, revertErr := s.deps.Store.PatchMessage(messageID, func(m *models.Message) {
			m.Text = prevText
			m.Edited = prevEdited
		}); revertErr != nil {
			s.recordErr(contracts.ErrorCategoryStorage, revertErr)
		}
		err = contracts.WrapCategorizedError(contracts.ErrorCategoryNetwork, editErr)
		s.recordErr(contracts.ErrorCategory(err), err)
		return models.Message{}, err
	}

	if _, err = s.deps.Store.PatchMessage(messageID, func(m *models.Message) {
		m.Text = updated.Text
		m.Edited = true
	}); err != nil {
		return models.Message{}, s.storageErr(err)
	}
	result, _ := s.deps.Store.Message(messageID)
	s.notify("notify.message.edited", map[string]any{"channel_id": channelID, "message_id": messageID})
	return result, nil
}

func (s *SendService) DeleteMessage(ctx context.Context, channelID, messageID string) (err error) {
	if s.deps.TrackOperation != nil {
		defer s.deps.TrackOperation("message.delete", &err)()
	}
	channelID, messageID, err = messagingpolicy.ValidateDeleteInput(channelID, messageID)
	if err != nil {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryValidation, err)
	}
	if !s.deps.Store.ContainsMessageID(channelID, messageID) {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryValidation, messagingpolicy.ErrMessageNotFound)
	}

	snapshot := s.deps.Store.SnapshotMessageIDs(channelID)
	if _, err = s.deps.Store.RemoveMessageID(channelID, messageID); err != nil {
		return s.storageErr(err)
	}

	if deleteErr := s.deps.API.DeleteMessage(ctx, channelID, messageID); deleteErr != nil {
		if restoreErr := s.deps.Store.RestoreMessageIDs(channelID, snapshot); restoreErr != nil {
			s.recordErr(contracts.ErrorCategoryStorage, restoreErr)
		}
		err = contracts.WrapCategorizedError(contracts.ErrorCategoryNetwork, deleteErr)
		s.recordErr(contracts.ErrorCategory(err), err)
		return err
	}

	if err = s.deps.Store.DropMessage(messageID); err != nil {
		return s.storageErr(err)
	}
	if err = s.deps.Store.RecomputeLastMessage(channelID); err != nil {
		return s.storageErr(err)
	}
	s.notify("notify.message.deleted", map[string]any{"channel_id": channelID, "message_id": messageID})
	return nil
}

func (s *SendService) notify(method string, payload any) {
	if s.deps.Notify != nil {
		s.deps.Notify(method, payload)
	}
}

func (s *SendService) recordErr(category string, err error) {
	if s.deps.RecordError != nil && err != nil {
		s.deps.RecordError(category, err)
	}
}

func (s *SendService) storageErr(err error) error {
	err = contracts.WrapCategorizedError(contracts.ErrorCategoryStorage, err)
	s.recordErr(contracts.ErrorCategoryStorage, err)
	return err
}
