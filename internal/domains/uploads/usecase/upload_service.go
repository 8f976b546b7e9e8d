package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"lumen-chat/go-client/internal/domains/contracts"
	messagingpolicy "lumen-chat/go-client/internal/domains/messaging/policy"
	uploadspolicy "lumen-chat/go-client/internal/domains/uploads/policy"
	"lumen-chat/go-client/internal/store"
	"lumen-chat/go-client/pkg/models"
)

// Uploadable is one finalized-message producer. The three
// implementations below are the only ones.
type Uploadable interface {
	Upload(ctx context.Context, channelID, rootMessageID string) (models.Message, error)
}

// MediaUpload sends image bytes through the binary upload endpoint.
// Dimensions are probed client-side before the call.
type MediaUpload struct {
	API          contracts.ChatAPI
	File         contracts.FileUpload
	OptimisticID string
	Width        int
	Height       int
}

func (u MediaUpload) Upload(ctx context.Context, channelID, rootMessageID string) (models.Message, error) {
	return u.API.UploadMedia(ctx, contracts.UploadMediaRequest{
		ChannelID:     channelID,
		File:          u.File,
		RootMessageID: rootMessageID,
		OptimisticID:  u.OptimisticID,
		Width:         u.Width,
		Height:        u.Height,
	})
}

// AttachmentUpload is two-phase: raw bytes become a file descriptor,
// then a message referencing the descriptor is created.
type AttachmentUpload struct {
	API          contracts.ChatAPI
	File         contracts.FileUpload
	OptimisticID string
}

func (u AttachmentUpload) Upload(ctx context.Context, channelID, rootMessageID string) (models.Message, error) {
	descriptor, err := u.API.UploadAttachment(ctx, u.File)
	if err != nil {
		return models.Message{}, err
	}
	return u.API.SendFileMessage(ctx, contracts.SendFileMessageRequest{
		ChannelID:     channelID,
		File:          descriptor,
		RootMessageID: rootMessageID,
		OptimisticID:  u.OptimisticID,
	})
}

// ExternalReferenceUpload creates a message pointing at an
// externally-hosted file. No bytes are transferred.
type ExternalReferenceUpload struct {
	API          contracts.ChatAPI
	URL          string
	MimeType     string
	Name         string
	OptimisticID string
}

func (u ExternalReferenceUpload) Upload(ctx context.Context, channelID, rootMessageID string) (models.Message, error) {
	return u.API.SendExternalMessage(ctx, contracts.SendExternalMessageRequest{
		ChannelID:     channelID,
		URL:           u.URL,
		MimeType:      u.MimeType,
		Name:          u.Name,
		RootMessageID: rootMessageID,
		OptimisticID:  u.OptimisticID,
	})
}

type UploadServiceDeps struct {
	Store  *store.ChannelStore
	API    contracts.ChatAPI
	SelfID string

	NewOptimisticID func() (string, error)
	NewBatchID      func() string
	Now             func() time.Time
	TrackOperation  func(operation string, errRef *error) func()
	Notify          func(method string, payload any)
	RecordError     func(category string, err error)
}

// UploadService fans a file selection out into independent uploads.
// Unlike the text pipeline there is no rollback: a failed item keeps
// its provisional message with SendStatus failed while the rest of the
// batch proceeds.
type UploadService struct {
	deps UploadServiceDeps
}

func NewUploadService(deps UploadServiceDeps) *UploadService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewOptimisticID == nil {
		deps.NewOptimisticID = messagingpolicy.NewOptimisticID
	}
	if deps.NewBatchID == nil {
		deps.NewBatchID = uuid.NewString
	}
	return &UploadService{deps: deps}
}

type batchItem struct {
	optimisticID string
	uploadable   Uploadable
	invalid      error
}

// UploadBatch creates one provisional message per item, then uploads
// each in order. The first canonical id becomes the root message id
// for the rest of the batch when no parent was given.
func (s *UploadService) UploadBatch(ctx context.Context, channelID, parentMessageID string, items []contracts.UploadBatchItem) (results []contracts.UploadResult, err error) {
	if s.deps.TrackOperation != nil {
		defer s.deps.TrackOperation("upload.batch", &err)()
	}
	channelID, err = uploadspolicy.ValidateBatchInput(channelID, len(items))
	if err != nil {
		return nil, contracts.WrapCategorizedError(contracts.ErrorCategoryValidation, err)
	}
	if err = s.deps.Store.TrackChannel(channelID); err != nil {
		return nil, s.storageErr(err)
	}

	var parent *models.Message
	if parentMessageID != "" {
		if p, ok := s.deps.Store.Message(parentMessageID); ok {
			parent = &p
		}
	}

	batchID := s.deps.NewBatchID()
	prepared := make([]batchItem, 0, len(items))
	for _, item := range items {
		optimisticID, idErr := s.deps.NewOptimisticID()
		if idErr != nil {
			err = contracts.WrapCategorizedError(contracts.ErrorCategoryAPI, idErr)
			return nil, err
		}
		attachment, uploadable, itemErr := s.prepare(item, optimisticID)
		prepared = append(prepared, batchItem{optimisticID: optimisticID, uploadable: uploadable, invalid: itemErr})

		provisional := messagingpolicy.NewProvisionalUpload(optimisticID, channelID, s.deps.SelfID, attachment, parent, s.deps.Now())
		if err = s.deps.Store.UpsertMessage(provisional); err != nil {
			return nil, s.storageErr(err)
		}
		if err = s.deps.Store.AppendMessageIDs(channelID, optimisticID); err != nil {
			return nil, s.storageErr(err)
		}
		s.notify("notify.message.new", map[string]any{"channel_id": channelID, "batch_id": batchID, "message": provisional})
	}

	rootMessageID := parentMessageID
	results = make([]contracts.UploadResult, 0, len(prepared))
	for _, item := range prepared {
		result := s.uploadOne(ctx, channelID, rootMessageID, batchID, item)
		if result.Error == "" && rootMessageID == "" {
			rootMessageID = result.Message.ID
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *UploadService) uploadOne(ctx context.Context, channelID, rootMessageID, batchID string, item batchItem) contracts.UploadResult {
	uploadErr := item.invalid
	var canonical models.Message
	if uploadErr == nil {
		canonical, uploadErr = item.uploadable.Upload(ctx, channelID, rootMessageID)
	}
	if uploadErr != nil {
		category := contracts.ErrorCategoryNetwork
		if item.invalid != nil {
			category = contracts.ErrorCategoryValidation
		}
		s.recordErr(category, uploadErr)
		if _, patchErr := s.deps.Store.PatchMessage(item.optimisticID, func(m *models.Message) {
			m.SendStatus = models.SendStatusFailed
		}); patchErr != nil {
			s.recordErr(contracts.ErrorCategoryStorage, patchErr)
		}
		failed, _ := s.deps.Store.Message(item.optimisticID)
		s.notify("notify.message.failed", map[string]any{"channel_id": channelID, "batch_id": batchID, "message": failed})
		return contracts.UploadResult{Message: failed, Error: uploadErr.Error()}
	}

	canonical.ChannelID = channelID
	canonical.SendStatus = models.SendStatusSuccess
	if canonical.OptimisticID == "" {
		canonical.OptimisticID = item.optimisticID
	}
	if canonical.RootMessageID == "" {
		canonical.RootMessageID = rootMessageID
	}
	if err := s.deps.Store.UpsertMessage(canonical); err != nil {
		s.recordErr(contracts.ErrorCategoryStorage, err)
		return contracts.UploadResult{Message: canonical, Error: err.Error()}
	}
	if _, err := s.deps.Store.ReplaceMessageID(channelID, item.optimisticID, canonical.ID); err != nil {
		s.recordErr(contracts.ErrorCategoryStorage, err)
		return contracts.UploadResult{Message: canonical, Error: err.Error()}
	}
	if err := s.deps.Store.SetLastMessage(channelID, canonical.ID, canonical.CreatedAt); err != nil {
		s.recordErr(contracts.ErrorCategoryStorage, err)
	}
	s.notify("notify.message.sent", map[string]any{"channel_id": channelID, "batch_id": batchID, "message": canonical})
	return contracts.UploadResult{Message: canonical}
}

// prepare classifies one batch item into its upload strategy and the
// attachment shown on the provisional message.
func (s *UploadService) prepare(item contracts.UploadBatchItem, optimisticID string) (models.MediaAttachment, Uploadable, error) {
	if item.File != nil {
		name, mimeType, err := uploadspolicy.ValidateFile(item.File.Name, item.File.MimeType, len(item.File.Data))
		if err != nil {
			return models.MediaAttachment{Name: item.File.Name, MimeType: item.File.MimeType}, nil, err
		}
		file := contracts.FileUpload{Name: name, MimeType: mimeType, Data: item.File.Data}
		attachment := models.MediaAttachment{Name: name, MimeType: mimeType, Size: int64(len(file.Data))}
		if uploadspolicy.IsImageMime(mimeType) {
			width, height := uploadspolicy.ProbeImageDimensions(file.Data)
			attachment.Width, attachment.Height = width, height
			return attachment, MediaUpload{API: s.deps.API, File: file, OptimisticID: optimisticID, Width: width, Height: height}, nil
		}
		return attachment, AttachmentUpload{API: s.deps.API, File: file, OptimisticID: optimisticID}, nil
	}

	externalURL, mimeType, err := uploadspolicy.ValidateExternalReference(item.ExternalURL, item.ExternalMimeType)
	if err != nil {
		return models.MediaAttachment{URL: item.ExternalURL, External: true}, nil, err
	}
	attachment := models.MediaAttachment{URL: externalURL, MimeType: mimeType, Name: item.ExternalName, External: true}
	return attachment, ExternalReferenceUpload{
		API:          s.deps.API,
		URL:          externalURL,
		MimeType:     mimeType,
		Name:         item.ExternalName,
		OptimisticID: optimisticID,
	}, nil
}

func (s *UploadService) notify(method string, payload any) {
	if s.deps.Notify != nil {
		s.deps.Notify(method, payload)
	}
}

func (s *UploadService) recordErr(category string, err error) {
	if s.deps.RecordError != nil && err != nil {
		s.deps.RecordError(category, err)
	}
}

func (s *UploadService) storageErr(err error) error {
	err = contracts.WrapCategorizedError(contracts.ErrorCategoryStorage, err)
	s.recordErr(contracts.ErrorCategoryStorage, err)
	return err
}
