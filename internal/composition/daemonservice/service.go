package daemonservice

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"lumen-chat/go-client/internal/app"
	"lumen-chat/go-client/internal/domains/contracts"
	messagingusecase "lumen-chat/go-client/internal/domains/messaging/usecase"
	uploadsusecase "lumen-chat/go-client/internal/domains/uploads/usecase"
	"lumen-chat/go-client/internal/store"
	"lumen-chat/go-client/pkg/models"
)

// Service wires the engine together behind the contracts.SyncService
// surface: one store, one notification hub, one metrics sink, and the
// four pipelines sharing them.
type Service struct {
	store   *store.ChannelStore
	hub     *app.NotificationHub
	metrics *app.ServiceMetricsState
	tracker *app.OperationTracker
	logger  *slog.Logger

	send    *messagingusecase.SendService
	history *messagingusecase.HistoryService
	inbound *messagingusecase.InboundService
	uploads *uploadsusecase.UploadService
	preview *messagingusecase.PreviewResolver

	mu              sync.RWMutex
	activeChannelID string
	focused         bool

	previews sync.WaitGroup
}

type Deps struct {
	Store               *store.ChannelStore
	API                 contracts.ChatAPI
	SelfID              string
	PreviewTimeout      time.Duration
	NotificationBacklog int
	Registry            prometheus.Registerer
	Logger              *slog.Logger
}

func NewService(deps Deps) *Service {
	if deps.NotificationBacklog <= 0 {
		deps.NotificationBacklog = 256
	}
	if deps.Logger == nil {
		deps.Logger = app.DefaultLogger()
	}

	metrics := app.NewServiceMetricsState()
	tracker := &app.OperationTracker{
		State:      metrics,
		Collectors: app.NewCollectors(deps.Registry),
	}

	s := &Service{
		store:   deps.Store,
		hub:     app.NewNotificationHub(deps.NotificationBacklog),
		metrics: metrics,
		tracker: tracker,
		logger:  deps.Logger,
	}

	notify := func(method string, payload any) {
		s.hub.Publish(method, payload)
	}
	recordError := func(category string, err error) {
		s.tracker.RecordError(category)
		s.logger.Warn("operation error", "category", category, "err", err.Error())
	}

	s.preview = messagingusecase.NewPreviewResolver(messagingusecase.PreviewResolverDeps{
		Store:       deps.Store,
		API:         deps.API,
		Timeout:     deps.PreviewTimeout,
		RecordError: recordError,
	})
	spawnPreview := func(channelID, messageKey, url string) {
		s.previews.Add(1)
		go func() {
			defer s.previews.Done()
			s.preview.Resolve(channelID, messageKey, url)
		}()
	}

	s.send = messagingusecase.NewSendService(messagingusecase.SendServiceDeps{
		Store:          deps.Store,
		API:            deps.API,
		SelfID:         deps.SelfID,
		TrackOperation: tracker.Track,
		Notify:         notify,
		RecordError:    recordError,
		SpawnPreview:   spawnPreview,
	})
	s.history = messagingusecase.NewHistoryService(messagingusecase.HistoryServiceDeps{
		Store:          deps.Store,
		API:            deps.API,
		SelfID:         deps.SelfID,
		TrackOperation: tracker.Track,
		RecordError:    recordError,
		Notify:         notify,
	})
	s.inbound = messagingusecase.NewInboundService(messagingusecase.InboundServiceDeps{
		Store:           deps.Store,
		SelfID:          deps.SelfID,
		ActiveChannelID: s.currentActiveChannel,
		IsFocused:       s.currentFocus,
		Notify:          notify,
		RecordError:     recordError,
		SpawnPreview:    spawnPreview,
	})
	s.uploads = uploadsusecase.NewUploadService(uploadsusecase.UploadServiceDeps{
		Store:          deps.Store,
		API:            deps.API,
		SelfID:         deps.SelfID,
		TrackOperation: tracker.Track,
		Notify:         notify,
		RecordError:    recordError,
	})
	return s
}

func (s *Service) Send(ctx context.Context, channelID, text string, mentionedUserIDs []string, parentMessageID string) (models.Message, error) {
	var parent *models.Message
	if parentMessageID != "" {
		if p, ok := s.store.Message(parentMessageID); ok {
			parent = &p
		}
	}
	return s.send.Send(ctx, channelID, text, mentionedUserIDs, parent)
}

func (s *Service) EditMessage(ctx context.Context, channelID, messageID, text string, mentionedUserIDs []string) (models.Message, error) {
	return s.send.EditMessage(ctx, channelID, messageID, text, mentionedUserIDs)
}

func (s *Service) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return s.send.DeleteMessage(ctx, channelID, messageID)
}

func (s *Service) Fetch(ctx context.Context, channelID string, before *time.Time) error {
	return s.history.Fetch(ctx, channelID, before)
}

func (s *Service) FetchNew(ctx context.Context, channelID string) (int, error) {
	return s.history.FetchNew(ctx, channelID)
}

func (s *Service) Denormalize(channelID string) (models.DenormalizedChannel, bool) {
	return s.store.Denormalize(channelID)
}

func (s *Service) UploadBatch(ctx context.Context, channelID, parentMessageID string, items []contracts.UploadBatchItem) ([]contracts.UploadResult, error) {
	return s.uploads.UploadBatch(ctx, channelID, parentMessageID, items)
}

func (s *Service) ReceiveNewMessage(channelID string, msg models.Message) {
	s.inbound.ReceiveNewMessage(channelID, msg)
}

func (s *Service) ReceiveEdit(channelID, messageID string, patch contracts.MessagePatch) {
	s.inbound.ReceiveEdit(channelID, messageID, patch)
}

func (s *Service) ReceiveDelete(channelID, messageID string) {
	s.inbound.ReceiveDelete(channelID, messageID)
}

func (s *Service) SetActiveChannel(channelID string, focused bool) {
	s.mu.Lock()
	s.activeChannelID = channelID
	s.focused = focused
	s.mu.Unlock()

	if channelID == "" {
		return
	}
	if err := s.store.MarkRead(channelID); err != nil {
		s.tracker.RecordError(contracts.ErrorCategoryStorage)
	}
	if err := s.store.ClearSyncFlag(channelID); err != nil {
		s.tracker.RecordError(contracts.ErrorCategoryStorage)
	}
}

func (s *Service) SubscribeNotifications(fromSeq int64) ([]contracts.NotificationEvent, <-chan contracts.NotificationEvent, func()) {
	return s.hub.Subscribe(fromSeq)
}

func (s *Service) MetricsSnapshot() models.MetricsSnapshot {
	snapshot := s.metrics.Snapshot()
	snapshot.TrackedChannels = s.store.ChannelCount()
	return snapshot
}

// WaitPreviews blocks until in-flight preview resolutions settle.
// Shutdown and tests use it; normal operation never does.
func (s *Service) WaitPreviews() {
	s.previews.Wait()
}

func (s *Service) currentActiveChannel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeChannelID
}

func (s *Service) currentFocus() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.focused
}
