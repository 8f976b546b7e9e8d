package usecase

import (
	"context"
	"time"

	"lumen-chat/go-client/internal/domains/contracts"
	"lumen-chat/go-client/internal/store"
	"lumen-chat/go-client/pkg/models"
)

const defaultPreviewTimeout = 10 * time.Second

type PreviewResolverDeps struct {
	Store       *store.ChannelStore
	API         contracts.ChatAPI
	Timeout     time.Duration
	RecordError func(category string, err error)
}

// PreviewResolver fills in link previews after the fact. Resolution is
// best-effort: failures are recorded, never surfaced, and patching a
// message that no longer exists is a no-op.
type PreviewResolver struct {
	deps PreviewResolverDeps
}

func NewPreviewResolver(deps PreviewResolverDeps) *PreviewResolver {
	if deps.Timeout <= 0 {
		deps.Timeout = defaultPreviewTimeout
	}
	return &PreviewResolver{deps: deps}
}

// Resolve fetches the preview and patches it into the message identified
// by messageKey. The key may be an optimistic token that was
// canonicalized while the fetch was in flight; the optimistic-id lookup
// covers that window.
func (r *PreviewResolver) Resolve(channelID, messageKey, rawURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.deps.Timeout)
	defer cancel()

	preview, err := r.deps.API.ResolveLinkPreview(ctx, rawURL)
	if err != nil {
		if r.deps.RecordError != nil {
			r.deps.RecordError(contracts.ErrorCategoryNetwork, err)
		}
		return
	}

	apply := func(m *models.Message) {
		p := preview
		m.LinkPreview = &p
	}
	patched, err := r.deps.Store.PatchMessage(messageKey, apply)
	if err == nil && !patched {
		_, err = r.deps.Store.PatchByOptimisticID(channelID, messageKey, apply)
	}
	if err != nil && r.deps.RecordError != nil {
		r.deps.RecordError(contracts.ErrorCategoryStorage, err)
	}
}
