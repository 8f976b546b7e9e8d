package daemonservice

import (
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"lumen-chat/go-client/internal/adapters/httpapi"
	"lumen-chat/go-client/internal/bootstrap/clientconfig"
	"lumen-chat/go-client/internal/store"
)

// Build assembles a Service from configuration. An empty dataDir
// override keeps the configured one; a missing passphrase selects the
// in-memory store.
func Build(configPath, dataDir string, registry prometheus.Registerer) (*Service, clientconfig.Config, error) {
	cfg := clientconfig.LoadFromPath(configPath)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	channelStore, err := buildStore(cfg)
	if err != nil {
		return nil, cfg, err
	}

	api := httpapi.NewClient(httpapi.Options{
		BaseURL:  cfg.APIBaseURL,
		Token:    cfg.APIToken,
		PageSize: cfg.PageSize,
	})

	svc := NewService(Deps{
		Store:               channelStore,
		API:                 api,
		SelfID:              cfg.SelfUserID,
		PreviewTimeout:      cfg.PreviewTimeout,
		NotificationBacklog: cfg.NotificationBacklog,
		Registry:            registry,
	})
	return svc, cfg, nil
}

func buildStore(cfg clientconfig.Config) (*store.ChannelStore, error) {
	if cfg.DataDir == "" || cfg.StatePassphrase == "" {
		return store.NewChannelStore(), nil
	}
	path := filepath.Join(cfg.DataDir, "channels.state")
	channelStore, err := store.NewPersistentChannelStore(path, cfg.StatePassphrase)
	if err != nil {
		return nil, fmt.Errorf("open channel state: %w", err)
	}
	return channelStore, nil
}
