package clientconfig

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is everything the daemon needs to talk to the chat backend
// and serve the local RPC surface.
type Config struct {
	APIBaseURL          string
	APIToken            string
	SelfUserID          string
	RPCAddr             string
	DataDir             string
	StatePassphrase     string
	PageSize            int
	PreviewTimeout      time.Duration
	NotificationBacklog int
}

func DefaultConfig() Config {
	return Config{
		RPCAddr:             "127.0.0.1:8787",
		PageSize:            50,
		PreviewTimeout:      10 * time.Second,
		NotificationBacklog: 256,
	}
}

type fileConfig struct {
	API     fileAPIConfig     `yaml:"api"`
	Sync    fileSyncConfig    `yaml:"sync"`
	Storage fileStorageConfig `yaml:"storage"`
	RPC     fileRPCConfig     `yaml:"rpc"`
}

type fileAPIConfig struct {
	BaseURL    string `yaml:"baseUrl"`
	Token      string `yaml:"token"`
	SelfUserID string `yaml:"selfUserId"`
}

type fileSyncConfig struct {
	PageSize            int           `yaml:"pageSize"`
	PreviewTimeout      time.Duration `yaml:"previewTimeout"`
	NotificationBacklog int           `yaml:"notificationBacklog"`
}

type fileStorageConfig struct {
	DataDir    string `yaml:"dataDir"`
	Passphrase string `yaml:"passphrase"`
}

type fileRPCConfig struct {
	Addr string `yaml:"addr"`
}

// LoadFromPath reads the first parseable candidate file, merges it over
// the defaults and applies environment overrides on top.
func LoadFromPath(configPath string) Config {
	cfg := DefaultConfig()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"configs/client.yaml",
			"client.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var parsed fileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}

		merged := cfg
		Merge(&merged, parsed)
		ApplyEnvOverrides(&merged)
		return merged
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

func Merge(dst *Config, src fileConfig) {
	if src.API.BaseURL != "" {
		dst.APIBaseURL = src.API.BaseURL
	}
	if src.API.Token != "" {
		dst.APIToken = src.API.Token
	}
	if src.API.SelfUserID != "" {
		dst.SelfUserID = src.API.SelfUserID
	}
	if src.Sync.PageSize != 0 {
		dst.PageSize = src.Sync.PageSize
	}
	if src.Sync.PreviewTimeout != 0 {
		dst.PreviewTimeout = src.Sync.PreviewTimeout
	}
	if src.Sync.NotificationBacklog != 0 {
		dst.NotificationBacklog = src.Sync.NotificationBacklog
	}
	if src.Storage.DataDir != "" {
		dst.DataDir = src.Storage.DataDir
	}
	if src.Storage.Passphrase != "" {
		dst.StatePassphrase = src.Storage.Passphrase
	}
	if src.RPC.Addr != "" {
		dst.RPCAddr = src.RPC.Addr
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("LUMEN_API_BASE_URL")); v != "" {
		cfg.APIBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("LUMEN_API_TOKEN")); v != "" {
		cfg.APIToken = v
	}
	if v := strings.TrimSpace(os.Getenv("LUMEN_SELF_USER_ID")); v != "" {
		cfg.SelfUserID = v
	}
	if v := strings.TrimSpace(os.Getenv("LUMEN_RPC_ADDR")); v != "" {
		cfg.RPCAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("LUMEN_DATA_DIR")); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("LUMEN_STATE_PASSPHRASE")); v != "" {
		cfg.StatePassphrase = v
	}
	if raw := strings.TrimSpace(os.Getenv("LUMEN_PAGE_SIZE")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			cfg.PageSize = v
		}
	}
}
