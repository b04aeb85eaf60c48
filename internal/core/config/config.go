// Package config handles configuration loading and validation for dtfchat.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/hay-kot/criterio"
	"gopkg.in/yaml.v3"

	"github.com/hay-kot/dtfchat/internal/core/session"
	"github.com/hay-kot/dtfchat/internal/core/validate"
)

// Config holds the application configuration.
type Config struct {
	API           APIConfig           `yaml:"api"`
	Retry         RetryConfig         `yaml:"retry"`
	Session       SessionConfig       `yaml:"session"`
	Broadcast     BroadcastConfig     `yaml:"broadcast"`
	Messages      MessagesConfig      `yaml:"messages"`
	Refresh       RefreshConfig       `yaml:"refresh"`
	Notifications NotificationsConfig `yaml:"notifications"`
	// Browser is the command used to open the host site.
	Browser string `yaml:"browser"`
	DataDir string `yaml:"-"` // set by caller, not from config file
}

// APIConfig configures the remote messenger API.
type APIConfig struct {
	BaseURL     string        `yaml:"base_url"`
	SiteURL     string        `yaml:"site_url"`
	TokenHeader string        `yaml:"token_header"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RetryConfig configures the default retry policy for API calls.
type RetryConfig struct {
	Retries   int           `yaml:"retries"`
	BaseDelay time.Duration `yaml:"base_delay"`
}

// SessionConfig configures token acquisition.
type SessionConfig struct {
	Lifetime      time.Duration `yaml:"lifetime"`
	FallbackDelay time.Duration `yaml:"fallback_delay"`
	WaitTimeout   time.Duration `yaml:"wait_timeout"`
	// Fallback enables the heuristic token sources below.
	Fallback bool   `yaml:"fallback"`
	TokenEnv string `yaml:"token_env"`
	// LocalStorageDump is a JSON export of the host page's localStorage.
	LocalStorageDump string `yaml:"local_storage_dump"`
}

// BroadcastConfig lists the transports session events may arrive on.
type BroadcastConfig struct {
	WebSocket WebSocketConfig `yaml:"websocket"`
	Redis     RedisConfig     `yaml:"redis"`
	NATS      NATSConfig      `yaml:"nats"`
}

// WebSocketConfig configures the local bridge the host page userscript connects to.
type WebSocketConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Listen         string   `yaml:"listen"`
	Path           string   `yaml:"path"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// URL returns the ws:// address of the bridge.
func (w WebSocketConfig) URL() string {
	return "ws://" + w.Listen + w.Path
}

// RedisConfig configures a Redis Pub/Sub relay of session events.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// NATSConfig configures a NATS relay of session events.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// MessagesConfig configures the message store.
type MessagesConfig struct {
	PageSize          int           `yaml:"page_size"`
	TypingTimeout     time.Duration `yaml:"typing_timeout"`
	MaxAttachmentSize int64         `yaml:"max_attachment_size"`
	AllowedTypes      []string      `yaml:"allowed_types"`
}

// RefreshConfig configures background polling.
type RefreshConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Counter  time.Duration `yaml:"counter"`
	Channels time.Duration `yaml:"channels"`
	Messages time.Duration `yaml:"messages"`
}

// NotificationsConfig configures user-facing error notifications.
type NotificationsConfig struct {
	Duration time.Duration `yaml:"duration"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:     "https://api.dtf.ru/v2.5",
			SiteURL:     "https://dtf.ru",
			TokenHeader: "JWTAuthorization",
			Timeout:     30 * time.Second,
		},
		Retry: RetryConfig{
			Retries:   2,
			BaseDelay: time.Second,
		},
		Session: SessionConfig{
			Lifetime:      session.DefaultLifetime,
			FallbackDelay: 2 * time.Second,
			WaitTimeout:   15 * time.Second,
			Fallback:      true,
			TokenEnv:      "DTFCHAT_TOKEN",
		},
		Broadcast: BroadcastConfig{
			WebSocket: WebSocketConfig{
				Enabled:        true,
				Listen:         "127.0.0.1:7717",
				Path:           "/events",
				AllowedOrigins: []string{"https://dtf.ru"},
			},
			Redis: RedisConfig{
				Addr:    "127.0.0.1:6379",
				Channel: session.BroadcastChannel,
			},
			NATS: NATSConfig{
				URL:     "nats://127.0.0.1:4222",
				Subject: session.BroadcastChannel,
			},
		},
		Messages: MessagesConfig{
			PageSize:          20,
			TypingTimeout:     5 * time.Second,
			MaxAttachmentSize: validate.DefaultMaxAttachmentSize,
			AllowedTypes:      validate.DefaultAllowedTypes,
		},
		Refresh: RefreshConfig{
			Enabled:  true,
			Counter:  time.Minute,
			Channels: 5 * time.Minute,
			Messages: 30 * time.Second,
		},
		Notifications: NotificationsConfig{
			Duration: 5 * time.Second,
		},
		Browser: "xdg-open",
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills zero values left by an explicit empty entry in the config file.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaults.API.BaseURL
	}
	if c.API.TokenHeader == "" {
		c.API.TokenHeader = defaults.API.TokenHeader
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = defaults.API.Timeout
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = defaults.Retry.BaseDelay
	}
	if c.Session.Lifetime == 0 {
		c.Session.Lifetime = defaults.Session.Lifetime
	}
	if c.Messages.PageSize == 0 {
		c.Messages.PageSize = defaults.Messages.PageSize
	}
	if c.Messages.TypingTimeout == 0 {
		c.Messages.TypingTimeout = defaults.Messages.TypingTimeout
	}
	if c.Messages.MaxAttachmentSize == 0 {
		c.Messages.MaxAttachmentSize = defaults.Messages.MaxAttachmentSize
	}
	if c.Broadcast.WebSocket.Path == "" {
		c.Broadcast.WebSocket.Path = defaults.Broadcast.WebSocket.Path
	}
	if c.Notifications.Duration == 0 {
		c.Notifications.Duration = defaults.Notifications.Duration
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder
	add := func(field string, err error) {
		errs = errs.Append(field, err)
	}

	if c.DataDir == "" {
		add("data_dir", errors.New("data directory cannot be empty"))
	}

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("api.base_url", fmt.Errorf("must be an absolute URL, got %q", c.API.BaseURL))
	}

	if c.Retry.Retries < 0 {
		add("retry.retries", errors.New("must not be negative"))
	}

	if c.Session.WaitTimeout < c.Session.FallbackDelay {
		add("session.wait_timeout", errors.New("must not be shorter than session.fallback_delay"))
	}

	if c.Messages.PageSize < 1 {
		add("messages.page_size", errors.New("must be at least 1"))
	}

	if c.Broadcast.WebSocket.Enabled && c.Broadcast.WebSocket.Listen == "" {
		add("broadcast.websocket.listen", errors.New("required when the websocket bridge is enabled"))
	}

	if c.Broadcast.Redis.Enabled && (c.Broadcast.Redis.Addr == "" || c.Broadcast.Redis.Channel == "") {
		add("broadcast.redis", errors.New("addr and channel are required when enabled"))
	}

	if c.Broadcast.NATS.Enabled && (c.Broadcast.NATS.URL == "" || c.Broadcast.NATS.Subject == "") {
		add("broadcast.nats", errors.New("url and subject are required when enabled"))
	}

	if c.Refresh.Enabled && (c.Refresh.Counter <= 0 || c.Refresh.Channels <= 0) {
		add("refresh", errors.New("counter and channels intervals must be positive when enabled"))
	}

	return errs.ToError()
}

// SessionFile returns the path to the persisted session record.
func (c *Config) SessionFile() string {
	return filepath.Join(c.DataDir, "session.json")
}

// AttachmentRules returns the attachment limits for outgoing messages.
func (c *Config) AttachmentRules() validate.Rules {
	return validate.Rules{
		MaxAttachmentSize: c.Messages.MaxAttachmentSize,
		AllowedTypes:      c.Messages.AllowedTypes,
	}
}
