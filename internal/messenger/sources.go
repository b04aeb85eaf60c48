package messenger

import (
	"github.com/rs/zerolog"

	"github.com/hay-kot/dtfchat/internal/auth"
	"github.com/hay-kot/dtfchat/internal/core/config"
	"github.com/hay-kot/dtfchat/internal/core/session"
	"github.com/hay-kot/dtfchat/internal/integration/broadcast/natsbus"
	"github.com/hay-kot/dtfchat/internal/integration/broadcast/redisbus"
	"github.com/hay-kot/dtfchat/internal/integration/broadcast/wsbridge"
)

// EventSources returns the broadcast transports enabled in cfg.
func EventSources(cfg *config.Config, log zerolog.Logger) []session.EventSource {
	var sources []session.EventSource

	b := cfg.Broadcast
	if b.WebSocket.Enabled {
		sources = append(sources, wsbridge.New(wsbridge.Options{
			Listen:         b.WebSocket.Listen,
			Path:           b.WebSocket.Path,
			AllowedOrigins: b.WebSocket.AllowedOrigins,
		}, log.With().Str("component", "wsbridge").Logger()))
	}
	if b.Redis.Enabled {
		sources = append(sources, redisbus.New(redisbus.Options{
			Addr:     b.Redis.Addr,
			Password: b.Redis.Password,
			DB:       b.Redis.DB,
			Channel:  b.Redis.Channel,
		}, log.With().Str("component", "redisbus").Logger()))
	}
	if b.NATS.Enabled {
		sources = append(sources, natsbus.New(natsbus.Options{
			URL:     b.NATS.URL,
			Subject: b.NATS.Subject,
		}, log.With().Str("component", "natsbus").Logger()))
	}

	return sources
}

// FallbackSource returns the heuristic token source, or nil when disabled.
func FallbackSource(cfg *config.Config, log zerolog.Logger) session.EventSource {
	if !cfg.Session.Fallback {
		return nil
	}

	var extractors []auth.Extractor
	if cfg.Session.TokenEnv != "" {
		extractors = append(extractors, auth.EnvExtractor{Var: cfg.Session.TokenEnv})
	}
	if cfg.Session.LocalStorageDump != "" {
		extractors = append(extractors, auth.LocalStorageExtractor{Path: cfg.Session.LocalStorageDump})
	}
	if len(extractors) == 0 {
		return nil
	}

	return auth.NewFallback(log.With().Str("component", "fallback").Logger(), extractors...)
}
