package liveprice

import (
	"time"

	"github.com/rickgao/liveprice/internal/batcher"
	"github.com/rickgao/liveprice/internal/config"
	"github.com/rickgao/liveprice/internal/connection"
	"github.com/rickgao/liveprice/internal/router"
	"github.com/rickgao/liveprice/internal/subscription"
)

// Config holds hub configuration.
type Config struct {
	Connection   connection.ManagerConfig
	Router       router.Config
	Batcher      batcher.Config
	Subscription subscription.Config
	SeedTimeout  time.Duration // Bound on the once-per-session snapshot (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Connection:   connection.DefaultManagerConfig(),
		Router:       router.DefaultConfig(),
		Batcher:      batcher.DefaultConfig(),
		Subscription: subscription.DefaultConfig(),
		SeedTimeout:  10 * time.Second,
	}
}

// ConfigFrom maps process configuration onto hub configuration.
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig()

	c.Connection.Client.URL = cfg.API.WSURL
	c.Connection.Client.Token = cfg.API.Token
	c.Connection.Client.HandshakeTimeout = cfg.Connection.HandshakeTimeout
	c.Connection.Client.PingInterval = cfg.Connection.PingInterval
	c.Connection.Client.PingTimeout = cfg.Connection.PingTimeout
	c.Connection.Client.WriteTimeout = cfg.Connection.WriteTimeout
	c.Connection.Client.BufferSize = cfg.Connection.BufferSize
	c.Connection.ReconnectMinDelay = cfg.Connection.ReconnectMinDelay
	c.Connection.ReconnectMaxDelay = cfg.Connection.ReconnectMaxDelay
	c.Connection.MaxAttempts = cfg.Connection.MaxAttempts

	c.Batcher.Window = cfg.Batcher.Window
	c.Subscription.UnsubscribeOnIdle = cfg.Subscriptions.UnsubscribeOnIdleEnabled()
	if cfg.Seed.Timeout > 0 {
		c.SeedTimeout = cfg.Seed.Timeout
	}

	return c
}
