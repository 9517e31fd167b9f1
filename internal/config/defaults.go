package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL           = "http://localhost:5000"
	DefaultWSURL             = "ws://localhost:5000/ws"
	DefaultAPITimeout        = 10 * time.Second
	DefaultMaxRetries        = 3
	DefaultReconnectMinDelay = 1 * time.Second
	DefaultReconnectMaxDelay = 5 * time.Second
	DefaultMaxAttempts       = 5
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultPingInterval      = 30 * time.Second
	DefaultPingTimeout       = 60 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultBufferSize        = 10000
	DefaultBatchWindow       = 200 * time.Millisecond
	DefaultSeedTimeout       = 5 * time.Second
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisKeyPrefix    = "stock:"
	DefaultRedisTTL          = time.Hour
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultQuoteTable        = "quotes"
	DefaultWriterBatchSize   = 500
	DefaultWriterFlush       = time.Second
	DefaultPortfolioInterval = 30 * time.Second
	DefaultStatusPort        = 8080
)

// DefaultSeedSources is used when seed.sources is not set.
var DefaultSeedSources = []string{"rest"}

// ApplyDefaults fills zero-valued optional fields.
func (c *Config) ApplyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Connection defaults
	if c.Connection.ReconnectMinDelay == 0 {
		c.Connection.ReconnectMinDelay = DefaultReconnectMinDelay
	}
	if c.Connection.ReconnectMaxDelay == 0 {
		c.Connection.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Connection.MaxAttempts == 0 {
		c.Connection.MaxAttempts = DefaultMaxAttempts
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.PingTimeout == 0 {
		c.Connection.PingTimeout = DefaultPingTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultBufferSize
	}

	if c.Batcher.Window == 0 {
		c.Batcher.Window = DefaultBatchWindow
	}

	// Seed defaults
	if len(c.Seed.Sources) == 0 {
		c.Seed.Sources = append([]string(nil), DefaultSeedSources...)
	}
	if c.Seed.Timeout == 0 {
		c.Seed.Timeout = DefaultSeedTimeout
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = DefaultRedisTTL
	}

	applyDBDefaults(&c.Database)

	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = DefaultWriterBatchSize
	}
	if c.Writer.FlushInterval == 0 {
		c.Writer.FlushInterval = DefaultWriterFlush
	}

	if c.Portfolio.Interval == 0 {
		c.Portfolio.Interval = DefaultPortfolioInterval
	}

	if c.Status.Port == 0 {
		c.Status.Port = DefaultStatusPort
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
	if db.Table == "" {
		db.Table = DefaultQuoteTable
	}
}
