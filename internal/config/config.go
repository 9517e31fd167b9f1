package config

import "time"

// Config is the root configuration for a live price process.
type Config struct {
	Instance      InstanceConfig      `yaml:"instance"`
	API           APIConfig           `yaml:"api"`
	Connection    ConnectionConfig    `yaml:"connection"`
	Batcher       BatcherConfig       `yaml:"batcher"`
	Subscriptions SubscriptionsConfig `yaml:"subscriptions"`
	Seed          SeedConfig          `yaml:"seed"`
	Redis         RedisConfig         `yaml:"redis"`
	Database      DBConfig            `yaml:"database"`
	Writer        WriterConfig        `yaml:"writer"`
	Portfolio     PortfolioConfig     `yaml:"portfolio"`
	Status        StatusConfig        `yaml:"status"`
	Watch         WatchConfig         `yaml:"watch"`
}

// InstanceConfig identifies this process in logs.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds price server settings.
type APIConfig struct {
	RestURL    string        `yaml:"rest_url"`
	WSURL      string        `yaml:"ws_url"`
	Token      string        `yaml:"token"`      // Bearer token for portfolio/trade/watchlist endpoints
	TokenFile  string        `yaml:"token_file"` // Read when token is empty
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// ConnectionConfig holds the shared streaming connection settings.
type ConnectionConfig struct {
	ReconnectMinDelay time.Duration `yaml:"reconnect_min_delay"`
	ReconnectMaxDelay time.Duration `yaml:"reconnect_max_delay"`
	MaxAttempts       int           `yaml:"max_attempts"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	PingTimeout       time.Duration `yaml:"ping_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	BufferSize        int           `yaml:"buffer_size"`
}

// BatcherConfig holds update batching settings.
type BatcherConfig struct {
	Window time.Duration `yaml:"window"`
}

// SubscriptionsConfig holds subscription tracking settings.
type SubscriptionsConfig struct {
	// UnsubscribeOnIdle sends unsubscribe when no consumer wants a symbol.
	// Nil means the default (true).
	UnsubscribeOnIdle *bool `yaml:"unsubscribe_on_idle"`
}

// SeedConfig controls the one-time bulk snapshot per session.
type SeedConfig struct {
	Sources []string      `yaml:"sources"` // Tried in order: "rest", "redis", "postgres"
	Timeout time.Duration `yaml:"timeout"`
}

// RedisConfig holds the shared quote cache used as a seed source.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	Mirror    bool          `yaml:"mirror"` // Write flushed quotes back to Redis
	TTL       time.Duration `yaml:"ttl"`
}

// DBConfig holds a Postgres connection used as a seed source.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
	Table    string `yaml:"table"`
	Record   bool   `yaml:"record"` // Append flushed quotes to table
}

// WriterConfig controls batching for the quote mirrors (Redis, Postgres).
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// PortfolioConfig controls the authenticated portfolio poller.
type PortfolioConfig struct {
	Poll     bool          `yaml:"poll"`
	Interval time.Duration `yaml:"interval"`
}

// StatusConfig holds the HTTP status server settings.
type StatusConfig struct {
	Port int `yaml:"port"`
}

// WatchConfig lists the symbols the pricewatch daemon attaches to.
type WatchConfig struct {
	Symbols []string `yaml:"symbols"`
}

// UnsubscribeOnIdleEnabled reports the effective setting.
func (s SubscriptionsConfig) UnsubscribeOnIdleEnabled() bool {
	if s.UnsubscribeOnIdle == nil {
		return true
	}
	return *s.UnsubscribeOnIdle
}

// HasSource reports whether the named seed source is configured.
func (s SeedConfig) HasSource(name string) bool {
	for _, src := range s.Sources {
		if src == name {
			return true
		}
	}
	return false
}
