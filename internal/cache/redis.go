package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/liveprice/internal/config"
	"github.com/rickgao/liveprice/internal/model"
)

const (
	channelPrefix = "prices."
	scanCount     = 200
	mgetChunk     = 500
)

// record is the stored JSON shape. Timestamp is Unix microseconds when it is
// too large to be milliseconds.
type record struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change    float64 `json:"change,omitempty"`
	High      float64 `json:"high,omitempty"`
	Low       float64 `json:"low,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// NewClient creates a Redis client from config.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisSource seeds quotes from Redis and mirrors flushed quotes back.
type RedisSource struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisSource wraps a client. ttl of zero stores keys without expiry.
func NewRedisSource(client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *RedisSource {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = config.DefaultRedisKeyPrefix
	}
	return &RedisSource{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With("component", "redis"),
	}
}

// Ping checks connectivity.
func (s *RedisSource) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Snapshot returns every quote stored under the prefix. Unreadable entries
// are skipped.
func (s *RedisSource) Snapshot(ctx context.Context) ([]model.PriceQuote, error) {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, keys)
}

// Quotes returns stored quotes for the given symbols.
func (s *RedisSource) Quotes(ctx context.Context, symbols []string) ([]model.PriceQuote, error) {
	keys := make([]string, 0, len(symbols))
	for sym := range model.SymbolSet(symbols) {
		keys = append(keys, s.prefix+sym)
	}
	return s.load(ctx, keys)
}

// Publish stores quotes and announces each on its channel in one pipeline.
func (s *RedisSource) Publish(ctx context.Context, quotes []model.PriceQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, q := range quotes {
		payload, err := json.Marshal(record{
			Symbol:    q.Symbol,
			Price:     q.Price,
			Change:    q.Change,
			High:      q.High,
			Low:       q.Low,
			Timestamp: q.ObservedAt.UnixMilli(),
		})
		if err != nil {
			return fmt.Errorf("marshal %s: %w", q.Symbol, err)
		}
		pipe.Set(ctx, s.prefix+q.Symbol, payload, s.ttl)
		pipe.Publish(ctx, channelPrefix+q.Symbol, payload)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisSource) Close() error {
	return s.client.Close()
}

func (s *RedisSource) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func (s *RedisSource) load(ctx context.Context, keys []string) ([]model.PriceQuote, error) {
	quotes := make([]model.PriceQuote, 0, len(keys))
	for start := 0; start < len(keys); start += mgetChunk {
		end := min(start+mgetChunk, len(keys))
		chunk := keys[start:end]

		vals, err := s.client.MGet(ctx, chunk...).Result()
		if err != nil {
			return nil, fmt.Errorf("redis mget: %w", err)
		}

		for i, val := range vals {
			payload, ok := val.(string)
			if !ok || payload == "" {
				continue
			}
			q, err := decode(strings.TrimPrefix(chunk[i], s.prefix), payload)
			if err != nil {
				s.logger.Debug("skipping cached quote", "key", chunk[i], "error", err)
				continue
			}
			quotes = append(quotes, q)
		}
	}
	return quotes, nil
}

func decode(keySymbol, payload string) (model.PriceQuote, error) {
	var r record
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return model.PriceQuote{}, err
	}

	sym := model.NormalizeSymbol(r.Symbol)
	if sym == "" {
		sym = model.NormalizeSymbol(keySymbol)
	}
	if sym == "" {
		return model.PriceQuote{}, fmt.Errorf("no symbol")
	}

	var observed time.Time
	switch {
	case r.Timestamp > 1e15:
		observed = time.UnixMicro(r.Timestamp).UTC()
	case r.Timestamp > 0:
		observed = time.UnixMilli(r.Timestamp).UTC()
	}

	return model.PriceQuote{
		Symbol:     sym,
		Price:      r.Price,
		Change:     r.Change,
		High:       r.High,
		Low:        r.Low,
		ObservedAt: observed,
	}, nil
}
