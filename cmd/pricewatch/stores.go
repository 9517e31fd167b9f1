package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/liveprice/internal/api"
	"github.com/rickgao/liveprice/internal/cache"
	"github.com/rickgao/liveprice/internal/config"
	"github.com/rickgao/liveprice/internal/database"
	"github.com/rickgao/liveprice/internal/liveprice"
	"github.com/rickgao/liveprice/internal/model"
	"github.com/rickgao/liveprice/internal/status"
	"github.com/rickgao/liveprice/internal/writer"
)

// mirror is a named writer fed from the hub tap.
type mirror struct {
	name   string
	writer *writer.QuoteWriter
}

// stores holds the optional Redis and Postgres backends.
type stores struct {
	logger *slog.Logger

	redis  *cache.RedisSource
	pool   *pgxpool.Pool
	quotes *database.QuoteStore

	sources []liveprice.NamedSource
	mirrors []mirror
}

// openStores connects whatever the config asks for: seed sources in
// configured order and the Redis/Postgres mirrors.
func openStores(ctx context.Context, cfg *config.Config, client *api.Client, logger *slog.Logger) (*stores, error) {
	s := &stores{logger: logger}

	needRedis := cfg.Seed.HasSource("redis") || cfg.Redis.Mirror
	needPostgres := cfg.Seed.HasSource("postgres") || cfg.Database.Record

	if needRedis {
		s.redis = cache.NewRedisSource(cache.NewClient(cfg.Redis), cfg.Redis.KeyPrefix, cfg.Redis.TTL, logger)
		if err := s.redis.Ping(ctx); err != nil {
			s.close()
			return nil, err
		}
		logger.Info("redis connected", "addr", cfg.Redis.Addr)
	}

	if needPostgres {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.pool = pool

		s.quotes, err = database.NewQuoteStore(pool, cfg.Database.Table, logger)
		if err != nil {
			s.close()
			return nil, err
		}
		if cfg.Database.Record {
			if err := s.quotes.EnsureSchema(ctx); err != nil {
				s.close()
				return nil, err
			}
		}
		logger.Info("database connected", "table", cfg.Database.Table)
	}

	for _, name := range cfg.Seed.Sources {
		var src liveprice.SnapshotSource
		switch name {
		case "rest":
			src = client
		case "redis":
			src = s.redis
		case "postgres":
			src = s.quotes
		}
		s.sources = append(s.sources, liveprice.NamedSource{Name: name, Source: src})
	}

	wcfg := writer.Config{
		BatchSize:     cfg.Writer.BatchSize,
		FlushInterval: cfg.Writer.FlushInterval,
	}
	if cfg.Redis.Mirror {
		wcfg.Name = "redis_mirror"
		s.mirrors = append(s.mirrors, mirror{
			name:   wcfg.Name,
			writer: writer.NewQuoteWriter(wcfg, writer.SinkFunc(s.redis.Publish), logger),
		})
	}
	if cfg.Database.Record {
		wcfg.Name = "postgres_history"
		s.mirrors = append(s.mirrors, mirror{
			name:   wcfg.Name,
			writer: writer.NewQuoteWriter(wcfg, s.quotes, logger),
		})
	}

	return s, nil
}

// seed returns the combined snapshot source, or nil when none is configured.
func (s *stores) seed() liveprice.SnapshotSource {
	if len(s.sources) == 0 {
		return nil
	}
	return liveprice.NewMultiSource(s.logger, s.sources...)
}

// tap fans streamed quotes out to the mirrors.
func (s *stores) tap() func(model.PriceQuote) {
	if len(s.mirrors) == 0 {
		return nil
	}
	return func(q model.PriceQuote) {
		for _, m := range s.mirrors {
			m.writer.Submit(q)
		}
	}
}

func (s *stores) startMirrors(ctx context.Context) error {
	for _, m := range s.mirrors {
		if err := m.writer.Start(ctx); err != nil {
			return fmt.Errorf("start %s: %w", m.name, err)
		}
	}
	return nil
}

func (s *stores) stopMirrors(ctx context.Context) {
	for _, m := range s.mirrors {
		if err := m.writer.Stop(ctx); err != nil {
			s.logger.Warn("stop mirror", "mirror", m.name, "error", err)
		}
	}
}

// statsOptions exposes mirror metrics on /stats.
func (s *stores) statsOptions() []status.Option {
	var opts []status.Option
	for _, m := range s.mirrors {
		w := m.writer
		opts = append(opts, status.WithStats(m.name, func() any { return w.Stats() }))
	}
	return opts
}

func (s *stores) close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("close redis", "error", err)
		}
	}
}
