package config

import (
	"errors"
	"fmt"
	"regexp"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.API.WSURL == "" {
		return errors.New("api.ws_url is required")
	}

	if c.Connection.ReconnectMinDelay <= 0 {
		return errors.New("connection.reconnect_min_delay must be > 0")
	}
	if c.Connection.ReconnectMaxDelay < c.Connection.ReconnectMinDelay {
		return fmt.Errorf("connection.reconnect_max_delay (%s) cannot be less than reconnect_min_delay (%s)",
			c.Connection.ReconnectMaxDelay, c.Connection.ReconnectMinDelay)
	}
	if c.Connection.MaxAttempts < 1 {
		return errors.New("connection.max_attempts must be >= 1")
	}
	if c.Connection.BufferSize < 1 {
		return errors.New("connection.buffer_size must be >= 1")
	}

	if c.Batcher.Window <= 0 {
		return errors.New("batcher.window must be > 0")
	}

	for _, src := range c.Seed.Sources {
		switch src {
		case "rest", "redis":
		case "postgres":
			if err := c.Database.validate("database"); err != nil {
				return err
			}
		default:
			return fmt.Errorf("seed.sources: unknown source %q", src)
		}
	}

	if c.Database.Record && !c.Seed.HasSource("postgres") {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	}
	if c.Writer.BatchSize < 1 {
		return errors.New("writer.batch_size must be >= 1")
	}
	if c.Writer.FlushInterval <= 0 {
		return errors.New("writer.flush_interval must be > 0")
	}

	if c.Portfolio.Poll && c.API.Token == "" && c.API.TokenFile == "" {
		return errors.New("portfolio.poll requires api.token or api.token_file")
	}

	if c.Status.Port < 1 || c.Status.Port > 65535 {
		return fmt.Errorf("status.port must be between 1 and 65535, got %d", c.Status.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	if !tableNameRe.MatchString(db.Table) {
		return fmt.Errorf("%s.table %q is not a valid identifier", prefix, db.Table)
	}
	return nil
}
