package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-watch
api:
  rest_url: http://prices.internal:5000
  ws_url: ws://prices.internal:5000/ws
watch:
  symbols: [AAPL, msft]
`
	path := writeTempFile(t, "config.yaml", yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-watch" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-watch")
	}
	if cfg.API.RestURL != "http://prices.internal:5000" {
		t.Errorf("API.RestURL = %q, want %q", cfg.API.RestURL, "http://prices.internal:5000")
	}
	if len(cfg.Watch.Symbols) != 2 {
		t.Errorf("len(Watch.Symbols) = %d, want 2", len(cfg.Watch.Symbols))
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_PRICE_TOKEN", "secret123")

	yaml := `
instance:
  id: test-watch
api:
  token: ${TEST_PRICE_TOKEN}
`
	path := writeTempFile(t, "config.yaml", yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.Token != "secret123" {
		t.Errorf("API.Token = %q, want %q", cfg.API.Token, "secret123")
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := writeTempFile(t, ".env", "TEST_DOTENV_VALUE=from-file\n")
	t.Setenv("TEST_DOTENV_VALUE", "")
	os.Unsetenv("TEST_DOTENV_VALUE")

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}

	if got := os.Getenv("TEST_DOTENV_VALUE"); got != "from-file" {
		t.Errorf("TEST_DOTENV_VALUE = %q, want %q", got, "from-file")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-watch
`
	path := writeTempFile(t, "config.yaml", yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.API.RestURL != DefaultRestURL {
		t.Errorf("API.RestURL = %q, want default %q", cfg.API.RestURL, DefaultRestURL)
	}
	if cfg.Connection.ReconnectMinDelay != DefaultReconnectMinDelay {
		t.Errorf("ReconnectMinDelay = %v, want default %v", cfg.Connection.ReconnectMinDelay, DefaultReconnectMinDelay)
	}
	if cfg.Connection.ReconnectMaxDelay != DefaultReconnectMaxDelay {
		t.Errorf("ReconnectMaxDelay = %v, want default %v", cfg.Connection.ReconnectMaxDelay, DefaultReconnectMaxDelay)
	}
	if cfg.Connection.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want default %d", cfg.Connection.MaxAttempts, DefaultMaxAttempts)
	}
	if cfg.Batcher.Window != 200*time.Millisecond {
		t.Errorf("Batcher.Window = %v, want 200ms", cfg.Batcher.Window)
	}
	if !cfg.Subscriptions.UnsubscribeOnIdleEnabled() {
		t.Error("UnsubscribeOnIdleEnabled() = false, want true by default")
	}
	if !cfg.Seed.HasSource("rest") {
		t.Errorf("Seed.Sources = %v, want default rest", cfg.Seed.Sources)
	}
	if cfg.Database.Table != DefaultQuoteTable {
		t.Errorf("Database.Table = %q, want default %q", cfg.Database.Table, DefaultQuoteTable)
	}
	if cfg.Status.Port != DefaultStatusPort {
		t.Errorf("Status.Port = %d, want default %d", cfg.Status.Port, DefaultStatusPort)
	}
	if cfg.Redis.TTL != time.Hour || cfg.Redis.Mirror {
		t.Errorf("Redis TTL/Mirror = %v/%v, want 1h/false", cfg.Redis.TTL, cfg.Redis.Mirror)
	}
	if cfg.Writer.BatchSize != DefaultWriterBatchSize || cfg.Writer.FlushInterval != time.Second {
		t.Errorf("Writer = %+v, want %d/1s", cfg.Writer, DefaultWriterBatchSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestUnsubscribeOnIdleExplicitFalse(t *testing.T) {
	yaml := `
instance:
  id: test-watch
subscriptions:
  unsubscribe_on_idle: false
`
	path := writeTempFile(t, "config.yaml", yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	if cfg.Subscriptions.UnsubscribeOnIdleEnabled() {
		t.Error("UnsubscribeOnIdleEnabled() = true, want false")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Config{Instance: InstanceConfig{ID: "test"}}
		c.ApplyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name: "max delay below min delay",
			mutate: func(c *Config) {
				c.Connection.ReconnectMinDelay = 5 * time.Second
				c.Connection.ReconnectMaxDelay = time.Second
			},
			wantErr: "connection.reconnect_max_delay (1s) cannot be less than reconnect_min_delay (5s)",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Connection.MaxAttempts = 0 },
			wantErr: "connection.max_attempts must be >= 1",
		},
		{
			name:    "unknown seed source",
			mutate:  func(c *Config) { c.Seed.Sources = []string{"rest", "kafka"} },
			wantErr: `seed.sources: unknown source "kafka"`,
		},
		{
			name:    "postgres source without host",
			mutate:  func(c *Config) { c.Seed.Sources = []string{"postgres"} },
			wantErr: "database.host is required",
		},
		{
			name: "postgres min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Seed.Sources = []string{"postgres"}
				c.Database = DBConfig{Host: "localhost", Name: "db", User: "user", MaxConns: 2, MinConns: 5, Table: "quotes"}
			},
			wantErr: "database.min_conns (5) cannot exceed max_conns (2)",
		},
		{
			name: "postgres bad table name",
			mutate: func(c *Config) {
				c.Seed.Sources = []string{"postgres"}
				c.Database = DBConfig{Host: "localhost", Name: "db", User: "user", MaxConns: 2, Table: "quotes; drop"}
			},
			wantErr: `database.table "quotes; drop" is not a valid identifier`,
		},
		{
			name:    "record without database",
			mutate:  func(c *Config) { c.Database.Record = true },
			wantErr: "database.host is required",
		},
		{
			name:    "zero writer batch size",
			mutate:  func(c *Config) { c.Writer.BatchSize = 0 },
			wantErr: "writer.batch_size must be >= 1",
		},
		{
			name:    "portfolio poll without token",
			mutate:  func(c *Config) { c.Portfolio.Poll = true },
			wantErr: "portfolio.poll requires api.token or api.token_file",
		},
		{
			name:    "status port out of range",
			mutate:  func(c *Config) { c.Status.Port = 70000 },
			wantErr: "status.port must be between 1 and 65535, got 70000",
		},
		{
			name: "valid postgres config",
			mutate: func(c *Config) {
				c.Seed.Sources = []string{"rest", "postgres"}
				c.Database = DBConfig{Host: "localhost", Name: "db", User: "user", MaxConns: 4, MinConns: 1, Table: "market.quotes"}
			},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
