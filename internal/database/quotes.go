package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/liveprice/internal/model"
)

// ErrEmptyTable is returned when a store is built without a table name.
var ErrEmptyTable = errors.New("database: empty table name")

// DB is the subset of *pgxpool.Pool used by QuoteStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

var quoteColumns = []string{"symbol", "price", "change", "high", "low", "observed_at"}

// QuoteStore reads and appends rows of a quotes table.
type QuoteStore struct {
	db     DB
	table  pgx.Identifier
	logger *slog.Logger
}

// NewQuoteStore creates a store over table, which may be schema-qualified.
func NewQuoteStore(db DB, table string, logger *slog.Logger) (*QuoteStore, error) {
	ident, err := parseIdentifier(table)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QuoteStore{
		db:     db,
		table:  ident,
		logger: logger.With("component", "quote_store", "table", ident.Sanitize()),
	}, nil
}

func parseIdentifier(table string) (pgx.Identifier, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, ErrEmptyTable
	}
	return pgx.Identifier(strings.Split(table, ".")), nil
}

// EnsureSchema creates the table and its lookup index if missing.
func (s *QuoteStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, s.createTableSQL()); err != nil {
		return fmt.Errorf("create quotes table: %w", err)
	}
	if _, err := s.db.Exec(ctx, s.createIndexSQL()); err != nil {
		return fmt.Errorf("create quotes index: %w", err)
	}
	return nil
}

func (s *QuoteStore) createTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS ` + s.table.Sanitize() + ` (
		symbol      TEXT             NOT NULL,
		price       DOUBLE PRECISION NOT NULL,
		change      DOUBLE PRECISION NOT NULL DEFAULT 0,
		high        DOUBLE PRECISION NOT NULL DEFAULT 0,
		low         DOUBLE PRECISION NOT NULL DEFAULT 0,
		observed_at TIMESTAMPTZ      NOT NULL
	)`
}

func (s *QuoteStore) createIndexSQL() string {
	name := pgx.Identifier{s.table[len(s.table)-1] + "_symbol_observed_idx"}
	return `CREATE INDEX IF NOT EXISTS ` + name.Sanitize() +
		` ON ` + s.table.Sanitize() + ` (symbol, observed_at DESC)`
}

func (s *QuoteStore) latestSQL() string {
	return `SELECT DISTINCT ON (symbol) symbol, price, change, high, low, observed_at
		FROM ` + s.table.Sanitize() + `
		ORDER BY symbol, observed_at DESC`
}

// Snapshot returns the most recent quote for every symbol in the table.
func (s *QuoteStore) Snapshot(ctx context.Context) ([]model.PriceQuote, error) {
	rows, err := s.db.Query(ctx, s.latestSQL())
	if err != nil {
		return nil, fmt.Errorf("query latest quotes: %w", err)
	}
	defer rows.Close()

	var out []model.PriceQuote
	for rows.Next() {
		var (
			q  model.PriceQuote
			at time.Time
		)
		if err := rows.Scan(&q.Symbol, &q.Price, &q.Change, &q.High, &q.Low, &at); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		q.Symbol = model.NormalizeSymbol(q.Symbol)
		if q.Symbol == "" {
			continue
		}
		q.ObservedAt = at.UTC()
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read quotes: %w", err)
	}

	s.logger.Debug("loaded latest quotes", "count", len(out))
	return out, nil
}

// Write appends quotes with COPY. Quotes without a timestamp are
// stamped with the current time.
func (s *QuoteStore) Write(ctx context.Context, quotes []model.PriceQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(quotes))
	for _, q := range quotes {
		at := q.ObservedAt
		if at.IsZero() {
			at = now
		}
		rows = append(rows, []any{q.Symbol, q.Price, q.Change, q.High, q.Low, at})
	}

	n, err := s.db.CopyFrom(ctx, s.table, quoteColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy quotes: %w", err)
	}
	if int(n) != len(rows) {
		s.logger.Warn("partial quote copy", "sent", len(rows), "copied", n)
	}
	return nil
}
