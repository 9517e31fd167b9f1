// Package database reads and records price quotes in Postgres.
//
// QuoteStore serves two roles:
//   - a seed source: Snapshot returns the latest row per symbol
//   - a history sink: Write appends flushed quotes with COPY
//
// Table names come from configuration and are always quoted with
// pgx.Identifier, so "market.quotes" addresses a schema-qualified table.
package database
