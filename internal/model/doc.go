// Package model defines shared data types used across the live price core.
//
// Conventions:
//   - Symbols: upper-case tickers (e.g., "AAPL"), see NormalizeSymbol
//   - Prices: float64 in quote currency; Change is a percent
//   - Timestamps: time.Time in UTC
//   - IDs: uuid.UUID for consumer handles and client order IDs; server IDs are opaque strings
package model
