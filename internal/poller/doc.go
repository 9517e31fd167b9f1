// Package poller keeps an authenticated user's portfolio valued at live prices.
//
// The Portfolio Poller:
//   - Fetches the portfolio over REST on a fixed interval
//   - Revalues holdings against the shared live price table
//   - Hands each valuation to a Handler and keeps the latest for readers
package poller
