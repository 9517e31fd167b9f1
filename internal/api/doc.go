// Package api is the REST client for the price server.
//
// Endpoints:
//   - GET    /api/stocks/prices            bulk snapshot used to seed the table
//   - GET    /api/stocks/{symbol}/history  historical series
//   - POST   /api/auth/login, /api/auth/register
//   - GET    /api/portfolio, /api/portfolio/trades
//   - POST   /api/portfolio/trade
//   - GET    /api/watchlist, POST /api/watchlist, DELETE /api/watchlist/{id}
//
// Portfolio, trade and watchlist calls need a bearer token. Streaming prices
// are handled by the connection package.
package api
