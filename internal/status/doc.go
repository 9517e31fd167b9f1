// Package status serves a read-only HTTP view of a running price hub.
//
// Routes:
//
//	GET /health           connection state, 503 once the connection has failed
//	GET /prices           current table, optionally ?symbols=AAPL,MSFT
//	GET /prices/:symbol   one quote, 404 if unknown
//	GET /stats            hub statistics plus registered extras
//	GET /version          build information
package status
