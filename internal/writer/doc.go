// Package writer batches streamed quotes into external sinks.
//
// A QuoteWriter accepts quotes without blocking, accumulates them and
// flushes when the batch fills or the flush interval elapses. Sinks in use:
//   - Redis mirror (cache.RedisSource.Publish)
//   - Postgres history (database.QuoteStore.Write)
//
// Flushes are serialized so a sink sees batches in submission order.
package writer
