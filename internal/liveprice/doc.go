// Package liveprice multiplexes one shared price stream to many consumers.
//
// A Hub owns the connection manager, the inbound router, the subscription
// tracker and the update batcher. Consumers attach with a set of symbols and
// an observer; every batcher flush and every connectivity change delivers a
// View to each attached consumer. All consumers read from the same table, so
// two consumers watching the same symbol always agree on its value.
//
// Observers run sequentially on the flush or connection goroutine. They must
// return promptly and must not call Detach, Disconnect or Close themselves.
package liveprice
