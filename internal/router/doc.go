// Package router decodes inbound streaming frames and hands quotes to a sink.
//
// Frames are queued in arrival order in a growable FIFO and routed by a single
// goroutine, so updates for a symbol reach the sink in the order the transport
// delivered them. Drain routes everything queued synchronously, which lets a
// caller observe every frame received so far before a final flush.
//
// Malformed payloads are counted and dropped one at a time; they never stop
// the routing loop or the connection.
package router
