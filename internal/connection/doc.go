// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Maintains exactly one WebSocket connection to the price server per process
//   - Starts lazily on first Ensure and tears down only on explicit Disconnect
//   - Reconnects with bounded exponential backoff and enters Failed after MaxAttempts
//   - Reports every state transition and inbound frame to a Handler
//
// Frames are JSON envelopes: {"event": "<name>", "data": <payload>}.
package connection
