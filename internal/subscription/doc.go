// Package subscription tracks which symbols each consumer wants and keeps the
// server's subscription set equal to their union.
//
// Every consumer declares a set of symbols. The tracker reference-counts each
// symbol across consumers and sends subscribe only when a symbol first enters
// the union, so re-declaring the same set is free. When a symbol's count drops
// to zero the tracker sends unsubscribe, unless UnsubscribeOnIdle is off.
//
// Sends only happen while the session is live. Resume marks the session live
// and re-subscribes the whole union once; Suspend marks it not live after a
// drop. Both run under the same lock as Declare, so each symbol is sent
// exactly once per session.
package subscription
