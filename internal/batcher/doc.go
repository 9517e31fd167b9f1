// Package batcher coalesces streamed quotes into periodic table snapshots.
//
// Quotes accumulate in a pending buffer keyed by symbol, so the last write for
// a symbol wins and memory is bounded by the number of distinct symbols. The
// first quote after a flush schedules the next flush one window later. Each
// flush merges pending into a fresh copy of the table and hands it to the
// flush callback; a published table is never modified afterwards.
package batcher
