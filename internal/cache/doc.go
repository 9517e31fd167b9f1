// Package cache reads and writes quotes in a shared Redis keyspace.
//
// Each symbol is stored as JSON under "<prefix><SYMBOL>" (default prefix
// "stock:") and every write is also published on "prices.<SYMBOL>". The
// layout matches the feed processors that already populate Redis, so a
// fresh process can seed its table from whatever they last wrote.
package cache
