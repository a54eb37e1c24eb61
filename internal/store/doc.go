// Package store persists the tool-call ledger using SQLite.
//
// The ledger records one row per dispatched tool call (tool name, duration,
// error flag) and serves the recent-calls and usage-stats admin endpoints.
// SQLite runs in WAL mode for concurrent reads; the schema is created
// automatically on Open. Use ":memory:" for tests.
package store
