// Package store is the SQLite invocation journal.
//
// Every engine call can be recorded as one row: the method name, the
// resolved signature, the canonical JSON of its arguments, env and result,
// and the error code when it failed. Rows are append-only and written after
// evaluation, so journaling never changes a result.
//
// # Ordering
//
// All ordering uses the engine's logical seq, never timestamps. Queries
// order by seq ASC, id ASC COLLATE BINARY so that reads are identical
// across replays.
//
// # Database Configuration
//
// File journals use WAL with synchronous=NORMAL so `tablets journal` can
// read while calls are written. Writers wait up to five seconds for a lock
// (WithBusyTimeout). The schema version lives in user_version and Open
// applies any newer migrations.
//
// Digests come from internal/ir/hash.go (canonical JSON, SHA-256 with
// domain separation).
package store
