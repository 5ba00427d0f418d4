// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

// Package kvstore provides a namespaced, transactional key-value store
// over a SQLite database file.
//
// Values live in a single keyvalue table keyed by (collection, key).
// A [Collection] groups the keys of one subsystem; renaming a
// collection or a key is a breaking change to the persisted format.
// Values are encoded as deterministic CBOR, so the same logical value
// always produces identical bytes, and typed accessors (string, bool,
// date, uint32, arbitrary object) fail loudly when the stored encoding
// does not match the requested type. An absent key is never an error:
// getters report absence or return the caller's default.
//
// All access happens inside an explicit transaction. [Store.Read] runs
// a callback with a deferred read transaction, giving a consistent
// snapshot across multiple gets. [Store.Write] runs a callback with an
// IMMEDIATE write transaction: either every mutation in the callback
// commits, or the callback's error rolls all of them back. A [*WriteTx]
// satisfies [ReadTx], so read helpers work inside write transactions.
//
// [WriteTx.OnCommit] queues a completion that runs only after the
// transaction commits, asynchronously in a separate goroutine and in
// queue order. Completions never run on rollback. This is the
// mechanism for deferring change notifications out of the write path.
//
// The database is opened in WAL mode, which permits a second process
// to share the same file (one writer at a time, readers unblocked).
// [Store.DataVersion] exposes SQLite's data_version counter on a
// dedicated connection: the value changes exactly when a different
// connection — including one in another process — commits a write.
// Pollers use it to detect external changes without reading any rows.
//
// The store is safe for concurrent use. Path ":memory:" works only
// with PoolSize 1 (each in-memory connection is an independent
// database) and does not support DataVersion; tests should prefer a
// file in t.TempDir().
package kvstore
