// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

// Package account tracks the local device's registration identity: the
// phone number and service identifiers the server knows this install
// by, the registration lifecycle (unregistered, registered, deregistered,
// reregistering), and the device-scoped account flags that ride along
// with them (onboarding, transfer, message fetch mode, discoverability).
//
// # State model
//
// All persistent account state lives in one [kvstore.Collection] and is
// read through [AccountState], an immutable snapshot. A snapshot never
// mutates after construction: readers can hold one across an await
// point and see frozen, mutually consistent values. Fresh state means
// fresh snapshot.
//
// [StateCache] holds the current snapshot plus the identifiers a
// verification attempt has claimed but not yet confirmed. Pending
// identifiers override their stored counterparts in every snapshot the
// cache hands out, so the client can act as the claimed identity while
// the server-side verification is still in flight; the stored values
// remain untouched until confirmation commits.
//
// [Manager] owns all writes. Every mutating operation runs inside a
// single write transaction — partial registration states are never
// visible, even across processes sharing the database file. Change
// notifications are queued with [kvstore.WriteTx.OnCommit] and so fire
// only after the transaction is durable.
//
// # Concurrency
//
// The cache's mutex is subordinate to storage transactions: code paths
// never begin a transaction while holding the cache lock. Methods that
// need both acquire the transaction first and pass it in. This is the
// rule that makes GetOrLoad safe to call from inside other components'
// transactions.
//
// # Multiple processes
//
// A second process (a notification extension, an inspection tool) may
// open the same database. Writers exclude each other through SQLite;
// readers see committed snapshots. [ChangeObserver] polls the store's
// data version and reloads the local cache when some other connection
// commits, so a secondary process converges on the primary's writes
// without any channel between them.
package account
