// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package kvstore

import "zombiezen.com/go/sqlite"

// ReadTx is a handle to an open read transaction. It is only valid
// inside the [Store.Read] callback that produced it. A [*WriteTx] also
// satisfies ReadTx, so functions that only read should accept ReadTx
// and work in either context.
//
// The interface has no exported methods: transactions are created by
// the Store and consumed by [Collection] accessors, nothing else.
type ReadTx interface {
	connection() *sqlite.Conn
}

type readTx struct {
	conn *sqlite.Conn
}

func (tx *readTx) connection() *sqlite.Conn { return tx.conn }

// WriteTx is a handle to an open write transaction, valid only inside
// the [Store.Write] callback that produced it.
type WriteTx struct {
	readTx
	completions []func()
}

// OnCommit queues fn to run after the transaction commits. Completions
// run in queue order, in a single goroutine detached from the writer,
// and only if the commit succeeds: a rollback discards them. Batches
// from distinct transactions run in the order the transactions
// committed. fn must not touch the transaction, which is already
// closed when it runs.
func (tx *WriteTx) OnCommit(fn func()) {
	tx.completions = append(tx.completions, fn)
}
