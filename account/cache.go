// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package account

import (
	"context"
	"sync"

	"github.com/meridian-im/meridian/lib/kvstore"
)

// StateCache holds the current [AccountState] snapshot together with
// the pending verification overrides, under a single mutex so the two
// can never be observed out of step. Readers get whatever snapshot is
// installed; a nil snapshot means the next reader loads one.
//
// Lock order: the mutex is subordinate to storage transactions. No
// method begins a transaction while holding the mutex — methods that
// need both either take an already-open transaction as a parameter or
// finish their storage work before locking. Violating this inverts the
// order against writers blocked on the SQLite write lock and
// deadlocks.
type StateCache struct {
	store *kvstore.Store

	mu      sync.Mutex
	current *AccountState
	pending pendingVerification
}

// NewStateCache returns an empty cache over store. The first read
// loads from storage.
func NewStateCache(store *kvstore.Store) *StateCache {
	return &StateCache{store: store}
}

// GetOrLoad returns the cached snapshot, loading one inside a fresh
// read transaction on a miss. Concurrent callers during a miss may
// each load; the first to finish installs, the rest adopt it.
func (c *StateCache) GetOrLoad(ctx context.Context) (*AccountState, error) {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()
	if current != nil {
		return current, nil
	}

	var state *AccountState
	err := c.store.Read(ctx, func(tx kvstore.ReadTx) error {
		var err error
		state, err = c.GetOrLoadTx(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// GetOrLoadTx is GetOrLoad for callers that already hold an open
// transaction. The transaction is only consulted on a cache miss, so
// a hit may return state newer than tx's snapshot.
func (c *StateCache) GetOrLoadTx(tx kvstore.ReadTx) (*AccountState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return c.current, nil
	}
	state, err := loadState(tx, c.pending)
	if err != nil {
		return nil, err
	}
	c.current = state
	return state, nil
}

// Invalidate discards the cached snapshot. Pending verification
// overrides survive — they are claims about the future, not reflections
// of storage.
func (c *StateCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
}

// Reload replaces the cached snapshot with a fresh load, keeping the
// pending overrides as they stand at install time. This is the
// external-change path: when another process commits, Reload converges
// this cache on the new contents.
func (c *StateCache) Reload(ctx context.Context) error {
	var loaded *AccountState
	err := c.store.Read(ctx, func(tx kvstore.ReadTx) error {
		var err error
		loaded, err = loadState(tx, pendingVerification{})
		return err
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = loaded.withPending(c.pending)
	return nil
}

// ReloadTx reloads the snapshot within an already-open transaction,
// keeping the pending overrides, and returns the new snapshot. Write
// operations call this as their final in-transaction step: the
// transaction's own uncommitted writes are visible to it, so by the
// time the transaction commits, readers already see the new state.
//
// If the enclosing transaction rolls back after ReloadTx, the cache
// holds state that never committed; the code owning the transaction
// must call Invalidate on failure.
func (c *StateCache) ReloadTx(tx kvstore.ReadTx) (*AccountState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, err := loadState(tx, c.pending)
	if err != nil {
		return nil, err
	}
	c.current = state
	return state, nil
}

// confirmTx is ReloadTx for the confirmation and reset paths: it
// discards the pending overrides in the same locked step that installs
// the new snapshot, so no reader ever sees the claim and the stored
// truth disagree. Reports whether a claim was pending.
func (c *StateCache) confirmTx(tx kvstore.ReadTx) (*AccountState, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hadPending := c.pending.isSet()
	state, err := loadState(tx, pendingVerification{})
	if err != nil {
		return nil, false, err
	}
	c.pending = pendingVerification{}
	c.current = state
	return state, hadPending, nil
}

// setPending replaces the pending verification overrides and rebuilds
// the installed snapshot around them, all in memory. Storage is never
// touched: nothing about a claim is durable. Returns the rebuilt
// snapshot, or nil when none is installed.
func (c *StateCache) setPending(pending pendingVerification) *AccountState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = pending
	if c.current != nil {
		c.current = c.current.withPending(pending)
	}
	return c.current
}

// pendingSnapshot returns a copy of the pending overrides as they
// stand right now.
func (c *StateCache) pendingSnapshot() pendingVerification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}
