// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package account

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/meridian-im/meridian/lib/kvstore"
)

func openTestCache(t *testing.T) (*StateCache, *kvstore.Store) {
	t.Helper()
	store, err := kvstore.Open(kvstore.Config{
		Path: filepath.Join(t.TempDir(), "account.db"),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return NewStateCache(store), store
}

// setKey writes one account field directly, bypassing the Manager.
func setKey(t *testing.T, store *kvstore.Store, key, value string) {
	t.Helper()
	err := store.Write(context.Background(), func(tx *kvstore.WriteTx) error {
		return kvstore.NewCollection(collectionName).SetString(tx, key, value)
	})
	if err != nil {
		t.Fatalf("writing %s: %v", key, err)
	}
}

func TestCacheHitReturnsSameSnapshot(t *testing.T) {
	cache, _ := openTestCache(t)
	ctx := context.Background()

	first, err := cache.GetOrLoad(ctx)
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	second, err := cache.GetOrLoad(ctx)
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if first != second {
		t.Error("second read missed the cache")
	}
}

func TestCacheServesStaleUntilInvalidated(t *testing.T) {
	cache, store := openTestCache(t)
	ctx := context.Background()
	number := MustParseE164("+14155550100")

	before, err := cache.GetOrLoad(ctx)
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	setKey(t, store, keyRegisteredNumber, number.String())

	// The cache does not watch the store: a foreign write leaves the
	// installed snapshot in place until someone invalidates.
	stale, err := cache.GetOrLoad(ctx)
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if stale != before {
		t.Fatal("snapshot replaced without an invalidation")
	}

	cache.Invalidate()
	fresh, err := cache.GetOrLoad(ctx)
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if got := fresh.StoredNumber(); got != number {
		t.Errorf("StoredNumber after Invalidate: got %v, want %v", got, number)
	}
}

func TestReloadTxSeesUncommittedWrites(t *testing.T) {
	cache, store := openTestCache(t)
	ctx := context.Background()
	number := MustParseE164("+14155550100")

	if _, err := cache.GetOrLoad(ctx); err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}

	// The reload runs inside the writing transaction, so the snapshot
	// reflects the write before it commits. By commit time every
	// reader already sees the new state.
	var inside *AccountState
	err := store.Write(ctx, func(tx *kvstore.WriteTx) error {
		c := kvstore.NewCollection(collectionName)
		if err := c.SetString(tx, keyRegisteredNumber, number.String()); err != nil {
			return err
		}
		state, err := cache.ReloadTx(tx)
		if err != nil {
			return err
		}
		inside = state
		return nil
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := inside.StoredNumber(); got != number {
		t.Errorf("snapshot inside the transaction: got %v, want %v", got, number)
	}

	after, err := cache.GetOrLoad(ctx)
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if after != inside {
		t.Error("post-commit read did not serve the snapshot installed in the transaction")
	}
}

func TestSetPendingRebuildsInstalledSnapshot(t *testing.T) {
	cache, _ := openTestCache(t)
	ctx := context.Background()
	claim := pendingVerification{number: MustParseE164("+14155550199")}

	primed, err := cache.GetOrLoad(ctx)
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}

	rebuilt := cache.setPending(claim)
	if rebuilt == nil {
		t.Fatal("setPending returned nil with a snapshot installed")
	}
	if rebuilt == primed {
		t.Error("setPending mutated the installed snapshot instead of copying")
	}
	if got := rebuilt.LocalNumber(); got != claim.number {
		t.Errorf("LocalNumber: got %v, want %v", got, claim.number)
	}

	current, err := cache.GetOrLoad(ctx)
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if current != rebuilt {
		t.Error("rebuilt snapshot not installed")
	}
}

func TestSetPendingWithoutSnapshot(t *testing.T) {
	cache, _ := openTestCache(t)
	claim := pendingVerification{number: MustParseE164("+14155550199")}

	if got := cache.setPending(claim); got != nil {
		t.Errorf("setPending on an empty cache: got %v, want nil", got)
	}

	// The claim still applies to the load that fills the cache.
	state, err := cache.GetOrLoad(context.Background())
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if got := state.LocalNumber(); got != claim.number {
		t.Errorf("LocalNumber: got %v, want %v", got, claim.number)
	}
}

func TestConfirmTxClearsPending(t *testing.T) {
	cache, store := openTestCache(t)
	number := MustParseE164("+14155550100")
	cache.setPending(pendingVerification{number: number})

	err := store.Write(context.Background(), func(tx *kvstore.WriteTx) error {
		c := kvstore.NewCollection(collectionName)
		if err := c.SetString(tx, keyRegisteredNumber, number.String()); err != nil {
			return err
		}
		state, hadPending, err := cache.confirmTx(tx)
		if err != nil {
			return err
		}
		if !hadPending {
			t.Error("confirmTx did not report the pending claim")
		}
		if state.HasPendingVerification() {
			t.Error("confirmed snapshot still carries the claim")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if cache.pendingSnapshot().isSet() {
		t.Error("pending claim survived confirmTx")
	}
}

func TestInvalidateKeepsPending(t *testing.T) {
	cache, _ := openTestCache(t)
	ctx := context.Background()
	claim := pendingVerification{number: MustParseE164("+14155550199")}

	if _, err := cache.GetOrLoad(ctx); err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	cache.setPending(claim)
	cache.Invalidate()

	state, err := cache.GetOrLoad(ctx)
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if got := state.LocalNumber(); got != claim.number {
		t.Errorf("claim lost across Invalidate: LocalNumber got %v, want %v", got, claim.number)
	}
}

func TestReloadKeepsPending(t *testing.T) {
	cache, store := openTestCache(t)
	ctx := context.Background()
	stored := MustParseE164("+14155550100")
	claim := pendingVerification{number: MustParseE164("+14155550199")}

	if _, err := cache.GetOrLoad(ctx); err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	cache.setPending(claim)
	setKey(t, store, keyRegisteredNumber, stored.String())

	if err := cache.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	state, err := cache.GetOrLoad(ctx)
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if got := state.StoredNumber(); got != stored {
		t.Errorf("StoredNumber: got %v, want %v", got, stored)
	}
	if got := state.LocalNumber(); got != claim.number {
		t.Errorf("LocalNumber must keep preferring the claim: got %v, want %v", got, claim.number)
	}
}

func TestCorruptStoredNumberFailsLoudly(t *testing.T) {
	cache, store := openTestCache(t)
	setKey(t, store, keyRegisteredNumber, "not a number")

	if _, err := cache.GetOrLoad(context.Background()); err == nil {
		t.Fatal("GetOrLoad succeeded on a corrupt stored number")
	}
}
