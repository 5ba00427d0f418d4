// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package account

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/meridian-im/meridian/lib/clock"
	"github.com/meridian-im/meridian/lib/kvstore"
	"github.com/meridian-im/meridian/lib/testutil"
)

// newLegacyManager builds a Manager without collaborators over its own
// store, for tests that fabricate pre-ACI rows directly in storage.
func newLegacyManager(t *testing.T) (*Manager, *kvstore.Store, *Bus) {
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
	bus := NewBus(nil)
	t.Cleanup(bus.Close)

	manager, err := NewManager(Config{
		Store:  store,
		Bus:    bus,
		Clock:  clock.Fake(time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return manager, store, bus
}

func TestRecordLegacyACIBackfills(t *testing.T) {
	manager, store, bus := newLegacyManager(t)
	ctx := context.Background()
	number := MustParseE164("+14155550100")

	// A row written before ACIs existed: a confirmed number, nothing
	// else. Until the backfill the derivation cannot call it
	// registered.
	setKey(t, store, keyRegisteredNumber, number.String())
	state, err := manager.CurrentState(ctx)
	if err != nil {
		t.Fatalf("CurrentState: %v", err)
	}
	if state.IsRegistered() {
		t.Fatal("legacy row without an ACI reports registered")
	}

	events, cancel := bus.Subscribe()
	defer cancel()

	aci := NewACI()
	if err := manager.RecordLegacyACI(ctx, aci); err != nil {
		t.Fatalf("RecordLegacyACI: %v", err)
	}

	state, err = manager.CurrentState(ctx)
	if err != nil {
		t.Fatalf("CurrentState: %v", err)
	}
	if !state.IsRegisteredAndReady() {
		t.Errorf("RegistrationState: got %v, want %v", state.RegistrationState(), Registered)
	}
	if got := state.StoredACI(); got != aci {
		t.Errorf("StoredACI: got %v, want %v", got, aci)
	}
	if got := state.StoredNumber(); got != number {
		t.Errorf("StoredNumber: got %v, want %v", got, number)
	}

	event := testutil.RequireReceive(t, events, 5*time.Second, "registration state event")
	changed, ok := event.(RegistrationStateChanged)
	if !ok {
		t.Fatalf("first event: got %T, want RegistrationStateChanged", event)
	}
	if changed.State != Registered {
		t.Errorf("event state: got %v, want %v", changed.State, Registered)
	}
	event = testutil.RequireReceive(t, events, 5*time.Second, "identifier event")
	identifiers, ok := event.(LocalIdentifiersMayHaveChanged)
	if !ok {
		t.Fatalf("second event: got %T, want LocalIdentifiersMayHaveChanged", event)
	}
	if identifiers.Number != number || identifiers.ACI != aci {
		t.Errorf("identifier event: got (%v, %v), want (%v, %v)",
			identifiers.Number, identifiers.ACI, number, aci)
	}
}

func TestRecordLegacyACIRequiresNumber(t *testing.T) {
	manager, _, _ := newLegacyManager(t)

	err := manager.RecordLegacyACI(context.Background(), NewACI())
	if !errors.Is(err, ErrNotRegistered) {
		t.Errorf("RecordLegacyACI on an empty store: got %v, want ErrNotRegistered", err)
	}
}

func TestRecordLegacyACIRejectsZero(t *testing.T) {
	manager, _, _ := newLegacyManager(t)

	if err := manager.RecordLegacyACI(context.Background(), ACI{}); err == nil {
		t.Error("RecordLegacyACI accepted a zero ACI")
	}
}

func TestRecordLegacyACIAgainstStoredIdentity(t *testing.T) {
	manager, store, _ := newLegacyManager(t)
	ctx := context.Background()
	number := MustParseE164("+14155550100")
	aci := NewACI()

	setKey(t, store, keyRegisteredNumber, number.String())
	setKey(t, store, keyRegisteredACI, aci.String())
	manager.Cache().Invalidate()

	// The same ACI is a harmless repeat; a different one means the
	// caller is trying to graft a foreign identity onto this account.
	if err := manager.RecordLegacyACI(ctx, aci); err != nil {
		t.Errorf("RecordLegacyACI with the stored ACI: %v", err)
	}
	if err := manager.RecordLegacyACI(ctx, NewACI()); err == nil {
		t.Error("RecordLegacyACI accepted a conflicting ACI")
	}

	state, err := manager.CurrentState(ctx)
	if err != nil {
		t.Fatalf("CurrentState: %v", err)
	}
	if got := state.StoredACI(); got != aci {
		t.Errorf("StoredACI: got %v, want %v", got, aci)
	}
}
