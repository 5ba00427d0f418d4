// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/meridian-im/meridian/lib/clock"
	"github.com/meridian-im/meridian/lib/kvstore"
)

// ErrNotRegistered is returned by operations that require a confirmed
// identity when none exists. It marks a recoverable condition, not a
// programmer error: storage can legitimately be wiped between the
// caller's check and the operation's own.
var ErrNotRegistered = errors.New("account: no confirmed identity")

// ErrNoPendingVerification is returned by MarkRegistered when no
// verification attempt has claimed identifiers to confirm.
var ErrNoPendingVerification = errors.New("account: no pending verification")

// Config carries the dependencies for constructing a Manager. Store,
// Bus, Clock, and Logger are required; everything else is optional.
type Config struct {
	// Store is the key-value database holding account state.
	Store *kvstore.Store

	// Bus receives change events after writes commit. The Manager
	// publishes to it but does not own it: the caller closes it.
	Bus *Bus

	// Clock provides the current time for the registration date and
	// the discoverability timestamp.
	Clock clock.Clock

	// Logger receives operational messages (ignored transitions,
	// startup state).
	Logger *slog.Logger

	// Cache is the snapshot cache to operate. Defaults to a fresh
	// cache over Store. Pass one explicitly when a ChangeObserver or
	// other component must share it.
	Cache *StateCache

	// The collaborator subsystems coupled to registration
	// transitions. Each nil collaborator is skipped wherever a
	// transition would call it.
	Sessions           SessionStore
	Certificates       CertificateStore
	ProfileCredentials ProfileCredentialStore
	GroupCredentials   GroupCredentialStore
	Payments           PaymentsStore
	Addresses          AddressCache
	Deregistration     DeregistrationHandler
}

// Manager owns every write to account state and serves reads through
// its snapshot cache. There is one Manager per store; construct it at
// startup and hand it to consumers. All methods are safe for
// concurrent use.
type Manager struct {
	store  *kvstore.Store
	bus    *Bus
	clock  clock.Clock
	logger *slog.Logger
	cache  *StateCache

	sessions           SessionStore
	certificates       CertificateStore
	profileCredentials ProfileCredentialStore
	groupCredentials   GroupCredentialStore
	payments           PaymentsStore
	addresses          AddressCache
	deregistration     DeregistrationHandler
}

// NewManager validates cfg and returns a Manager. No I/O happens
// here; call WarmCaches to prime the snapshot.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("account: Store is required")
	}
	if cfg.Bus == nil {
		return nil, fmt.Errorf("account: Bus is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("account: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("account: Logger is required")
	}
	cache := cfg.Cache
	if cache == nil {
		cache = NewStateCache(cfg.Store)
	}
	return &Manager{
		store:              cfg.Store,
		bus:                cfg.Bus,
		clock:              cfg.Clock,
		logger:             cfg.Logger,
		cache:              cache,
		sessions:           cfg.Sessions,
		certificates:       cfg.Certificates,
		profileCredentials: cfg.ProfileCredentials,
		groupCredentials:   cfg.GroupCredentials,
		payments:           cfg.Payments,
		addresses:          cfg.Addresses,
		deregistration:     cfg.Deregistration,
	}, nil
}

// Cache returns the snapshot cache, for wiring a ChangeObserver or
// giving read-only consumers direct snapshot access.
func (m *Manager) Cache() *StateCache { return m.cache }

// CurrentState returns the current snapshot, loading it on a cache
// miss.
func (m *Manager) CurrentState(ctx context.Context) (*AccountState, error) {
	return m.cache.GetOrLoad(ctx)
}

// CurrentStateTx is CurrentState for callers already holding an open
// transaction.
func (m *Manager) CurrentStateTx(tx kvstore.ReadTx) (*AccountState, error) {
	return m.cache.GetOrLoadTx(tx)
}

// RegistrationState returns the current derived lifecycle state.
func (m *Manager) RegistrationState(ctx context.Context) (RegistrationState, error) {
	state, err := m.cache.GetOrLoad(ctx)
	if err != nil {
		return Unregistered, err
	}
	return state.RegistrationState(), nil
}

// WarmCaches loads the snapshot at startup so the first real read is
// a cache hit, and logs where the account stands.
func (m *Manager) WarmCaches(ctx context.Context) error {
	state, err := m.cache.GetOrLoad(ctx)
	if err != nil {
		return fmt.Errorf("account: warming cache: %w", err)
	}
	m.logger.Info("account state loaded",
		"registration_state", state.RegistrationState().String(),
		"onboarded", state.IsOnboarded(),
		"device_id", state.DeviceID())
	return nil
}

// write runs fn in a write transaction and drops the cached snapshot
// if anything fails. Operations reload the cache inside their
// transaction, so a rollback after that point would otherwise leave
// the cache holding state that never committed.
func (m *Manager) write(ctx context.Context, fn func(tx *kvstore.WriteTx) error) error {
	if err := m.store.Write(ctx, fn); err != nil {
		m.cache.Invalidate()
		return err
	}
	return nil
}

// clearIdentityCollaterals drops every cache whose contents are bound
// to the current identity: sender certificates, profile-key
// credentials, temporal group credentials. Called whenever the
// confirmed identity changes or is wiped.
func (m *Manager) clearIdentityCollaterals(tx *kvstore.WriteTx) error {
	if m.certificates != nil {
		if err := m.certificates.ClearSenderCertificates(tx); err != nil {
			return fmt.Errorf("account: clearing sender certificates: %w", err)
		}
	}
	if m.profileCredentials != nil {
		if err := m.profileCredentials.ClearProfileCredentials(tx); err != nil {
			return fmt.Errorf("account: clearing profile credentials: %w", err)
		}
	}
	if m.groupCredentials != nil {
		if err := m.groupCredentials.ClearTemporalCredentials(tx); err != nil {
			return fmt.Errorf("account: clearing group credentials: %w", err)
		}
	}
	return nil
}
