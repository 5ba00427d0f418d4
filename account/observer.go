// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-im/meridian/lib/clock"
	"github.com/meridian-im/meridian/lib/kvstore"
)

// defaultPollInterval is how often the observer checks the store's
// data version when the config does not say otherwise.
const defaultPollInterval = time.Second

// ObserverConfig carries the dependencies for a ChangeObserver.
type ObserverConfig struct {
	// Store is the shared database to watch.
	Store *kvstore.Store

	// Cache is reloaded when another connection commits. Wire the
	// same cache the process reads through.
	Cache *StateCache

	// Clock drives the polling ticker.
	Clock clock.Clock

	// Logger receives poll failures and reload events.
	Logger *slog.Logger

	// PollInterval is the time between data-version checks. Defaults
	// to one second — staleness in a secondary process is bounded by
	// this, so keep it small relative to how long the process lives.
	PollInterval time.Duration
}

// ChangeObserver keeps a process's snapshot cache fresh against writes
// committed by other processes sharing the database file. It polls
// SQLite's data-version counter and reloads the cache when the counter
// moves. Run one in processes that do not own the Manager — an
// extension, a helper — so their reads converge on the primary's
// writes; the owning process keeps its own cache fresh through its
// writes and does not need one.
type ChangeObserver struct {
	store    *kvstore.Store
	cache    *StateCache
	clock    clock.Clock
	logger   *slog.Logger
	interval time.Duration
}

// NewChangeObserver validates cfg and returns an observer. Call Run to
// start polling.
func NewChangeObserver(cfg ObserverConfig) (*ChangeObserver, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("account: observer: Store is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("account: observer: Cache is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("account: observer: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("account: observer: Logger is required")
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &ChangeObserver{
		store:    cfg.Store,
		cache:    cfg.Cache,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		interval: interval,
	}, nil
}

// Run polls until ctx is cancelled, reloading the cache whenever the
// store's data version moves. Poll and reload failures are logged and
// retried on the next tick rather than terminating the loop; a failed
// reload also drops the cached snapshot so no reader is left on stale
// state. Returns nil on cancellation.
func (o *ChangeObserver) Run(ctx context.Context) error {
	lastVersion, err := o.store.DataVersion()
	primed := err == nil
	if err != nil {
		o.logger.Warn("initial data version read failed", "error", err)
	}

	ticker := o.clock.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			version, err := o.store.DataVersion()
			if err != nil {
				o.logger.Warn("data version poll failed", "error", err)
				continue
			}
			if !primed {
				lastVersion = version
				primed = true
				continue
			}
			if version == lastVersion {
				continue
			}
			lastVersion = version
			if err := o.cache.Reload(ctx); err != nil {
				// Invalidate so the next reader loads fresh state
				// even though this reload failed.
				o.cache.Invalidate()
				o.logger.Warn("cache reload after external change failed", "error", err)
				continue
			}
			o.logger.Info("account state reloaded after external change")
		}
	}
}
