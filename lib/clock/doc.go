// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for testability.
//
// Production code accepts a Clock parameter instead of calling time.Now
// or time.NewTicker directly. In production, Real() provides standard
// library behavior. In tests, Fake() provides a deterministic clock
// that advances only when Advance is called.
//
// # Wiring Pattern
//
// Add a Clock field to structs that read time:
//
//	type Manager struct {
//	    clock clock.Clock
//	    // ...
//	}
//
// In production:
//
//	m := NewManager(Config{Clock: clock.Real()})
//
// In tests:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	m := NewManager(Config{Clock: c})
//	// ... start goroutines that poll on a ticker ...
//	c.WaitForTickers(1)        // wait for the ticker to register
//	c.Advance(time.Second)     // deliver a tick deterministically
//
// WaitForTickers eliminates the race between a goroutine registering
// its ticker and the test advancing the clock.
package clock
