// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// Fake returns a FakeClock initialized to the given time. Time stands
// still until Advance is called. Tickers register pending waiters that
// fire when the clock advances past their next deadline.
//
// FakeClock is safe for concurrent use by multiple goroutines.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{
		current: initial,
	}
	clock.tickersChanged = sync.NewCond(&clock.mu)
	return clock
}

// FakeClock is a deterministic Clock for testing. Time advances only
// when Advance is called. Now is constant between Advance calls, so a
// value stored during a test can be compared exactly.
type FakeClock struct {
	mu             sync.Mutex
	current        time.Time
	tickers        []*fakeTicker
	tickersChanged *sync.Cond
}

// fakeTicker is a pending periodic waiter.
type fakeTicker struct {
	deadline time.Time
	interval time.Duration
	channel  chan time.Time

	// stopped is set by Ticker.Stop. Stopped tickers are skipped
	// during Advance and garbage-collected.
	stopped bool
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NewTicker returns a Ticker that fires each time Advance moves the
// clock past a multiple of d. Panics if d <= 0.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	ticker := &fakeTicker{
		deadline: c.current.Add(d),
		interval: d,
		channel:  channel,
	}
	c.tickers = append(c.tickers, ticker)
	c.tickersChanged.Broadcast()

	return &Ticker{
		C: channel,
		stopFunc: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			ticker.stopped = true
		},
	}
}

// Advance moves the clock forward by d and fires every ticker whose
// deadline falls within the new time. If the advance spans multiple
// intervals, the ticker fires once per interval; ticks that overflow
// the capacity-1 channel are dropped (matching time.Ticker).
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	target := c.current
	c.mu.Unlock()

	for {
		fired := false
		c.mu.Lock()
		var remaining []*fakeTicker
		for _, ticker := range c.tickers {
			if ticker.stopped {
				continue
			}
			if !ticker.deadline.After(target) {
				select {
				case ticker.channel <- ticker.deadline:
				default:
				}
				ticker.deadline = ticker.deadline.Add(ticker.interval)
				fired = true
			}
			remaining = append(remaining, ticker)
		}
		c.tickers = remaining
		c.mu.Unlock()

		if !fired {
			return
		}
	}
}

// WaitForTickers blocks until at least n tickers are registered and
// not stopped. This synchronization primitive eliminates the race
// between a goroutine registering its ticker and the test advancing
// the clock.
//
// Example:
//
//	go observer.Run(ctx)
//	fakeClock.WaitForTickers(1)    // blocks until Run registers its ticker
//	fakeClock.Advance(time.Second) // deterministically delivers a tick
func (c *FakeClock) WaitForTickers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.activeCountLocked() < n {
		c.tickersChanged.Wait()
	}
}

// activeCountLocked returns the number of non-stopped tickers. Must be
// called with c.mu held.
func (c *FakeClock) activeCountLocked() int {
	count := 0
	for _, ticker := range c.tickers {
		if !ticker.stopped {
			count++
		}
	}
	return count
}
