// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package account

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Event is a change notification from the account subsystem. The set
// of events is closed: subscribers can type-switch exhaustively.
//
// Events are advisory. They say "state changed, a snapshot taken now
// reflects it" — they do not carry the snapshot, and a subscriber that
// falls behind loses events, not correctness.
type Event interface {
	isEvent()
}

// RegistrationStateChanged reports that the derived registration
// lifecycle state moved.
type RegistrationStateChanged struct {
	State RegistrationState
}

// OnboardingStateChanged reports that the onboarding flag was written.
type OnboardingStateChanged struct {
	Onboarded bool
}

// LocalIdentifiersMayHaveChanged reports that the identifiers the
// client should act as (number, ACI, PNI) may have moved: a claim was
// made, confirmed, or cleared. It carries the identifiers as they
// stand after the change. Best-effort — subscribers needing certainty
// take a fresh snapshot.
type LocalIdentifiersMayHaveChanged struct {
	Number E164
	ACI    ACI
	PNI    PNI
}

func (RegistrationStateChanged) isEvent()       {}
func (OnboardingStateChanged) isEvent()         {}
func (LocalIdentifiersMayHaveChanged) isEvent() {}

const (
	// publishQueueSize bounds events awaiting dispatch. Writers are
	// never blocked by subscribers: past this bound events drop.
	publishQueueSize = 64

	// subscriberBufferSize bounds events awaiting one subscriber. A
	// subscriber that stops receiving loses events past this bound
	// while the rest keep their feed.
	subscriberBufferSize = 16
)

// Bus fans account events out to subscribers. Publication is
// non-blocking and delivery is in publish order per subscriber; a full
// queue or a lagging subscriber drops events with a warning rather
// than stalling the writer that published.
type Bus struct {
	logger *slog.Logger
	queue  chan Event
	stop   chan struct{}
	done   chan struct{}

	mu          sync.Mutex
	closed      bool
	nextID      int
	subscribers map[int]chan Event
}

// NewBus returns a running bus. The caller must Close it. A nil
// logger discards the drop warnings.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := &Bus{
		logger:      logger,
		queue:       make(chan Event, publishQueueSize),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		subscribers: make(map[int]chan Event),
	}
	go b.dispatch()
	return b
}

// Publish enqueues event for delivery. It never blocks: if the queue
// is full the event is dropped with a warning. Publishing to a closed
// bus is a no-op.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}
	select {
	case b.queue <- event:
	default:
		b.logger.Warn("event queue full, dropping event",
			"event", fmt.Sprintf("%T", event))
	}
}

// Subscribe registers a new subscriber and returns its channel plus a
// cancel function. The channel closes on cancel and on bus Close;
// subscribers should range over it. Events published before Subscribe
// are not replayed. Subscribing to a closed bus returns an
// already-closed channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBufferSize)
	b.subscribers[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subscriber, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(subscriber)
		}
	}
	return ch, cancel
}

// Close delivers already-published events, closes every subscriber
// channel, and stops the dispatch goroutine. Publish calls racing
// Close may be dropped. Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.stop)
	<-b.done
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for {
		select {
		case <-b.stop:
			// Drain what was published before Close, then shut the
			// subscriber channels so their range loops terminate.
			for {
				select {
				case event := <-b.queue:
					b.deliver(event)
				default:
					b.mu.Lock()
					for id, subscriber := range b.subscribers {
						delete(b.subscribers, id)
						close(subscriber)
					}
					b.mu.Unlock()
					return
				}
			}
		case event := <-b.queue:
			b.deliver(event)
		}
	}
}

// deliver fans one event out to every subscriber, dropping it for
// subscribers whose buffers are full.
func (b *Bus) deliver(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subscriber := range b.subscribers {
		select {
		case subscriber <- event:
		default:
			b.logger.Warn("subscriber lagging, dropping event",
				"event", fmt.Sprintf("%T", event))
		}
	}
}
