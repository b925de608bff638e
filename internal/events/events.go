// Package events provides the typed sync lifecycle event bus. Observers
// subscribe for channels instead of registering callbacks, which keeps
// fan-out bookkeeping out of the sync engine.
package events

import (
	"sync"
	"time"
)

// Kind identifies a sync lifecycle event.
type Kind string

// Canonical event kinds.
const (
	KindSyncStarted     Kind = "sync_started"
	KindSyncCompleted   Kind = "sync_completed"
	KindSyncFailed      Kind = "sync_failed"
	KindConflictFound   Kind = "conflict_found"
	KindNetworkOnline   Kind = "network_online"
	KindNetworkOffline  Kind = "network_offline"
	KindStoragePressure Kind = "storage_pressure"
	KindChangeQueued    Kind = "change_queued"
)

// Event is a single sync lifecycle notification.
type Event struct {
	Kind Kind
	Time time.Time

	// Optional detail, populated per kind.
	Pushed    int    // sync_completed: changes acknowledged
	Pulled    int    // sync_completed: changes applied
	Conflicts int    // sync_completed / conflict_found
	Err       error  // sync_failed
	Table     string // change_queued / conflict_found
	RecordID  string // change_queued / conflict_found
	Bytes     int64  // storage_pressure: current usage
}

// subscriberBuffer bounds each subscriber channel; publishes to a full
// channel are dropped so a stalled observer cannot block a sync cycle.
const subscriberBuffer = 16

// Bus is a fan-out publisher of sync events.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a cancel func that must be
// called when the observer is done.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers an event to all subscribers without blocking.
func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// subscriber is not keeping up; drop rather than stall
		}
	}
}
