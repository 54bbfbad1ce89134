package booking

import (
	"context"
	"sync"
)

// FetchFunc resolves a filter against the appointment store.
type FetchFunc func(ctx context.Context, filter Filter) ([]*Appointment, error)

type subscription struct {
	filter Filter
	// Capacity one, latest wins. A slow consumer only ever misses
	// intermediate snapshots, never the final one.
	updates chan []*Appointment
	done    chan struct{}
}

// Broker fans appointment changes out to live subscriptions. Rather than
// diffing, it re-runs each subscription's filter and emits the entire fresh
// result set, so consumers can replace their view wholesale.
type Broker struct {
	mu            sync.RWMutex
	fetch         FetchFunc
	subscriptions map[int64]*subscription
	nextID        int64
}

// NewBroker creates a new Broker resolving subscriptions with the given fetch
// function.
func NewBroker(fetch FetchFunc) *Broker {
	return &Broker{
		fetch:         fetch,
		subscriptions: make(map[int64]*subscription),
	}
}

// Subscribe registers a subscription for the given filter and emits the current
// result set right away. The subscription lives until the context is done or
// the returned cancel function is called. The cancel function must be called by
// the consumer, or the subscription leaks.
func (b *Broker) Subscribe(ctx context.Context, filter Filter) (<-chan []*Appointment, func(), error) {
	appointments, err := b.fetch(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	sub := &subscription{
		filter:  filter,
		updates: make(chan []*Appointment, 1),
		done:    make(chan struct{}),
	}
	sub.updates <- appointments
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subscriptions[id] = sub
	b.mu.Unlock()
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscriptions, id)
			close(sub.updates)
			b.mu.Unlock()
			close(sub.done)
		})
	}
	// The watcher must also exit on a direct cancel, or it would be pinned
	// forever by a non-cancellable context.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-sub.done:
		}
	}()
	return sub.updates, cancel, nil
}

// Notify re-runs every active subscription against the store and pushes the
// fresh result sets. Delivery never blocks: a pending undelivered snapshot is
// dropped in favor of the new one.
func (b *Broker) Notify() {
	// Held across the sends so a concurrent cancel, which closes the channel
	// under the write lock, cannot slip in between.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscriptions {
		appointments, err := b.fetch(context.Background(), sub.filter)
		if err != nil {
			continue
		}
		select {
		case sub.updates <- appointments:
		default:
			select {
			case <-sub.updates:
			default:
			}
			select {
			case sub.updates <- appointments:
			default:
			}
		}
	}
}

// Len returns the number of active subscriptions.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}
