package booking

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"
)

// collectingFetch answers every filter with the current snapshot, guarded for
// concurrent use by Notify.
type collectingFetch struct {
	mu       sync.Mutex
	snapshot []*Appointment
}

func (c *collectingFetch) set(appointments []*Appointment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = appointments
}

func (c *collectingFetch) fetch(ctx context.Context, filter Filter) ([]*Appointment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	matches := make([]*Appointment, 0, len(c.snapshot))
	for _, appointment := range c.snapshot {
		if filter.Matches(appointment) {
			matches = append(matches, appointment)
		}
	}
	return matches, nil
}

func receiveOrFail(t *testing.T, updates <-chan []*Appointment) []*Appointment {
	t.Helper()
	select {
	case appointments := <-updates:
		return appointments
	case <-time.After(time.Second):
		t.Fatal("no update was delivered in time")
	}
	return nil
}

func TestBrokerSubscribeEmitsInitialSnapshot(t *testing.T) {
	day := NewDay(2026, time.July, 1)
	source := &collectingFetch{}
	source.set([]*Appointment{buildAppointment("Dr. Gray", "Cardiology", StatusPending, day, "08:00")})
	broker := NewBroker(source.fetch)

	updates, cancel, err := broker.Subscribe(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cancel()

	snapshot := receiveOrFail(t, updates)
	if len(snapshot) != 1 {
		t.Errorf("initial snapshot size is incorrect, got %d, want %d", len(snapshot), 1)
	}
}

func TestBrokerNotifyReEmitsResultSet(t *testing.T) {
	day := NewDay(2026, time.July, 1)
	source := &collectingFetch{}
	broker := NewBroker(source.fetch)

	updates, cancel, err := broker.Subscribe(context.Background(), Filter{Status: StatusPending})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cancel()

	if snapshot := receiveOrFail(t, updates); len(snapshot) != 0 {
		t.Fatalf("initial snapshot should be empty, got %d entries", len(snapshot))
	}

	source.set([]*Appointment{
		buildAppointment("Dr. Gray", "Cardiology", StatusPending, day, "08:00"),
		buildAppointment("Dr. Gray", "Cardiology", StatusCompleted, day, "08:30"),
	})
	broker.Notify()

	snapshot := receiveOrFail(t, updates)
	if len(snapshot) != 1 {
		t.Fatalf("re-emitted snapshot size is incorrect, got %d, want %d", len(snapshot), 1)
	}
	if snapshot[0].Status != StatusPending {
		t.Errorf("re-emitted snapshot should honor the filter, got state %s", snapshot[0].Status)
	}
}

func TestBrokerLatestSnapshotWins(t *testing.T) {
	day := NewDay(2026, time.July, 1)
	source := &collectingFetch{}
	broker := NewBroker(source.fetch)

	updates, cancel, err := broker.Subscribe(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cancel()

	// Nobody is reading: the undelivered snapshots must be replaced, not
	// queued, and the consumer must end up with the latest one.
	source.set([]*Appointment{buildAppointment("Dr. Gray", "Cardiology", StatusPending, day, "08:00")})
	broker.Notify()
	source.set([]*Appointment{
		buildAppointment("Dr. Gray", "Cardiology", StatusPending, day, "08:00"),
		buildAppointment("Dr. Gray", "Cardiology", StatusPending, day, "08:30"),
	})
	broker.Notify()

	snapshot := receiveOrFail(t, updates)
	if len(snapshot) != 2 {
		t.Errorf("latest snapshot should win, got %d entries, want %d", len(snapshot), 2)
	}
}

func TestBrokerCancelClosesSubscription(t *testing.T) {
	source := &collectingFetch{}
	broker := NewBroker(source.fetch)

	updates, cancel, err := broker.Subscribe(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	receiveOrFail(t, updates)
	cancel()

	if _, open := <-updates; open {
		t.Error("the updates channel should be closed after cancelling")
	}
	if broker.Len() != 0 {
		t.Errorf("no subscription should remain, got %d", broker.Len())
	}
	// repeated cancels must be harmless
	cancel()
	broker.Notify()
}

func TestBrokerCancelReleasesWatcher(t *testing.T) {
	source := &collectingFetch{}
	broker := NewBroker(source.fetch)
	baseline := runtime.NumGoroutine()

	// a non-cancellable context: only the cancel function can end these
	for i := 0; i < 20; i++ {
		updates, cancel, err := broker.Subscribe(context.Background(), Filter{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		receiveOrFail(t, updates)
		cancel()
	}

	deadline := time.After(time.Second)
	for runtime.NumGoroutine() > baseline+2 {
		select {
		case <-deadline:
			t.Fatalf("watcher goroutines were not released, got %d, had %d", runtime.NumGoroutine(), baseline)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestBrokerContextCancellation(t *testing.T) {
	source := &collectingFetch{}
	broker := NewBroker(source.fetch)

	ctx, cancelCtx := context.WithCancel(context.Background())
	updates, cancel, err := broker.Subscribe(ctx, Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cancel()
	receiveOrFail(t, updates)
	cancelCtx()

	deadline := time.After(time.Second)
	for broker.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("the subscription was not removed after the context was cancelled")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
