package events

import (
	"sync"
	"testing"
	"time"
)

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(CircuitOpen, func(ev Event) {
		got = append(got, ev)
	})

	bus.Publish(Event{Name: CircuitOpen, Dependency: "auth-service"})

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Dependency != "auth-service" {
		t.Errorf("expected dependency auth-service, got %q", got[0].Dependency)
	}
	if got[0].ID == "" {
		t.Error("expected event ID to be assigned")
	}
	if got[0].At.IsZero() {
		t.Error("expected event timestamp to be assigned")
	}
}

func TestBus_NameIsolation(t *testing.T) {
	bus := NewBus()

	var opens, closes int
	bus.Subscribe(CircuitOpen, func(Event) { opens++ })
	bus.Subscribe(CircuitClose, func(Event) { closes++ })

	bus.Publish(Event{Name: CircuitOpen, Dependency: "billing"})
	bus.Publish(Event{Name: CircuitOpen, Dependency: "billing"})
	bus.Publish(Event{Name: CircuitClose, Dependency: "billing"})

	if opens != 2 {
		t.Errorf("expected 2 open events, got %d", opens)
	}
	if closes != 1 {
		t.Errorf("expected 1 close event, got %d", closes)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	var count int
	stop := bus.Subscribe(CircuitHalfOpen, func(Event) { count++ })

	bus.Publish(Event{Name: CircuitHalfOpen, Dependency: "search"})
	stop()
	bus.Publish(Event{Name: CircuitHalfOpen, Dependency: "search"})

	if count != 1 {
		t.Errorf("expected 1 delivery after unsubscribe, got %d", count)
	}
}

func TestBus_PanickingHandlerDoesNotBlockOthers(t *testing.T) {
	bus := NewBus()

	var delivered int
	bus.Subscribe(CircuitOpen, func(Event) { panic("bad subscriber") })
	bus.Subscribe(CircuitOpen, func(Event) { delivered++ })

	bus.Publish(Event{Name: CircuitOpen, Dependency: "auth-service"})

	if delivered != 1 {
		t.Errorf("expected surviving handler to run, got %d deliveries", delivered)
	}
}

func TestBus_PreservesProvidedMetadata(t *testing.T) {
	bus := NewBus()

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var got Event
	bus.Subscribe(CircuitClose, func(ev Event) { got = ev })

	bus.Publish(Event{ID: "fixed-id", Name: CircuitClose, Dependency: "ledger", At: at})

	if got.ID != "fixed-id" {
		t.Errorf("expected provided ID preserved, got %q", got.ID)
	}
	if !got.At.Equal(at) {
		t.Errorf("expected provided timestamp preserved, got %v", got.At)
	}
}

func TestBus_ConcurrentPublishAndSubscribe(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var count int
	bus.Subscribe(CircuitOpen, func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				bus.Publish(Event{Name: CircuitOpen, Dependency: "stress"})
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if count != 200 {
		t.Errorf("expected 200 deliveries, got %d", count)
	}
}
