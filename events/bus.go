package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/fleetkit/logger"
)

// Event names published by the resilient client.
const (
	// CircuitOpen fires when a dependency's breaker trips open.
	CircuitOpen = "circuit-open"
	// CircuitClose fires when a dependency's breaker recovers to closed.
	CircuitClose = "circuit-close"
	// CircuitHalfOpen fires when a breaker admits a recovery probe.
	CircuitHalfOpen = "circuit-half-open"
)

// Event is a single breaker notification.
type Event struct {
	// ID uniquely identifies this event instance.
	ID string `json:"id"`
	// Name is one of the Circuit* constants.
	Name string `json:"name"`
	// Dependency is the affected dependency name.
	Dependency string `json:"dependency"`
	// At is when the transition happened.
	At time.Time `json:"at"`
}

// Handler receives published events.
type Handler func(Event)

// Bus is a synchronous in-process pub/sub bus keyed by event name.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]map[string]Handler
	log      *logger.Logger
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string]map[string]Handler),
		log:      logger.WithComponent("events"),
	}
}

// Subscribe registers a handler for the named event and returns a
// function that removes the subscription.
func (b *Bus) Subscribe(name string, h Handler) (unsubscribe func()) {
	id := uuid.NewString()

	b.mu.Lock()
	if b.handlers[name] == nil {
		b.handlers[name] = make(map[string]Handler)
	}
	b.handlers[name][id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers[name], id)
		b.mu.Unlock()
	}
}

// Publish delivers the event to every subscriber of its name,
// synchronously and in unspecified order. Handler panics are recovered
// so one subscriber cannot break publication for the rest.
func (b *Bus) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	subs := make([]Handler, 0, len(b.handlers[ev.Name]))
	for _, h := range b.handlers[ev.Name] {
		subs = append(subs, h)
	}
	b.mu.RUnlock()

	for _, h := range subs {
		b.dispatch(ev, h)
	}
}

func (b *Bus) dispatch(ev Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked", logger.Fields(
				logger.FieldEvent, ev.Name,
				logger.FieldDependency, ev.Dependency,
				"panic", r,
			))
		}
	}()
	h(ev)
}
