// Package events provides an in-process publish/subscribe bus for
// circuit breaker notifications.
//
// Subscribers register per event name and are invoked synchronously on
// publish, so unrelated subsystems can react to breaker transitions
// without polling. The bus is an explicit dependency, not an ambient
// global: construct one per process (or per test) and pass it where
// it is needed.
//
//	bus := events.NewBus()
//	stop := bus.Subscribe(events.CircuitOpen, func(ev events.Event) {
//	    switchToDegradedValidation(ev.Dependency)
//	})
//	defer stop()
package events
