// Package client provides a resilient client for calling downstream
// dependencies through per-dependency circuit breakers.
//
// Each dependency gets a lazily created breaker. Transport failures are
// normalized into a typed DependencyError so callers can distinguish
// refused connections, timeouts, and remote (non-2xx) errors. Breaker
// state transitions set a process-wide fallback flag for the dependency
// and publish circuit-open / circuit-close / circuit-half-open events
// on the injected bus, so unrelated subsystems can react without
// polling.
//
//	c := client.New(cfg, events.NewBus())
//	resp, err := c.Invoke(ctx, "billing", client.Request{
//	    Method: http.MethodGet,
//	    Path:   "/invoices/42",
//	})
package client
