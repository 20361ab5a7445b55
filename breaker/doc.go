// Package breaker implements a per-dependency circuit breaker.
//
// A Breaker wraps one outbound call type and fails fast while its
// dependency is known to be unhealthy, converting a slow or failing
// downstream into immediate local errors instead of queued work.
//
// States:
//   - Closed: calls pass through and failures are counted
//   - Open: calls are rejected with ErrCircuitOpen until the reset
//     timeout elapses
//   - HalfOpen: a single probe call is admitted to test recovery
//
// The breaker trips on a run of consecutive failures or on the failure
// ratio of the current monitoring window, whichever is hit first.
//
//	b := breaker.New(breaker.DefaultConfig("auth-service"))
//	err := b.Call(ctx, func(ctx context.Context) error {
//	    return doRequest(ctx)
//	})
package breaker
