// Package health aggregates fleet health from live probes and circuit
// breaker state.
//
// The Aggregator probes every known dependency's health endpoint
// concurrently, each with its own timeout, and merges the results with
// the breaker status reported by the resilient client. One slow or
// unreachable dependency never delays or fails the checks for the
// others: its record is marked unhealthy with an error string instead.
//
// Snapshots and breaker statuses are cached with independent TTLs so
// frequent polling by dashboards and load balancers does not turn into
// a health-check storm against downstream services.
//
// All state is in memory; a process restart clears both caches.
package health
