package client

import (
	"sync"

	"github.com/kbukum/fleetkit/breaker"
)

// registry holds the per-dependency breakers, created lazily on first
// use. Breakers live for the process lifetime and are never persisted.
type registry struct {
	mu       sync.RWMutex
	breakers map[string]*breaker.Breaker
	template breaker.Config
	onChange func(name string, from, to breaker.State)
}

func newRegistry(template breaker.Config, onChange func(string, breaker.State, breaker.State)) *registry {
	return &registry{
		breakers: make(map[string]*breaker.Breaker),
		template: template,
		onChange: onChange,
	}
}

// get returns the breaker for a dependency, creating it on first call.
func (r *registry) get(name string) *breaker.Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}

	cfg := r.template
	cfg.Name = name
	cfg.OnStateChange = r.onChange
	b = breaker.New(cfg)
	r.breakers[name] = b
	return b
}

// lookup returns an existing breaker without creating one.
func (r *registry) lookup(name string) (*breaker.Breaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.breakers[name]
	return b, ok
}

// flagSet holds the per-dependency fallback flags. Flags flip exactly
// on breaker transitions to and from open, never on individual calls.
type flagSet struct {
	mu sync.RWMutex
	m  map[string]bool
}

func newFlagSet() *flagSet {
	return &flagSet{m: make(map[string]bool)}
}

func (f *flagSet) set(name string, active bool) {
	f.mu.Lock()
	f.m[name] = active
	f.mu.Unlock()
}

func (f *flagSet) active(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.m[name]
}
