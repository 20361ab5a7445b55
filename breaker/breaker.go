package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows requests to pass through.
	StateClosed State = iota
	// StateOpen blocks all requests.
	StateOpen
	// StateHalfOpen allows a single probe request to test recovery.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected without being attempted.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// OpenError is the typed rejection returned while the circuit is open.
// It wraps ErrCircuitOpen so callers can match with errors.Is.
type OpenError struct {
	// Dependency is the breaker name.
	Dependency string
	// RetryAfter is when the next probe will be admitted.
	RetryAfter time.Time
	// Stats is a snapshot of the counters at rejection time.
	Stats Stats
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	return "circuit breaker is open for " + e.Dependency
}

// Unwrap returns ErrCircuitOpen.
func (e *OpenError) Unwrap() error { return ErrCircuitOpen }

// Config configures a circuit breaker.
type Config struct {
	// Name identifies this breaker; conventionally the dependency name.
	Name string `yaml:"name" mapstructure:"name"`
	// MaxConsecutiveFailures trips the breaker after a run of failures.
	MaxConsecutiveFailures uint32 `yaml:"max_consecutive_failures" mapstructure:"max_consecutive_failures"`
	// FailureRatio trips the breaker when the window failure rate reaches
	// this fraction (0 < ratio <= 1), once MinRequests have been observed.
	FailureRatio float64 `yaml:"failure_ratio" mapstructure:"failure_ratio"`
	// MinRequests is the minimum sample size before FailureRatio applies.
	MinRequests uint32 `yaml:"min_requests" mapstructure:"min_requests"`
	// Interval is the length of the monitoring window while closed.
	// Window counters reset when it elapses. Zero means a single
	// ever-growing window.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	// ResetTimeout is how long the breaker stays open before admitting
	// a half-open probe.
	ResetTimeout time.Duration `yaml:"reset_timeout" mapstructure:"reset_timeout"`
	// CallTimeout bounds each guarded call. Zero disables the bound.
	CallTimeout time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`
	// OnStateChange is invoked for every state transition. It runs with
	// the breaker's lock held and must not call back into the breaker.
	OnStateChange func(name string, from, to State) `yaml:"-" mapstructure:"-"`
}

// DefaultConfig returns sensible defaults for HTTP dependencies.
func DefaultConfig(name string) Config {
	return Config{
		Name:                   name,
		MaxConsecutiveFailures: 5,
		FailureRatio:           0.5,
		MinRequests:            10,
		Interval:               60 * time.Second,
		ResetTimeout:           30 * time.Second,
		CallTimeout:            5 * time.Second,
	}
}

// Stats is a snapshot of breaker counters.
type Stats struct {
	Requests             uint32    `json:"requests"`
	TotalSuccesses       uint32    `json:"total_successes"`
	TotalFailures        uint32    `json:"total_failures"`
	ConsecutiveSuccesses uint32    `json:"consecutive_successes"`
	ConsecutiveFailures  uint32    `json:"consecutive_failures"`
	OpenedAt             time.Time `json:"opened_at,omitzero"`
	NextProbeAt          time.Time `json:"next_probe_at,omitzero"`
}

// Breaker is a per-dependency circuit breaker. All state lives in
// memory; a process restart resets every breaker to closed.
type Breaker struct {
	config Config

	mu          sync.Mutex
	state       State
	stats       Stats
	windowStart time.Time
	probeActive bool
}

// New creates a circuit breaker, applying defaults for zero thresholds.
func New(config Config) *Breaker {
	if config.MaxConsecutiveFailures == 0 {
		config.MaxConsecutiveFailures = 5
	}
	if config.FailureRatio <= 0 || config.FailureRatio > 1 {
		config.FailureRatio = 0.5
	}
	if config.MinRequests == 0 {
		config.MinRequests = 10
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}

	return &Breaker{
		config:      config,
		state:       StateClosed,
		windowStart: time.Now(),
	}
}

// Call runs fn through the breaker. While open it returns *OpenError
// without invoking fn. In half-open exactly one probe is admitted;
// concurrent callers are rejected. When CallTimeout is set, fn receives
// a context bounded by it and a deadline overrun counts as a failure.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}

	callCtx := ctx
	if b.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, b.config.CallTimeout)
		defer cancel()
	}

	err := fn(callCtx)
	if err == nil && callCtx.Err() != nil {
		// The operation ignored its deadline; still treat it as a timeout.
		err = callCtx.Err()
	}
	if ctx.Err() == context.Canceled && errors.Is(err, context.Canceled) {
		// The caller abandoned the call. That says nothing about the
		// dependency's health, so release the slot without counting it.
		b.abandon()
		return err
	}
	b.record(err)
	return err
}

// abandon releases an admitted call without recording an outcome. In
// half-open this frees the probe slot for the next caller.
func (b *Breaker) abandon() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probeActive = false
}

// State returns the current breaker state. The open to half-open
// transition happens on the call path, not on reads, so transition
// hooks fire exactly once per transition.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot of the breaker counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Reset forces the breaker to closed and clears all counters.
// Used by manual recovery tooling.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.toState(StateClosed)
	b.resetWindow()
	b.stats.ConsecutiveFailures = 0
	b.stats.ConsecutiveSuccesses = 0
	b.stats.OpenedAt = time.Time{}
	b.stats.NextProbeAt = time.Time{}
}

// allow decides whether a call may proceed, transitioning open to
// half-open once the reset timeout has elapsed.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.rollWindow()
		return nil
	case StateOpen:
		if time.Now().Before(b.stats.NextProbeAt) {
			return b.openError()
		}
		b.toState(StateHalfOpen)
		b.probeActive = true
		return nil
	case StateHalfOpen:
		if b.probeActive {
			return b.openError()
		}
		b.probeActive = true
		return nil
	default:
		return b.openError()
	}
}

// record applies the outcome of an admitted call.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.Requests++
	if err != nil {
		b.onFailure()
	} else {
		b.onSuccess()
	}
}

func (b *Breaker) onSuccess() {
	b.stats.TotalSuccesses++
	b.stats.ConsecutiveSuccesses++
	b.stats.ConsecutiveFailures = 0

	if b.state == StateHalfOpen {
		b.probeActive = false
		b.toState(StateClosed)
		b.resetWindow()
		b.stats.ConsecutiveFailures = 0
		b.stats.OpenedAt = time.Time{}
		b.stats.NextProbeAt = time.Time{}
	}
}

func (b *Breaker) onFailure() {
	b.stats.TotalFailures++
	b.stats.ConsecutiveFailures++
	b.stats.ConsecutiveSuccesses = 0

	switch b.state {
	case StateClosed:
		if b.shouldTrip() {
			b.trip()
		}
	case StateHalfOpen:
		// Failed probe: straight back to open with a fresh cooldown.
		b.probeActive = false
		b.trip()
	}
}

// shouldTrip checks both tripping policies: a run of consecutive
// failures, or the window failure ratio once enough calls were seen.
func (b *Breaker) shouldTrip() bool {
	if b.stats.ConsecutiveFailures >= b.config.MaxConsecutiveFailures {
		return true
	}
	if b.stats.Requests >= b.config.MinRequests {
		ratio := float64(b.stats.TotalFailures) / float64(b.stats.Requests)
		if ratio >= b.config.FailureRatio {
			return true
		}
	}
	return false
}

func (b *Breaker) trip() {
	now := time.Now()
	b.stats.OpenedAt = now
	b.stats.NextProbeAt = now.Add(b.config.ResetTimeout)
	b.toState(StateOpen)
}

// rollWindow resets window counters when the monitoring interval has
// elapsed. Only meaningful while closed.
func (b *Breaker) rollWindow() {
	if b.config.Interval <= 0 {
		return
	}
	if time.Since(b.windowStart) >= b.config.Interval {
		b.resetWindow()
	}
}

func (b *Breaker) resetWindow() {
	b.windowStart = time.Now()
	b.stats.Requests = 0
	b.stats.TotalSuccesses = 0
	b.stats.TotalFailures = 0
}

// toState transitions to a new state and fires the change hook.
func (b *Breaker) toState(to State) {
	if b.state == to {
		return
	}

	from := b.state
	b.state = to

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.config.Name, from, to)
	}
}

func (b *Breaker) openError() *OpenError {
	return &OpenError{
		Dependency: b.config.Name,
		RetryAfter: b.stats.NextProbeAt,
		Stats:      b.stats,
	}
}
