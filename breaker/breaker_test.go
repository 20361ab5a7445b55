package breaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func failing(context.Context) error { return errBoom }

func succeeding(context.Context) error { return nil }

func TestBreaker_StartsClosed(t *testing.T) {
	b := New(DefaultConfig("test"))

	if b.State() != StateClosed {
		t.Errorf("expected StateClosed, got %s", b.State())
	}
}

func TestBreaker_AllowsCallsWhenClosed(t *testing.T) {
	b := New(DefaultConfig("test"))

	var called bool
	err := b.Call(context.Background(), func(context.Context) error {
		called = true
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if !called {
		t.Error("function was not called")
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := New(Config{
		Name:                   "test",
		MaxConsecutiveFailures: 3,
		ResetTimeout:           time.Second,
	})

	for i := 0; i < 3; i++ {
		_ = b.Call(context.Background(), failing)
	}

	if b.State() != StateOpen {
		t.Fatalf("expected StateOpen, got %s", b.State())
	}

	// Rejected calls must not invoke the operation.
	var calls int
	err := b.Call(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected 0 calls while open, got %d", calls)
	}

	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected *OpenError, got %T", err)
	}
	if openErr.Dependency != "test" {
		t.Errorf("expected dependency 'test', got %q", openErr.Dependency)
	}
	if openErr.RetryAfter.IsZero() {
		t.Error("expected RetryAfter to be set")
	}
}

func TestBreaker_OpensOnFailureRatio(t *testing.T) {
	b := New(Config{
		Name:                   "test",
		MaxConsecutiveFailures: 100, // only the ratio policy should trip
		FailureRatio:           0.5,
		MinRequests:            4,
		ResetTimeout:           time.Second,
	})

	// Alternate success/failure: 2/4 failed hits the 50% ratio once the
	// MinRequests floor is reached.
	_ = b.Call(context.Background(), failing)
	_ = b.Call(context.Background(), succeeding)
	_ = b.Call(context.Background(), succeeding)
	if b.State() != StateClosed {
		t.Fatalf("tripped below MinRequests floor: %s", b.State())
	}
	_ = b.Call(context.Background(), failing)

	if b.State() != StateOpen {
		t.Errorf("expected StateOpen after ratio trip, got %s", b.State())
	}
}

func TestBreaker_NoRatioTripBelowMinRequests(t *testing.T) {
	b := New(Config{
		Name:                   "test",
		MaxConsecutiveFailures: 100,
		FailureRatio:           0.5,
		MinRequests:            10,
		ResetTimeout:           time.Second,
	})

	// 1/1 failed is 100% but under the sample floor.
	_ = b.Call(context.Background(), failing)

	if b.State() != StateClosed {
		t.Errorf("expected StateClosed, got %s", b.State())
	}
}

func TestBreaker_HalfOpenProbeAfterResetTimeout(t *testing.T) {
	b := New(Config{
		Name:                   "test",
		MaxConsecutiveFailures: 1,
		ResetTimeout:           30 * time.Millisecond,
	})

	_ = b.Call(context.Background(), failing)
	if b.State() != StateOpen {
		t.Fatalf("expected StateOpen, got %s", b.State())
	}

	// State reads must not transition; only the call path does.
	time.Sleep(40 * time.Millisecond)
	if b.State() != StateOpen {
		t.Fatalf("state read should not transition, got %s", b.State())
	}

	var calls int
	err := b.Call(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	if err != nil {
		t.Errorf("expected probe to succeed, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly one probe call, got %d", calls)
	}
	if b.State() != StateClosed {
		t.Errorf("expected StateClosed after successful probe, got %s", b.State())
	}

	stats := b.Stats()
	if stats.ConsecutiveFailures != 0 {
		t.Errorf("expected failure counters reset, got %d", stats.ConsecutiveFailures)
	}
	if !stats.NextProbeAt.IsZero() {
		t.Errorf("expected NextProbeAt cleared, got %v", stats.NextProbeAt)
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b := New(Config{
		Name:                   "test",
		MaxConsecutiveFailures: 1,
		ResetTimeout:           30 * time.Millisecond,
	})

	_ = b.Call(context.Background(), failing)
	firstProbeAt := b.Stats().NextProbeAt

	time.Sleep(40 * time.Millisecond)

	err := b.Call(context.Background(), failing)
	if !errors.Is(err, errBoom) {
		t.Errorf("expected underlying error from probe, got %v", err)
	}
	if b.State() != StateOpen {
		t.Errorf("expected StateOpen after failed probe, got %s", b.State())
	}
	if !b.Stats().NextProbeAt.After(firstProbeAt) {
		t.Error("expected NextProbeAt to be recomputed after failed probe")
	}
}

func TestBreaker_SingleProbeAdmitted(t *testing.T) {
	b := New(Config{
		Name:                   "test",
		MaxConsecutiveFailures: 1,
		ResetTimeout:           20 * time.Millisecond,
	})

	_ = b.Call(context.Background(), failing)
	time.Sleep(30 * time.Millisecond)

	release := make(chan struct{})
	probeRunning := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Call(context.Background(), func(context.Context) error {
			close(probeRunning)
			<-release
			return nil
		})
	}()

	<-probeRunning

	// While the probe is in flight, other callers are rejected.
	err := b.Call(context.Background(), succeeding)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected concurrent caller rejection, got %v", err)
	}

	close(release)
	wg.Wait()

	if b.State() != StateClosed {
		t.Errorf("expected StateClosed after probe, got %s", b.State())
	}
}

func TestBreaker_CallTimeoutCountsAsFailure(t *testing.T) {
	b := New(Config{
		Name:                   "test",
		MaxConsecutiveFailures: 1,
		ResetTimeout:           time.Second,
		CallTimeout:            20 * time.Millisecond,
	})

	err := b.Call(context.Background(), func(ctx context.Context) error {
		select {
		case <-time.After(200 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if b.State() != StateOpen {
		t.Errorf("expected timeout to trip the breaker, got %s", b.State())
	}
}

func TestBreaker_StateChangeHookFiresOncePerTransition(t *testing.T) {
	var mu sync.Mutex
	var transitions []string

	cfg := Config{
		Name:                   "test",
		MaxConsecutiveFailures: 2,
		ResetTimeout:           30 * time.Millisecond,
		OnStateChange: func(name string, from, to State) {
			mu.Lock()
			transitions = append(transitions, from.String()+"->"+to.String())
			mu.Unlock()
		},
	}
	b := New(cfg)

	_ = b.Call(context.Background(), failing)
	_ = b.Call(context.Background(), failing)
	// Repeated rejections while open must not re-fire the hook.
	_ = b.Call(context.Background(), succeeding)
	_ = b.Call(context.Background(), succeeding)

	time.Sleep(40 * time.Millisecond)
	_ = b.Call(context.Background(), succeeding)

	mu.Lock()
	defer mu.Unlock()
	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("expected %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], transitions[i])
		}
	}
}

func TestBreaker_Reset(t *testing.T) {
	b := New(Config{
		Name:                   "test",
		MaxConsecutiveFailures: 1,
		ResetTimeout:           time.Hour,
	})

	_ = b.Call(context.Background(), failing)
	if b.State() != StateOpen {
		t.Fatalf("expected StateOpen, got %s", b.State())
	}

	b.Reset()

	if b.State() != StateClosed {
		t.Errorf("expected StateClosed after reset, got %s", b.State())
	}
	stats := b.Stats()
	if stats.Requests != 0 || stats.TotalFailures != 0 || stats.ConsecutiveFailures != 0 {
		t.Errorf("expected counters cleared, got %+v", stats)
	}

	if err := b.Call(context.Background(), succeeding); err != nil {
		t.Errorf("expected call to pass after reset, got %v", err)
	}
}

func TestBreaker_WindowRollsAfterInterval(t *testing.T) {
	b := New(Config{
		Name:                   "test",
		MaxConsecutiveFailures: 100,
		FailureRatio:           0.5,
		MinRequests:            4,
		Interval:               30 * time.Millisecond,
		ResetTimeout:           time.Second,
	})

	_ = b.Call(context.Background(), failing)
	_ = b.Call(context.Background(), failing)

	time.Sleep(40 * time.Millisecond)

	// A fresh window: the two old failures no longer count toward the ratio.
	_ = b.Call(context.Background(), succeeding)
	stats := b.Stats()
	if stats.Requests != 1 {
		t.Errorf("expected window reset to 1 request, got %d", stats.Requests)
	}
	if b.State() != StateClosed {
		t.Errorf("expected StateClosed, got %s", b.State())
	}
}

func TestBreaker_CallerCancellationNotCountedAsFailure(t *testing.T) {
	b := New(Config{
		Name:                   "test",
		MaxConsecutiveFailures: 1,
		ResetTimeout:           time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Call(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("expected StateClosed after caller cancellation, got %s", b.State())
	}
	if failures := b.Stats().TotalFailures; failures != 0 {
		t.Errorf("expected 0 failures, got %d", failures)
	}
}

func TestBreaker_AbandonedProbeFreesSlot(t *testing.T) {
	b := New(Config{
		Name:                   "test",
		MaxConsecutiveFailures: 1,
		ResetTimeout:           10 * time.Millisecond,
	})

	_ = b.Call(context.Background(), failing)
	if b.State() != StateOpen {
		t.Fatalf("expected StateOpen, got %s", b.State())
	}
	time.Sleep(20 * time.Millisecond)

	// The probe is admitted but its caller walks away.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Call(ctx, func(ctx context.Context) error {
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected StateHalfOpen after abandoned probe, got %s", b.State())
	}

	// The next caller gets the probe slot and can close the circuit.
	if err := b.Call(context.Background(), succeeding); err != nil {
		t.Fatalf("expected probe to be admitted, got %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("expected StateClosed after successful probe, got %s", b.State())
	}
}

func TestBreaker_ConcurrentCalls(t *testing.T) {
	b := New(Config{
		Name:                   "test",
		MaxConsecutiveFailures: 1000,
		MinRequests:            100000,
		ResetTimeout:           time.Second,
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if (n+j)%2 == 0 {
					_ = b.Call(context.Background(), succeeding)
				} else {
					_ = b.Call(context.Background(), failing)
				}
			}
		}(i)
	}
	wg.Wait()

	stats := b.Stats()
	if stats.Requests != 1000 {
		t.Errorf("expected 1000 recorded requests, got %d", stats.Requests)
	}
	if stats.TotalSuccesses+stats.TotalFailures != stats.Requests {
		t.Errorf("counter mismatch: %+v", stats)
	}
}
