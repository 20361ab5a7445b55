package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/fleetkit/breaker"
	"github.com/kbukum/fleetkit/events"
	"github.com/kbukum/fleetkit/logger"
	"github.com/kbukum/fleetkit/observability"
)

// Client invokes downstream dependencies through per-dependency
// circuit breakers and publishes breaker transitions on the bus.
type Client struct {
	config     Config
	httpClient *http.Client
	registry   *registry
	flags      *flagSet
	bus        *events.Bus
	baseURLs   map[string]string
	log        *logger.Logger
	metrics    *observability.Metrics
}

// New creates a resilient client. The bus is required; transitions are
// published on it as circuit-open / circuit-close / circuit-half-open.
func New(cfg Config, bus *events.Bus) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		flags:    newFlagSet(),
		bus:      bus,
		baseURLs: make(map[string]string, len(cfg.Dependencies)),
		log:      logger.WithComponent("client"),
	}
	c.registry = newRegistry(cfg.Breaker, c.onStateChange)

	for _, d := range cfg.Dependencies {
		c.baseURLs[d.Name] = strings.TrimRight(d.BaseURL, "/")
	}

	return c, nil
}

// SetMetrics installs metric instruments. A nil value disables recording.
func (c *Client) SetMetrics(m *observability.Metrics) {
	c.metrics = m
}

// Invoke calls the named dependency through its circuit breaker.
// While the breaker is open the call fails fast with *breaker.OpenError
// and no network traffic is attempted. All other failures are
// normalized to *DependencyError.
func (c *Client) Invoke(ctx context.Context, dependency string, req Request) (*Response, error) {
	base, ok := c.baseURLs[dependency]
	if !ok {
		return nil, fmt.Errorf("client: unknown dependency %q", dependency)
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanDependencyCall)
	span.SetAttributes(attribute.String(observability.AttrDependency, dependency))
	defer span.End()

	b := c.registry.get(dependency)
	start := time.Now()

	var resp *Response
	err := b.Call(ctx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.do(ctx, dependency, base, req)
		return callErr
	})
	if err != nil {
		observability.SetSpanError(ctx, err)

		var openErr *breaker.OpenError
		if errors.As(err, &openErr) {
			c.metrics.RecordRejected(ctx, dependency)
			span.SetAttributes(attribute.String(observability.AttrOutcome, "rejected"))
			return nil, err
		}
		var depErr *DependencyError
		if errors.As(err, &depErr) {
			c.recordOutcome(ctx, span, dependency, depErr.Kind.String(), start)
			return resp, err
		}
		// The breaker's own call timeout fired before the transport
		// classified anything.
		c.recordOutcome(ctx, span, dependency, KindTimeout.String(), start)
		return nil, NewTimeoutError(dependency, err)
	}

	c.recordOutcome(ctx, span, dependency, "success", start)
	return resp, nil
}

func (c *Client) recordOutcome(ctx context.Context, span trace.Span, dependency, outcome string, start time.Time) {
	span.SetAttributes(attribute.String(observability.AttrOutcome, outcome))
	c.metrics.RecordCall(ctx, dependency, outcome, time.Since(start))
}

// FallbackActive reports whether the dependency's fallback flag is set,
// i.e. its circuit is currently open.
func (c *Client) FallbackActive(dependency string) bool {
	return c.flags.active(dependency)
}

// Dependencies returns the configured dependency names.
func (c *Client) Dependencies() []string {
	names := make([]string, 0, len(c.config.Dependencies))
	for _, d := range c.config.Dependencies {
		names = append(names, d.Name)
	}
	return names
}

// DependencyStatus is the externally visible breaker state for one
// dependency, consumed by the health aggregator.
type DependencyStatus struct {
	Dependency     string        `json:"dependency"`
	State          string        `json:"state"`
	Open           bool          `json:"open"`
	FallbackActive bool          `json:"fallback_active"`
	Stats          breaker.Stats `json:"stats"`
}

// Status returns the breaker status for every configured dependency.
// Dependencies that were never called report a closed breaker with
// zero counters.
func (c *Client) Status() map[string]DependencyStatus {
	out := make(map[string]DependencyStatus, len(c.config.Dependencies))
	for _, d := range c.config.Dependencies {
		st := DependencyStatus{
			Dependency:     d.Name,
			State:          breaker.StateClosed.String(),
			FallbackActive: c.flags.active(d.Name),
		}
		if b, ok := c.registry.lookup(d.Name); ok {
			state := b.State()
			st.State = state.String()
			st.Open = state == breaker.StateOpen
			st.Stats = b.Stats()
		}
		out[d.Name] = st
	}
	return out
}

// ResetCircuit forces the dependency's breaker closed. Used by manual
// recovery tooling; the resulting transition clears the fallback flag
// and publishes circuit-close like any other recovery.
func (c *Client) ResetCircuit(dependency string) {
	if b, ok := c.registry.lookup(dependency); ok {
		c.log.Info("circuit reset requested", logger.Fields(
			logger.FieldDependency, dependency,
		))
		b.Reset()
	}
}

// onStateChange is installed as every breaker's transition hook. It
// runs under the breaker's lock: flags and bus publication only, no
// calls back into the breaker.
func (c *Client) onStateChange(name string, from, to breaker.State) {
	c.log.Warn("circuit state changed", logger.Fields(
		logger.FieldDependency, name,
		"from", from.String(),
		"to", to.String(),
	))

	c.metrics.RecordTransition(context.Background(), name, from.String(), to.String())

	switch to {
	case breaker.StateOpen:
		c.flags.set(name, true)
		c.bus.Publish(events.Event{Name: events.CircuitOpen, Dependency: name})
	case breaker.StateClosed:
		c.flags.set(name, false)
		c.bus.Publish(events.Event{Name: events.CircuitClose, Dependency: name})
	case breaker.StateHalfOpen:
		c.bus.Publish(events.Event{Name: events.CircuitHalfOpen, Dependency: name})
	}
}

// do executes a single HTTP invocation and classifies failures.
func (c *Client) do(ctx context.Context, dependency, base string, req Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, base, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewTimeoutError(dependency, ctx.Err())
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return nil, NewTimeoutError(dependency, err)
		}
		return nil, NewRefusedError(dependency, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewRefusedError(dependency, fmt.Errorf("read response body: %w", err))
	}

	result := &Response{
		StatusCode: resp.StatusCode,
		Headers:    flattenHeaders(resp.Header),
		Body:       body,
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, NewRemoteError(dependency, resp.StatusCode, body)
	}

	return result, nil
}

// buildRequest assembles the http.Request for an invocation.
func (c *Client) buildRequest(ctx context.Context, base string, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target := base + "/" + strings.TrimLeft(req.Path, "/")

	var bodyReader io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("client: encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get("X-Request-ID") == "" {
		httpReq.Header.Set("X-Request-ID", uuid.NewString())
	}

	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	return httpReq, nil
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}
