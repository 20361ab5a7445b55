package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/kbukum/fleetkit/client"
	"github.com/kbukum/fleetkit/logger"
	"github.com/kbukum/fleetkit/observability"
	"github.com/kbukum/fleetkit/validation"
)

const (
	snapshotKey        = "snapshot"
	snapshotMetricsKey = "snapshot:metrics"
	statusKey          = "breaker-status"

	maxProbeBody = 1 << 20
)

// Target is one dependency's health endpoint.
type Target struct {
	// Name is the dependency name, matching the resilient client's.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`
	// URL is the full health endpoint URL.
	URL string `yaml:"url" mapstructure:"url" validate:"required,url"`
}

// StatusSource provides current breaker status per dependency.
// *client.Client satisfies it.
type StatusSource interface {
	Status() map[string]client.DependencyStatus
}

// Config configures the aggregator.
type Config struct {
	// Targets are the health endpoints to probe.
	Targets []Target `yaml:"targets" mapstructure:"targets"`
	// ProbeTimeout bounds each individual probe.
	ProbeTimeout time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"`
	// SnapshotTTL is the fleet snapshot cache lifetime.
	SnapshotTTL time.Duration `yaml:"snapshot_ttl" mapstructure:"snapshot_ttl"`
	// StatusTTL is the breaker-status cache lifetime.
	StatusTTL time.Duration `yaml:"status_ttl" mapstructure:"status_ttl"`
}

// ApplyDefaults applies default values to aggregator configuration.
func (c *Config) ApplyDefaults() {
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 3 * time.Second
	}
	if c.SnapshotTTL <= 0 {
		c.SnapshotTTL = 10 * time.Second
	}
	if c.StatusTTL <= 0 {
		c.StatusTTL = 5 * time.Second
	}
}

// Validate validates aggregator configuration.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Targets))
	for i, t := range c.Targets {
		if err := validation.Validate(&t); err != nil {
			return fmt.Errorf("health.targets[%d]: %w", i, err)
		}
		if seen[t.Name] {
			return fmt.Errorf("health.targets contains duplicate name %q", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// FleetOptions control a single FleetHealth call.
type FleetOptions struct {
	// UseCache returns the cached snapshot when it is still fresh.
	UseCache bool
	// IncludeMetrics carries downstream metrics maps into the records.
	IncludeMetrics bool
}

// Aggregator produces fleet health snapshots.
type Aggregator struct {
	config     Config
	source     StatusSource
	httpClient *http.Client
	cache      *gocache.Cache
	log        *logger.Logger
	metrics    *observability.Metrics

	mu          sync.RWMutex
	snapshotTTL time.Duration
	statusTTL   time.Duration
}

// New creates an aggregator. source may be nil, in which case records
// carry no breaker information.
func New(cfg Config, source StatusSource) *Aggregator {
	cfg.ApplyDefaults()

	return &Aggregator{
		config: cfg,
		source: source,
		// Per-probe timeouts come from the context; the transport
		// itself stays unbounded.
		httpClient:  &http.Client{},
		cache:       gocache.New(cfg.SnapshotTTL, time.Minute),
		log:         logger.WithComponent("health"),
		snapshotTTL: cfg.SnapshotTTL,
		statusTTL:   cfg.StatusTTL,
	}
}

// SetMetrics installs metric instruments. A nil value disables recording.
func (a *Aggregator) SetMetrics(m *observability.Metrics) {
	a.metrics = m
}

// FleetHealth returns the aggregate fleet picture. With UseCache set
// and a fresh cached snapshot, it returns that snapshot unchanged and
// issues zero network calls. It always returns a snapshot: individual
// probe failures become unhealthy records, never errors.
func (a *Aggregator) FleetHealth(ctx context.Context, opts FleetOptions) *Snapshot {
	ctx, span := observability.StartSpan(ctx, observability.SpanFleetHealth)
	defer span.End()

	key := snapshotKey
	if opts.IncludeMetrics {
		key = snapshotMetricsKey
	}

	if opts.UseCache {
		if cached, found := a.cache.Get(key); found {
			a.metrics.RecordSnapshot(ctx, true)
			span.SetAttributes(attribute.Bool(observability.AttrCached, true))
			return cached.(*Snapshot)
		}
	}

	started := time.Now()
	records := a.probeAll(ctx, opts.IncludeMetrics)
	a.mergeBreakerStatus(records)

	snapshot := &Snapshot{
		Timestamp:     time.Now().UTC(),
		ServicesTotal: len(records),
		OverallStatus: deriveOverall(records),
		Services:      records,
	}
	for _, r := range records {
		switch r.Status {
		case StatusHealthy:
			snapshot.ServicesHealthy++
		case StatusDegraded:
			snapshot.ServicesDegraded++
		case StatusUnhealthy:
			snapshot.ServicesUnhealthy++
		}
	}

	a.mu.RLock()
	ttl := a.snapshotTTL
	a.mu.RUnlock()
	a.cache.Set(key, snapshot, ttl)

	a.metrics.RecordSnapshot(ctx, false)
	span.SetAttributes(
		attribute.Bool(observability.AttrCached, false),
		attribute.String(observability.AttrStatus, string(snapshot.OverallStatus)),
	)

	a.log.Debug("fleet snapshot refreshed", logger.Fields(
		logger.FieldStatus, string(snapshot.OverallStatus),
		"services", snapshot.ServicesTotal,
		logger.FieldDuration, time.Since(started).Milliseconds(),
	))

	return snapshot
}

// SetSnapshotTTL changes the snapshot cache lifetime for subsequent writes.
func (a *Aggregator) SetSnapshotTTL(ttl time.Duration) {
	a.mu.Lock()
	a.snapshotTTL = ttl
	a.mu.Unlock()
}

// SetStatusTTL changes the breaker-status cache lifetime for subsequent writes.
func (a *Aggregator) SetStatusTTL(ttl time.Duration) {
	a.mu.Lock()
	a.statusTTL = ttl
	a.mu.Unlock()
}

// ClearCaches drops both caches so the next call recomputes everything
// regardless of UseCache.
func (a *Aggregator) ClearCaches() {
	a.cache.Flush()
}

// probeAll fans out one probe per target, each with an independent
// timeout, and fans the results back in.
func (a *Aggregator) probeAll(ctx context.Context, includeMetrics bool) map[string]Record {
	results := make([]Record, len(a.config.Targets))

	g, gctx := errgroup.WithContext(ctx)
	for i, target := range a.config.Targets {
		i, target := i, target
		g.Go(func() error {
			results[i] = a.probe(gctx, target, includeMetrics)
			return nil
		})
	}
	// Probes never return errors; failures are data.
	_ = g.Wait()

	records := make(map[string]Record, len(results))
	for _, r := range results {
		records[r.Name] = r
	}
	return records
}

// probe checks a single health endpoint. Any failure, including a
// timeout, is converted into an unhealthy record with an error string.
func (a *Aggregator) probe(ctx context.Context, target Target, includeMetrics bool) Record {
	start := time.Now()

	probeCtx, cancel := context.WithTimeout(ctx, a.config.ProbeTimeout)
	defer cancel()

	fail := func(err error) Record {
		a.log.Warn("health probe failed", logger.Fields(
			logger.FieldDependency, target.Name,
			logger.FieldError, err.Error(),
		))
		a.metrics.RecordProbe(ctx, target.Name, string(StatusUnhealthy), time.Since(start))
		return Record{
			Name:      target.Name,
			Status:    StatusUnhealthy,
			Timestamp: time.Now().UTC(),
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     err.Error(),
		}
	}

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, target.URL, nil)
	if err != nil {
		return fail(fmt.Errorf("build probe request: %w", err))
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if probeCtx.Err() == context.DeadlineExceeded {
			return fail(fmt.Errorf("health check timed out after %s", a.config.ProbeTimeout))
		}
		return fail(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return fail(fmt.Errorf("read health response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	rec := normalizeRecord(target.Name, body, includeMetrics)
	rec.LatencyMs = time.Since(start).Milliseconds()
	a.metrics.RecordProbe(ctx, target.Name, string(rec.Status), time.Since(start))
	return rec
}

// mergeBreakerStatus merges cached breaker status onto the records by
// dependency name. The merge is best-effort: a missing source or a
// missing entry never blocks the snapshot.
func (a *Aggregator) mergeBreakerStatus(records map[string]Record) {
	statuses := a.breakerStatus()
	if statuses == nil {
		return
	}

	for name, rec := range records {
		st, ok := statuses[name]
		if !ok {
			continue
		}
		rec.CircuitBreaker = &CircuitInfo{
			Open:           st.Open,
			State:          st.State,
			FallbackActive: st.FallbackActive,
			Stats:          st.Stats,
		}
		records[name] = rec
	}
}

// breakerStatus returns the per-dependency breaker status, cached with
// its own TTL independent of the snapshot cache.
func (a *Aggregator) breakerStatus() map[string]client.DependencyStatus {
	if a.source == nil {
		return nil
	}

	if cached, found := a.cache.Get(statusKey); found {
		return cached.(map[string]client.DependencyStatus)
	}

	statuses := a.source.Status()

	a.mu.RLock()
	ttl := a.statusTTL
	a.mu.RUnlock()
	a.cache.Set(statusKey, statuses, ttl)

	return statuses
}
