package health

import (
	"encoding/json"
	"time"

	"github.com/kbukum/fleetkit/breaker"
)

// Status represents the health state of a service or the fleet.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// ComponentStatus describes one sub-component reported by a
// dependency's health endpoint.
type ComponentStatus struct {
	Status  Status `json:"status"`
	Details string `json:"details,omitempty"`
}

// CircuitInfo is the breaker state merged onto a Record.
type CircuitInfo struct {
	Open           bool          `json:"open"`
	State          string        `json:"state"`
	FallbackActive bool          `json:"fallback_active"`
	Stats          breaker.Stats `json:"stats"`
}

// Record is the health of a single dependency, produced fresh on each
// aggregation cycle and never mutated afterwards.
type Record struct {
	Name           string                     `json:"name"`
	Status         Status                     `json:"status"`
	Timestamp      time.Time                  `json:"timestamp"`
	Version        string                     `json:"version,omitempty"`
	LatencyMs      int64                      `json:"latency_ms"`
	Error          string                     `json:"error,omitempty"`
	Components     map[string]ComponentStatus `json:"components,omitempty"`
	Metrics        map[string]any             `json:"metrics,omitempty"`
	CircuitBreaker *CircuitInfo               `json:"circuit_breaker,omitempty"`
}

// Snapshot is the aggregate fleet picture.
type Snapshot struct {
	Timestamp         time.Time         `json:"timestamp"`
	ServicesTotal     int               `json:"services_total"`
	ServicesHealthy   int               `json:"services_healthy"`
	ServicesDegraded  int               `json:"services_degraded"`
	ServicesUnhealthy int               `json:"services_unhealthy"`
	OverallStatus     Status            `json:"overall_status"`
	Services          map[string]Record `json:"services"`
}

// probePayload tolerates both rich and sparse health endpoint bodies.
type probePayload struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
	Details   struct {
		Components map[string]componentPayload `json:"components"`
	} `json:"details"`
	Components map[string]componentPayload `json:"components"`
	Metrics    map[string]any              `json:"metrics"`
}

type componentPayload struct {
	Status  string `json:"status"`
	Details string `json:"details"`
}

// normalizeRecord converts a 2xx probe body into a Record. A body that
// is empty or not JSON is treated as bare-healthy with an unknown
// version, per the health endpoint contract.
func normalizeRecord(name string, body []byte, includeMetrics bool) Record {
	rec := Record{
		Name:      name,
		Status:    StatusHealthy,
		Version:   "unknown",
		Timestamp: time.Now().UTC(),
	}

	var payload probePayload
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil {
		return rec
	}

	if payload.Status != "" {
		rec.Status = normalizeStatus(payload.Status)
	}
	if payload.Version != "" {
		rec.Version = payload.Version
	}

	components := payload.Details.Components
	if len(components) == 0 {
		components = payload.Components
	}
	if len(components) > 0 {
		rec.Components = make(map[string]ComponentStatus, len(components))
		for cname, c := range components {
			rec.Components[cname] = ComponentStatus{
				Status:  normalizeStatus(c.Status),
				Details: c.Details,
			}
		}
	}

	if includeMetrics && len(payload.Metrics) > 0 {
		rec.Metrics = payload.Metrics
	}

	return rec
}

// normalizeStatus maps the status vocabularies seen across services
// onto the three-valued model.
func normalizeStatus(s string) Status {
	switch s {
	case "healthy", "ok", "up", "UP", "pass":
		return StatusHealthy
	case "degraded", "warn", "DEGRADED":
		return StatusDegraded
	case "unhealthy", "down", "DOWN", "fail":
		return StatusUnhealthy
	default:
		return StatusDegraded
	}
}

// deriveOverall computes the fleet status. Precedence is strict:
// any unhealthy wins, then any degraded, then healthy.
func deriveOverall(records map[string]Record) Status {
	overall := StatusHealthy
	for _, r := range records {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}
