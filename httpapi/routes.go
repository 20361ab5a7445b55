package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kbukum/fleetkit/client"
	"github.com/kbukum/fleetkit/health"
	"github.com/kbukum/fleetkit/version"
)

// errorResponse is the admin error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// ttlRequest is the body for PUT /admin/caches/ttl.
type ttlRequest struct {
	// Target selects the cache: "snapshot" or "status".
	Target string `json:"target" binding:"required,oneof=snapshot status"`
	// TTLMs is the new lifetime in milliseconds.
	TTLMs int64 `json:"ttl_ms" binding:"required,gt=0"`
}

// NewRouter builds the Gin engine for the fleet health and admin surface.
func NewRouter(agg *health.Aggregator, cl *client.Client) *gin.Engine {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health/fleet", fleetHealth(agg))
	engine.GET("/version", versionInfo())

	admin := engine.Group("/admin")
	admin.GET("/circuits", circuitStatus(cl))
	admin.POST("/circuits/:dependency/reset", resetCircuit(cl))
	admin.POST("/caches/clear", clearCaches(agg))
	admin.PUT("/caches/ttl", setCacheTTL(agg))

	return engine
}

// fleetHealth serves the aggregate snapshot. The cache defaults to on;
// an unhealthy fleet is reported with 503 so load balancers can key
// off the status code alone.
func fleetHealth(agg *health.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		useCache := parseBool(c.Query("cache"), true)
		includeMetrics := parseBool(c.Query("metrics"), false)

		snap := agg.FleetHealth(c.Request.Context(), health.FleetOptions{
			UseCache:       useCache,
			IncludeMetrics: includeMetrics,
		})

		status := http.StatusOK
		if snap.OverallStatus == health.StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, snap)
	}
}

func circuitStatus(cl *client.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, cl.Status())
	}
}

func resetCircuit(cl *client.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		dependency := c.Param("dependency")

		known := false
		for _, name := range cl.Dependencies() {
			if name == dependency {
				known = true
				break
			}
		}
		if !known {
			c.JSON(http.StatusNotFound, errorResponse{Error: "unknown dependency: " + dependency})
			return
		}

		cl.ResetCircuit(dependency)
		c.Status(http.StatusNoContent)
	}
}

func clearCaches(agg *health.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		agg.ClearCaches()
		c.Status(http.StatusNoContent)
	}
}

func setCacheTTL(agg *health.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ttlRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		ttl := time.Duration(req.TTLMs) * time.Millisecond
		switch req.Target {
		case "snapshot":
			agg.SetSnapshotTTL(ttl)
		case "status":
			agg.SetStatusTTL(ttl)
		}
		c.Status(http.StatusNoContent)
	}
}

func versionInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		v := version.GetVersionInfo()
		c.JSON(http.StatusOK, gin.H{
			"version":    v.Version,
			"git_commit": v.GitCommit,
			"build_time": v.BuildTime,
			"go_version": v.GoVersion,
		})
	}
}

func parseBool(raw string, fallback bool) bool {
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}
