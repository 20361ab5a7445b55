// Package httpapi exposes the fleet health and administrative surface
// over HTTP using Gin.
//
// Routes:
//
//	GET  /health/fleet                       fleet snapshot (cache=, metrics= query params)
//	GET  /admin/circuits                     breaker status per dependency
//	POST /admin/circuits/:dependency/reset   force a breaker closed
//	POST /admin/caches/clear                 drop both aggregator caches
//	PUT  /admin/caches/ttl                   change a cache TTL
//	GET  /version                            build information
package httpapi
