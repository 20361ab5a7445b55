// Package logger provides structured logging for fleetkit components
// using zerolog.
//
// It supports JSON and console output, log level configuration, and
// component-scoped loggers with structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.WithComponent("breaker")
//	log.Warn("circuit opened", logger.Fields("dependency", "auth-service"))
package logger
