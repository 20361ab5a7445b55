// Package config provides configuration loading and validation for the
// fleetkit service.
//
// Configuration is layered: a config.yml file forms the base, environment
// variables override file values, and a .env file can supply environment
// variables for local development. The top-level Config struct carries the
// logging, client, and health sections and delegates defaulting and
// validation to each.
//
// # Usage
//
//	cfg, err := config.Load()
//
// Environment variables map onto nested keys by lowercasing and splitting on
// underscores (e.g. CLIENT_TIMEOUT -> client.timeout).
package config
