// Package config provides 12-factor configuration for the display gate.
//
// Configuration is loaded from environment variables with defaults.
// CLI flags in cmd/bubblegate override a subset for local runs.
//
// Configuration Sections:
//   - Server: control API listen address
//   - Endpoint: config and attribution endpoints, fetch timeout
//   - App: bundle id, OS name, locale, firebase project attached to requests
//   - Timing: organic check delay, permission prompt interval, deep link delay
//   - Browsing: redirect limit, surface redirect cap, user agent, viewport
//   - Connectivity: probe address and interval
//   - Store: SQLite path (empty for in-memory)
//   - Logging, RateLimit
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	resolver := remoteconfig.New(httpClient, cfg.Endpoint, logger)
package config
