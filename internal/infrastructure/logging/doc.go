// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: colored console output
//
// Each subsystem gets a named child logger so log lines carry a "component"
// field (phase, remoteconfig, session, browser, connectivity, server).
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	log := logger.Component("phase")
//	log.Info("phase changed", zap.String("to", "WebDisplay"))
package logging
