// Package logging provides structured logging for the WiFi portal manager.
//
// This package wraps a package-global zap logger with convenience functions
// and a handful of domain helpers for the events every deployment wants to
// see: connection attempts, portal lifecycle changes, HTTP requests and
// captive DNS answers.
//
// # Log Levels
//
//   - Debug: per-request and per-query detail (HTTP requests, DNS answers)
//   - Info: connection results, portal start/stop, parameter updates
//   - Warn: failed connections, rejected parameter values, degraded storage
//   - Error: listener failures
//
// # Configuration
//
// Logging is silent unless a level is passed to Initialize or set through
// the WIFIPORTAL_LOG_LEVEL environment variable:
//
//	if err := logging.Initialize(""); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Components that hold their own *zap.Logger take one from Named so their
// output carries a component name:
//
//	log := logging.Named("captivedns")
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
