// Package logging provides structured logging for the provisioner.
//
// This package wraps a zap logger with convenience functions for the common
// logging patterns of the boot pass and the captive portal. The console
// output doubles as the operator-facing diagnostic channel: every decision
// point (storage mount failure, parse failure, mode chosen, forced restart)
// is written through here.
//
// # Log Levels
//
//   - Debug: Detailed debugging info (HTTP requests, retained memory reads)
//   - Info: Normal operations (state transitions, decisions, portal events)
//   - Warn: Non-fatal issues (missing config, failed writes, join failures)
//   - Error: Failures that change the boot outcome
//
// # Specialized Logging
//
//	logging.LogTransition("DecidingMode", "ConfigPortalSession")
//	logging.LogDecision("Double reset detected")
//	logging.LogStoreOp("load", "/config.json", 112, nil)
//	logging.LogPortalEvent("started", "SwartNinjaNoT1a2b3c")
//
// # Configuration
//
//	if err := logging.Initialize("info"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// An empty level falls back to the PROVISIONER_LOG_LEVEL environment
// variable; when that is unset too, logging is silent.
package logging
