// Package logging provides structured logging for devicemgr.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the CLI and its adapters.
//
// # Features
//
//   - JSON output (machine-parsable) or text output (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stderr"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("registry loaded", "file", path, "devices", reg.Count())
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
