// Package logging provides structured logging for ssdpscan.
//
// This package wraps a global zap logger with convenience functions. Logging
// is silent by default so that CLI output stays clean; set SSDPSCAN_LOG_LEVEL
// (or pass --log-level) to enable it.
//
// # Log Levels
//
//   - Debug: datagram dumps, window open/close, dropped or unparseable responses
//   - Info: discovery summaries
//   - Warn: responses skipped because they could not be parsed
//   - Error: fatal transport failures
//
// # Structured Logging
//
//	logging.Info("Discovery complete",
//	    zap.String("search_target", "upnp:rootdevice"),
//	    zap.Int("devices", 3),
//	)
//
// # Datagram Logging
//
//	logging.LogDatagram("sent", "239.255.255.250:1900", payload)
//	logging.LogDatagram("received", addr.String(), data)
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Logs are written to stderr in console format.
package logging
