// Package ui provides terminal output components for the ssdp-scan CLI.
//
// Components follow a "run once and exit" pattern: they render discovery
// results with Lipgloss and write them to stdout, while the only animated
// element, the searching spinner, runs as a short-lived Bubble Tea program
// on stderr and disappears once the search window closes.
//
// # Components
//
//   - Header: banner showing the command and effective search parameters
//   - RenderDevices: device cards (detailed) or one line per device (compact)
//   - MarshalDevicesJSON: machine-readable output for --format json
//   - Result: success, warning and failure boxes with troubleshooting tips
//   - RunWithSpinner: spinner with elapsed time while a search is open
//
// # Logging Integration
//
// Logging is controlled via the SSDPSCAN_LOG_LEVEL environment variable or
// --log-level. When unset, zap logging is silent so that the rendered output
// is displayed cleanly.
package ui
