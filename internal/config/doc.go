// Package config provides user configuration management for ssdpscan.
//
// This package manages a YAML-based configuration file that stores search
// defaults (timeout, local ports, multicast settings, match and parse-error
// policies), output preferences, and short aliases for search targets.
// Discovered devices are never written to the file.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/ssdpscan/config.yaml or $HOME/.config/ssdpscan/config.yaml
//   - macOS: $HOME/.config/ssdpscan/config.yaml
//   - Windows: %LOCALAPPDATA%\ssdpscan\config.yaml
//
// # Usage Example
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := cfg.NewClient()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	devices, err := client.DiscoverAll(cfg.Timeout(), cfg.ResolveSearchTarget("igd"))
//
// # Thread Safety
//
// The global configuration uses sync.Once for safe initialization across
// goroutines. File writes are protected by a mutex and are atomic.
package config
