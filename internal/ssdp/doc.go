// Package ssdp discovers UPnP devices with SSDP (Simple Service Discovery Protocol).
//
// A discovery sends a single M-SEARCH request to the SSDP multicast group
// (239.255.255.250:1900) and collects the unicast responses that arrive on the
// local port before a receive attempt times out.
//
// # Discovery Process
//
//  1. BuildQuery builds the M-SEARCH payload (ST header, and MX when the window allows it)
//  2. The Transport binds a local UDP port and sends the payload once
//  3. The returned ResponseStream yields datagrams until a receive times out
//  4. The Collector keeps responses that match the search target and parses them
//  5. DiscoverAll returns every match in arrival order; DiscoverOne returns the first
//
// # Usage Example
//
//	devices, err := ssdp.DiscoverAll(3*time.Second, "upnp:rootdevice")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, device := range devices {
//	    fmt.Printf("Found: %s at %s\n", device.ServiceType, device.Location)
//	}
//
//	device, err := ssdp.DiscoverOne(3*time.Second, "urn:schemas-upnp-org:device:MediaRenderer:1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if device == nil {
//	    fmt.Println("No renderer answered")
//	}
//
// # Matching
//
// By default a response matches when the search target occurs anywhere in its
// text (MatchSubstring). MatchSearchTargetHeader compares the ST/NT header
// exactly instead.
//
// # Errors
//
// The end of the search window is not an error. Failures to resolve, bind,
// send or receive are returned as *DiscoveryError and are never retried.
// Responses that cannot be parsed are skipped unless the client uses
// AbortOnInvalid.
//
// # Concurrency
//
// DiscoverAll and DiscoverOne use different fixed local ports (1901 and 1902),
// so one call of each mode can run at the same time. A second concurrent call
// of the same mode fails with a bind error.
//
// # Network Requirements
//
//   - Requires multicast support on the outgoing network interface
//   - Devices must be on the same local network segment
//   - Firewall must allow inbound UDP on the local ports
package ssdp
