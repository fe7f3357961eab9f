package ssdp

import (
	"strconv"
	"strings"
	"time"
)

const (
	// MulticastAddress is the SSDP multicast group and port
	MulticastAddress = "239.255.255.250:1900"

	// SearchAll is the search target that matches every device type
	SearchAll = "ssdp:all"

	// discoverMethod is the mandatory MAN header value for M-SEARCH
	discoverMethod = "ssdp:discover"

	// minMaxWaitMillis is the shortest window for which an MX header is sent
	minMaxWaitMillis = 1100

	// responseSlackMillis is held back from the window when computing MX so
	// that the advertised wait never exceeds the client-side timeout
	responseSlackMillis = 100
)

// MaxWaitSeconds returns the MX value advertised for a search window of the
// given length. The second result is false when the window is too short to
// carry an MX header at all.
func MaxWaitSeconds(timeout time.Duration) (int, bool) {
	ms := timeout.Milliseconds()
	if ms < minMaxWaitMillis {
		return 0, false
	}
	return int((ms - responseSlackMillis) / 1000), true
}

// BuildQuery builds the M-SEARCH request payload. An empty searchTarget
// searches for all devices (ssdp:all).
//
// Header lines are LF terminated and the request ends with a CRLF blank line.
func BuildQuery(searchTarget string, timeout time.Duration) []byte {
	if searchTarget == "" {
		searchTarget = SearchAll
	}

	var b strings.Builder
	b.WriteString("M-SEARCH * HTTP/1.1\n")
	b.WriteString("Host: " + MulticastAddress + "\n")
	b.WriteString("MAN: " + discoverMethod + "\n")
	b.WriteString("ST: " + searchTarget + "\n")
	if mx, ok := MaxWaitSeconds(timeout); ok {
		b.WriteString("MX: " + strconv.Itoa(mx) + "\n")
	}
	b.WriteString("\r\n")

	return []byte(b.String())
}
