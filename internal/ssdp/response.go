package ssdp

import (
	"net"
	"time"
)

// RawResponse is a single datagram received during a search window.
// Payload is owned by the response; it is never reused by the transport.
type RawResponse struct {
	Payload    []byte
	Addr       *net.UDPAddr
	ReceivedAt time.Time
}

// Text returns the payload decoded as text
func (r RawResponse) Text() string {
	return string(r.Payload)
}

// Source returns the sender address as a string, or "" if unknown
func (r RawResponse) Source() string {
	if r.Addr == nil {
		return ""
	}
	return r.Addr.String()
}
