package ssdp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Device is a parsed SSDP response. The collector never modifies a Device
// after the parser returns it.
type Device struct {
	// Addr is the sender address of the response (e.g., "192.168.1.1:1900")
	Addr string `json:"addr"`

	// IP is the sender IP address
	IP string `json:"ip"`

	// Location is the URL of the device description document (LOCATION)
	Location string `json:"location,omitempty"`

	// Server is the SERVER header (e.g., "Linux/3.14 UPnP/1.0 MiniUPnPd/2.1")
	Server string `json:"server,omitempty"`

	// ServiceType is the ST header, or NT for NOTIFY messages
	ServiceType string `json:"service_type,omitempty"`

	// USN is the unique service name
	USN string `json:"usn,omitempty"`

	// CacheControl is the raw CACHE-CONTROL header
	CacheControl string `json:"cache_control,omitempty"`

	// Headers holds every header, keyed by canonical MIME name
	Headers map[string]string `json:"headers,omitempty"`

	// ReceivedAt is when the response arrived
	ReceivedAt time.Time `json:"received_at"`
}

// ParseFunc turns one raw datagram into a Device
type ParseFunc func(payload []byte, addr net.Addr) (*Device, error)

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	st := d.ServiceType
	if st == "" {
		st = "unknown type"
	}
	return fmt.Sprintf("SSDP Device %s (%s) at %s", d.UUID(), st, d.IP)
}

// UUID returns the device UUID from the USN, without the "uuid:" prefix
// and without any "::<type>" suffix.
func (d *Device) UUID() string {
	usn := d.USN
	if i := strings.Index(usn, "::"); i >= 0 {
		usn = usn[:i]
	}
	usn = strings.TrimSpace(usn)
	if len(usn) >= 5 && strings.EqualFold(usn[:5], "uuid:") {
		usn = usn[5:]
	}
	return usn
}

// MaxAge returns the max-age directive from CACHE-CONTROL
func (d *Device) MaxAge() (time.Duration, bool) {
	for _, directive := range strings.Split(d.CacheControl, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(directive), "=")
		if !found || !strings.EqualFold(strings.TrimSpace(key), "max-age") {
			continue
		}
		secs, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}

// LocationURL parses the LOCATION header
func (d *Device) LocationURL() (*url.URL, error) {
	if d.Location == "" {
		return nil, errors.New("response has no LOCATION header")
	}
	u, err := url.Parse(d.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid LOCATION %q: %w", d.Location, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("LOCATION %q is not an absolute URL", d.Location)
	}
	return u, nil
}

// GetHeader retrieves a header value by name (case-insensitive), or returns
// empty string if not found
func (d *Device) GetHeader(key string) string {
	if d.Headers == nil {
		return ""
	}
	return d.Headers[textproto.CanonicalMIMEHeaderKey(key)]
}

// ParseResponse parses an HTTP-shaped SSDP message. Both M-SEARCH responses
// ("HTTP/1.1 200 OK") and NOTIFY announcements are accepted, with CRLF or LF
// line endings. A response truncated by the receive buffer keeps the headers
// read before the cut.
func ParseResponse(payload []byte, addr net.Addr) (*Device, error) {
	source := ""
	if ip := hostOf(addr); ip != "" {
		source = addr.String()
	}

	r := textproto.NewReader(bufio.NewReader(bytes.NewReader(payload)))
	startLine, err := r.ReadLine()
	if err != nil {
		return nil, NewParseError(source, "empty response", err)
	}
	if !isStartLine(startLine) {
		return nil, NewParseError(source, fmt.Sprintf("not an SSDP message: %q", truncate(startLine, 40)), nil)
	}

	header, err := r.ReadMIMEHeader()
	if err != nil && !(errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
		return nil, NewParseError(source, "malformed header", err)
	}
	if len(header) == 0 {
		return nil, NewParseError(source, "response has no headers", err)
	}

	device := &Device{
		Addr:         source,
		IP:           hostOf(addr),
		Location:     header.Get("Location"),
		Server:       header.Get("Server"),
		ServiceType:  header.Get("ST"),
		USN:          header.Get("USN"),
		CacheControl: header.Get("Cache-Control"),
		Headers:      make(map[string]string, len(header)),
		ReceivedAt:   time.Now(),
	}
	if device.ServiceType == "" {
		device.ServiceType = header.Get("NT")
	}
	for key, values := range header {
		if len(values) > 0 {
			device.Headers[key] = values[0]
		}
	}

	return device, nil
}

func isStartLine(line string) bool {
	switch {
	case strings.HasPrefix(line, "HTTP/"):
		return true
	case strings.HasPrefix(line, "NOTIFY "):
		return true
	default:
		return false
	}
}

func hostOf(addr net.Addr) string {
	switch a := addr.(type) {
	case nil:
		return ""
	case *net.UDPAddr:
		if a == nil {
			return ""
		}
		return a.IP.String()
	default:
		host, _, err := net.SplitHostPort(a.String())
		if err != nil {
			return a.String()
		}
		return host
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
