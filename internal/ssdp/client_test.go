package ssdp

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/muurk/ssdpscan/internal/logging"
)

// fakeTransport replays canned datagrams for every search
type fakeTransport struct {
	payloads []string
	err      error
	requests []SearchRequest
	streams  []*sliceStream
}

func (f *fakeTransport) Search(ctx context.Context, req SearchRequest) (ResponseStream, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	s := newSliceStream(f.payloads...)
	f.streams = append(f.streams, s)
	return s, nil
}

func newTestClient(transport Transport) *Client {
	c := NewClient()
	c.Transport = transport
	return c
}

func TestNewClient(t *testing.T) {
	c := NewClient()

	if c == nil {
		t.Fatal("NewClient() = nil, want client")
	}
	if c.AllPort != DefaultAllPort {
		t.Errorf("AllPort = %v, want %v", c.AllPort, DefaultAllPort)
	}
	if c.OnePort != DefaultOnePort {
		t.Errorf("OnePort = %v, want %v", c.OnePort, DefaultOnePort)
	}
	if c.OnParseError != SkipInvalid {
		t.Errorf("OnParseError = %v, want %v", c.OnParseError, SkipInvalid)
	}
	if _, ok := c.Transport.(*UDPTransport); !ok {
		t.Errorf("Transport = %T, want *UDPTransport", c.Transport)
	}
}

func TestClient_ModesUseTheirOwnPorts(t *testing.T) {
	transport := &fakeTransport{}
	c := newTestClient(transport)

	if _, err := c.DiscoverAll(time.Second, ""); err != nil {
		t.Fatalf("DiscoverAll() error = %v", err)
	}
	if _, err := c.DiscoverOne(time.Second, ""); err != nil {
		t.Fatalf("DiscoverOne() error = %v", err)
	}

	if len(transport.requests) != 2 {
		t.Fatalf("transport saw %d searches, want 2", len(transport.requests))
	}
	if transport.requests[0].LocalPort != DefaultAllPort {
		t.Errorf("DiscoverAll port = %d, want %d", transport.requests[0].LocalPort, DefaultAllPort)
	}
	if transport.requests[1].LocalPort != DefaultOnePort {
		t.Errorf("DiscoverOne port = %d, want %d", transport.requests[1].LocalPort, DefaultOnePort)
	}
}

func TestClient_RequestCarriesQueryAndTimeout(t *testing.T) {
	transport := &fakeTransport{}
	c := newTestClient(transport)
	c.AllPort = 0

	if _, err := c.DiscoverAll(2500*time.Millisecond, "urn:schemas-upnp-org:device:MediaServer:1"); err != nil {
		t.Fatalf("DiscoverAll() error = %v", err)
	}

	req := transport.requests[0]
	if req.Timeout != 2500*time.Millisecond {
		t.Errorf("req.Timeout = %v, want 2.5s", req.Timeout)
	}
	if req.LocalPort != 0 {
		t.Errorf("req.LocalPort = %d, want 0", req.LocalPort)
	}
	want := string(BuildQuery("urn:schemas-upnp-org:device:MediaServer:1", 2500*time.Millisecond))
	if string(req.Payload) != want {
		t.Errorf("req.Payload = %q, want %q", req.Payload, want)
	}
}

func TestClient_EndToEndScenario(t *testing.T) {
	transport := &fakeTransport{
		payloads: []string{rendererResponse, rootResponse, incidentalResponse},
	}
	c := newTestClient(transport)
	timeout := 3000 * time.Millisecond

	query := string(BuildQuery("upnp:rootdevice", timeout))
	if !strings.Contains(query, "ST: upnp:rootdevice\n") || !strings.Contains(query, "MX: 2\n") {
		t.Fatalf("query = %q, want ST: upnp:rootdevice and MX: 2", query)
	}

	devices, err := c.DiscoverAll(timeout, "upnp:rootdevice")
	if err != nil {
		t.Fatalf("DiscoverAll() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("DiscoverAll() returned %d devices, want 2", len(devices))
	}

	device, err := c.DiscoverOne(timeout, "upnp:rootdevice")
	if err != nil {
		t.Fatalf("DiscoverOne() error = %v", err)
	}
	if device == nil {
		t.Fatal("DiscoverOne() = nil, want device")
	}
	if device.USN != devices[0].USN || device.IP != devices[0].IP {
		t.Errorf("DiscoverOne() = %v, want first DiscoverAll result %v", device, devices[0])
	}

	for i, s := range transport.streams {
		if !s.closed {
			t.Errorf("stream %d was not closed", i)
		}
	}
}

func TestClient_DiscoverOneNothingFound(t *testing.T) {
	transport := &fakeTransport{payloads: []string{rendererResponse}}
	c := newTestClient(transport)

	device, err := c.DiscoverOne(time.Second, "InternetGatewayDevice")
	if err != nil {
		t.Fatalf("DiscoverOne() error = %v, want nil", err)
	}
	if device != nil {
		t.Errorf("DiscoverOne() = %v, want nil", device)
	}
}

func TestClient_TransportErrorPropagates(t *testing.T) {
	bindErr := NewBindError(":1901", errors.New("address already in use"))
	c := newTestClient(&fakeTransport{err: bindErr})

	if _, err := c.DiscoverAll(time.Second, ""); !errors.Is(err, bindErr) {
		t.Errorf("DiscoverAll() error = %v, want %v", err, bindErr)
	}
	if _, err := c.DiscoverOne(time.Second, ""); !errors.Is(err, bindErr) {
		t.Errorf("DiscoverOne() error = %v, want %v", err, bindErr)
	}
}

func TestClient_Validation(t *testing.T) {
	transport := &fakeTransport{}
	c := newTestClient(transport)

	if _, err := c.DiscoverAll(-time.Second, ""); !IsValidationError(err) {
		t.Errorf("DiscoverAll(-1s) error = %v, want validation error", err)
	}

	c.OnePort = 70000
	if _, err := c.DiscoverOne(time.Second, ""); !IsValidationError(err) {
		t.Errorf("DiscoverOne() with port 70000 error = %v, want validation error", err)
	}

	if len(transport.requests) != 0 {
		t.Errorf("transport saw %d searches, want 0", len(transport.requests))
	}
}

func TestClient_StrictParse(t *testing.T) {
	transport := &fakeTransport{payloads: []string{"junk", rootResponse}}
	c := newTestClient(transport)
	c.OnParseError = AbortOnInvalid

	_, err := c.DiscoverAll(time.Second, "")
	if !IsParseError(err) {
		t.Errorf("DiscoverAll() error = %v, want parse error", err)
	}
}

func TestClient_ZeroValueUsesDefaults(t *testing.T) {
	r := startResponder(t, []byte(rootResponse))
	c := &Client{Transport: loopbackTransport(r)}

	devices, err := c.DiscoverAll(200*time.Millisecond, "")
	if err != nil {
		t.Fatalf("DiscoverAll() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("DiscoverAll() returned %d devices, want 1", len(devices))
	}
	if devices[0].IP != "127.0.0.1" {
		t.Errorf("devices[0].IP = %v, want 127.0.0.1", devices[0].IP)
	}
}

func TestClient_LogsResponseCount(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logging.SetLogger(zap.New(core))
	defer logging.SetLogger(nil)

	r := startResponder(t, []byte(rootResponse), []byte(rendererResponse))
	c := &Client{Transport: loopbackTransport(r)}

	if _, err := c.DiscoverAll(200*time.Millisecond, "upnp:rootdevice"); err != nil {
		t.Fatalf("DiscoverAll() error = %v", err)
	}

	entries := logs.FilterMessage("Discovery complete").All()
	if len(entries) != 1 {
		t.Fatalf("got %d completion entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["responses"] != int64(2) || fields["devices"] != int64(1) {
		t.Errorf("completion fields = %v, want responses=2 devices=1", fields)
	}
}

func TestClient_LoopbackDiscoverOne(t *testing.T) {
	r := startResponder(t, []byte(rendererResponse), []byte(rootResponse), []byte(rootResponse))
	c := &Client{Transport: loopbackTransport(r)}

	start := time.Now()
	device, err := c.DiscoverOne(2*time.Second, "upnp:rootdevice")
	if err != nil {
		t.Fatalf("DiscoverOne() error = %v", err)
	}
	if device == nil || device.ServiceType != "upnp:rootdevice" {
		t.Fatalf("DiscoverOne() = %v, want root device", device)
	}
	// First match ends the window without waiting for the timeout
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("DiscoverOne() took %v, want early return on first match", elapsed)
	}
}

func TestClient_ConcurrentModes(t *testing.T) {
	r := startResponder(t)
	transport := loopbackTransport(r)

	// Find two free ports to stand in for the fixed per-mode ports
	ports := make([]int, 2)
	for i := range ports {
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
		if err != nil {
			t.Fatalf("failed to reserve port: %v", err)
		}
		ports[i] = conn.LocalAddr().(*net.UDPAddr).Port
		conn.Close()
	}

	c := &Client{Transport: transport, AllPort: ports[0], OnePort: ports[1]}

	type result struct {
		err error
	}
	results := make(chan result, 3)
	go func() {
		_, err := c.DiscoverAll(300*time.Millisecond, "")
		results <- result{err}
	}()
	go func() {
		_, err := c.DiscoverOne(300*time.Millisecond, "")
		results <- result{err}
	}()

	// Give both windows time to bind, then collide with the all-mode port
	time.Sleep(50 * time.Millisecond)
	go func() {
		_, err := c.DiscoverAll(300*time.Millisecond, "")
		results <- result{err}
	}()

	var ok, inUse int
	for i := 0; i < 3; i++ {
		res := <-results
		switch {
		case res.err == nil:
			ok++
		case IsAddressInUse(res.err):
			inUse++
		default:
			t.Errorf("unexpected error: %v", res.err)
		}
	}
	if ok != 2 || inUse != 1 {
		t.Errorf("got %d successful and %d address-in-use results, want 2 and 1", ok, inUse)
	}
}
