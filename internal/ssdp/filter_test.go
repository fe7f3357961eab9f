package ssdp

import (
	"errors"
	"net"
	"testing"
	"time"
)

// sliceStream is a ResponseStream over canned datagrams
type sliceStream struct {
	responses []RawResponse
	err       error // returned by Err once the slice is exhausted
	pos       int
	nextCalls int
	closed    bool
}

func newSliceStream(payloads ...string) *sliceStream {
	s := &sliceStream{}
	for i, p := range payloads {
		s.responses = append(s.responses, RawResponse{
			Payload:    []byte(p),
			Addr:       &net.UDPAddr{IP: net.IPv4(192, 168, 1, byte(10+i)), Port: 1900},
			ReceivedAt: time.Now(),
		})
	}
	return s
}

func (s *sliceStream) Next() bool {
	s.nextCalls++
	if s.closed || s.pos >= len(s.responses) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceStream) Response() RawResponse {
	return s.responses[s.pos-1]
}

func (s *sliceStream) Err() error {
	if s.pos >= len(s.responses) {
		return s.err
	}
	return nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

func ssdpResponse(st, usn, location string) string {
	return "HTTP/1.1 200 OK\r\n" +
		"CACHE-CONTROL: max-age=1800\r\n" +
		"EXT:\r\n" +
		"LOCATION: " + location + "\r\n" +
		"SERVER: Linux/5.10 UPnP/1.0 test/1.0\r\n" +
		"ST: " + st + "\r\n" +
		"USN: " + usn + "\r\n" +
		"\r\n"
}

var (
	rootResponse     = ssdpResponse("upnp:rootdevice", "uuid:aaaa-1111::upnp:rootdevice", "http://192.168.1.10:49152/desc.xml")
	rendererResponse = ssdpResponse("urn:schemas-upnp-org:device:MediaRenderer:1", "uuid:bbbb-2222::urn:schemas-upnp-org:device:MediaRenderer:1", "http://192.168.1.11:8080/dmr.xml")
	// incidentalResponse mentions upnp:rootdevice only inside its LOCATION path
	incidentalResponse = ssdpResponse("urn:schemas-upnp-org:service:ContentDirectory:1", "uuid:cccc-3333::urn:schemas-upnp-org:service:ContentDirectory:1", "http://192.168.1.12/upnp:rootdevice/desc.xml")
)

func TestCollect_AllMatchesWithoutTarget(t *testing.T) {
	stream := newSliceStream(rootResponse, rendererResponse, incidentalResponse)
	c := &Collector{}

	devices, err := c.Collect(stream, "")
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("Collect() returned %d devices, want 3", len(devices))
	}
}

func TestCollect_FiltersAndKeepsArrivalOrder(t *testing.T) {
	stream := newSliceStream(rendererResponse, rootResponse, rendererResponse, rootResponse)
	c := &Collector{}

	devices, err := c.Collect(stream, "MediaRenderer")
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("Collect() returned %d devices, want 2", len(devices))
	}
	wantIPs := []string{"192.168.1.10", "192.168.1.12"}
	for i, device := range devices {
		if device.IP != wantIPs[i] {
			t.Errorf("devices[%d].IP = %v, want %v", i, device.IP, wantIPs[i])
		}
	}
}

func TestCollect_NoMatchesIsEmptyNotNil(t *testing.T) {
	stream := newSliceStream(rendererResponse)
	c := &Collector{}

	devices, err := c.Collect(stream, "InternetGatewayDevice")
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if devices == nil || len(devices) != 0 {
		t.Errorf("Collect() = %v, want empty slice", devices)
	}
}

func TestCollect_LooseSubstringMatch(t *testing.T) {
	// Both responses contain the target text; only the first carries it in ST.
	stream := newSliceStream(rootResponse, incidentalResponse)
	c := &Collector{Match: MatchSubstring}

	devices, err := c.Collect(stream, "upnp:rootdevice")
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("Collect() returned %d devices, want 2 (incidental substring counts as a match)", len(devices))
	}
	if devices[1].ServiceType != "urn:schemas-upnp-org:service:ContentDirectory:1" {
		t.Errorf("devices[1].ServiceType = %v, want the incidental ContentDirectory response", devices[1].ServiceType)
	}
}

func TestCollect_HeaderMatch(t *testing.T) {
	stream := newSliceStream(rootResponse, incidentalResponse)
	c := &Collector{Match: MatchSearchTargetHeader}

	devices, err := c.Collect(stream, "upnp:rootdevice")
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("Collect() returned %d devices, want 1", len(devices))
	}
	if devices[0].ServiceType != "upnp:rootdevice" {
		t.Errorf("devices[0].ServiceType = %v, want upnp:rootdevice", devices[0].ServiceType)
	}
}

func TestCollect_SkipsUnparseable(t *testing.T) {
	stream := newSliceStream("garbage upnp:rootdevice", rootResponse)
	c := &Collector{OnParseError: SkipInvalid}

	devices, err := c.Collect(stream, "upnp:rootdevice")
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("Collect() returned %d devices, want 1", len(devices))
	}
}

func TestCollect_AbortsOnUnparseable(t *testing.T) {
	stream := newSliceStream(rootResponse, "garbage upnp:rootdevice", rootResponse)
	c := &Collector{OnParseError: AbortOnInvalid}

	devices, err := c.Collect(stream, "upnp:rootdevice")
	if err == nil {
		t.Fatal("Collect() error = nil, want parse error")
	}
	if !IsParseError(err) {
		t.Errorf("Collect() error = %v, want parse error", err)
	}
	if devices != nil {
		t.Errorf("Collect() devices = %v, want nil", devices)
	}
}

func TestCollect_TransportErrorIsFatal(t *testing.T) {
	stream := newSliceStream(rootResponse)
	stream.err = NewReceiveError("0.0.0.0:1901", errors.New("socket closed"))
	c := &Collector{}

	devices, err := c.Collect(stream, "")
	if err == nil {
		t.Fatal("Collect() error = nil, want receive error")
	}
	if devices != nil {
		t.Errorf("Collect() devices = %v, want nil", devices)
	}
}

func TestCollect_CustomParser(t *testing.T) {
	stream := newSliceStream("one", "two")
	var seen []string
	c := &Collector{
		Parse: func(payload []byte, addr net.Addr) (*Device, error) {
			seen = append(seen, string(payload))
			return &Device{Addr: addr.String()}, nil
		},
	}

	devices, err := c.Collect(stream, "")
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(devices) != 2 || len(seen) != 2 || seen[0] != "one" || seen[1] != "two" {
		t.Errorf("custom parser saw %v, devices %d", seen, len(devices))
	}
	if devices[0].Addr != "192.168.1.10:1900" {
		t.Errorf("devices[0].Addr = %v, want sender address", devices[0].Addr)
	}
}

func TestCollectFirst_ReturnsEarliestMatch(t *testing.T) {
	stream := newSliceStream(rendererResponse, rootResponse, incidentalResponse, rootResponse)
	c := &Collector{}

	device, err := c.CollectFirst(stream, "upnp:rootdevice")
	if err != nil {
		t.Fatalf("CollectFirst() error = %v", err)
	}
	if device == nil {
		t.Fatal("CollectFirst() = nil, want device")
	}
	if device.IP != "192.168.1.11" {
		t.Errorf("device.IP = %v, want 192.168.1.11 (first matching arrival)", device.IP)
	}
	if stream.nextCalls != 2 {
		t.Errorf("CollectFirst() called Next %d times, want 2 (stop at first match)", stream.nextCalls)
	}
}

func TestCollectFirst_OrderDecidesWinner(t *testing.T) {
	orders := [][]string{
		{rootResponse, incidentalResponse},
		{incidentalResponse, rootResponse},
	}
	wantUSN := []string{
		"uuid:aaaa-1111::upnp:rootdevice",
		"uuid:cccc-3333::urn:schemas-upnp-org:service:ContentDirectory:1",
	}

	for i, order := range orders {
		device, err := (&Collector{}).CollectFirst(newSliceStream(order...), "upnp:rootdevice")
		if err != nil {
			t.Fatalf("CollectFirst() error = %v", err)
		}
		if device == nil || device.USN != wantUSN[i] {
			t.Errorf("order %d: CollectFirst() = %v, want USN %v", i, device, wantUSN[i])
		}
	}
}

func TestCollectFirst_NoMatchIsNil(t *testing.T) {
	stream := newSliceStream(rendererResponse, rendererResponse)

	device, err := (&Collector{}).CollectFirst(stream, "InternetGatewayDevice")
	if err != nil {
		t.Fatalf("CollectFirst() error = %v, want nil", err)
	}
	if device != nil {
		t.Errorf("CollectFirst() = %v, want nil", device)
	}
}

func TestCollectFirst_EmptyWindow(t *testing.T) {
	device, err := (&Collector{}).CollectFirst(newSliceStream(), "")
	if err != nil || device != nil {
		t.Errorf("CollectFirst() = %v, %v, want nil, nil", device, err)
	}
}

func TestCollectFirst_SkipsUnparseableMatch(t *testing.T) {
	stream := newSliceStream("junk upnp:rootdevice", rootResponse)

	device, err := (&Collector{}).CollectFirst(stream, "upnp:rootdevice")
	if err != nil {
		t.Fatalf("CollectFirst() error = %v", err)
	}
	if device == nil || device.ServiceType != "upnp:rootdevice" {
		t.Errorf("CollectFirst() = %v, want the parseable root device", device)
	}
}

func TestMatchSubstring(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		target  string
		want    bool
	}{
		{"empty target", "anything", "", true},
		{"target in ST", rootResponse, "upnp:rootdevice", true},
		{"target elsewhere", incidentalResponse, "upnp:rootdevice", true},
		{"case sensitive", rootResponse, "UPNP:ROOTDEVICE", false},
		{"absent", rendererResponse, "InternetGatewayDevice", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchSubstring([]byte(tt.payload), tt.target); got != tt.want {
				t.Errorf("MatchSubstring() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchSearchTargetHeader(t *testing.T) {
	notify := "NOTIFY * HTTP/1.1\nHOST: 239.255.255.250:1900\nNT: upnp:rootdevice\nNTS: ssdp:alive\n\n"

	tests := []struct {
		name    string
		payload string
		target  string
		want    bool
	}{
		{"empty target", "anything", "", true},
		{"ssdp:all", rendererResponse, SearchAll, true},
		{"exact ST", rootResponse, "upnp:rootdevice", true},
		{"substring only", incidentalResponse, "upnp:rootdevice", false},
		{"NT header", notify, "upnp:rootdevice", true},
		{"lowercase key", "HTTP/1.1 200 OK\nst: upnp:rootdevice\n\n", "upnp:rootdevice", true},
		{"partial value", rendererResponse, "MediaRenderer", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchSearchTargetHeader([]byte(tt.payload), tt.target); got != tt.want {
				t.Errorf("MatchSearchTargetHeader() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchPolicyByName(t *testing.T) {
	for _, name := range []string{"", "substring", "SUBSTRING", "header"} {
		if _, err := MatchPolicyByName(name); err != nil {
			t.Errorf("MatchPolicyByName(%q) error = %v", name, err)
		}
	}
	if _, err := MatchPolicyByName("regex"); !IsValidationError(err) {
		t.Errorf("MatchPolicyByName(\"regex\") error = %v, want validation error", err)
	}
}

func TestParseErrorPolicyByName(t *testing.T) {
	tests := []struct {
		name    string
		want    ParseErrorPolicy
		wantErr bool
	}{
		{"", SkipInvalid, false},
		{"skip", SkipInvalid, false},
		{"abort", AbortOnInvalid, false},
		{"Abort", AbortOnInvalid, false},
		{"ignore", SkipInvalid, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseErrorPolicyByName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseErrorPolicyByName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseErrorPolicyByName(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}

	if SkipInvalid.String() != "skip" || AbortOnInvalid.String() != "abort" {
		t.Errorf("ParseErrorPolicy.String() = %q/%q, want skip/abort", SkipInvalid, AbortOnInvalid)
	}
}
