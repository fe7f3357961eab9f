package ssdp

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ssdpscan/internal/logging"
)

const (
	// DefaultAllPort is the local port used by DiscoverAll
	DefaultAllPort = 1901

	// DefaultOnePort is the local port used by DiscoverOne
	DefaultOnePort = 1902

	// DefaultTimeout is the default search window
	DefaultTimeout = 3 * time.Second
)

// Client runs SSDP searches.
//
// Each mode binds its own fixed local port, so at most one DiscoverAll and
// one DiscoverOne can be in flight at a time; a second concurrent call of the
// same mode fails with a bind error (see IsAddressInUse). Set a port to 0 to
// let the OS choose and lift that limit.
type Client struct {
	// Transport opens search windows (default: NewUDPTransport())
	Transport Transport

	// AllPort is the local port for DiscoverAll
	AllPort int

	// OnePort is the local port for DiscoverOne
	OnePort int

	// Match selects responses (default: MatchSubstring)
	Match MatchPolicy

	// Parse turns a response into a Device (default: ParseResponse)
	Parse ParseFunc

	// OnParseError selects skip-or-abort behavior for unparseable responses
	OnParseError ParseErrorPolicy
}

// NewClient creates a client with the default ports and policies
func NewClient() *Client {
	return &Client{
		Transport:    NewUDPTransport(),
		AllPort:      DefaultAllPort,
		OnePort:      DefaultOnePort,
		Match:        MatchSubstring,
		Parse:        ParseResponse,
		OnParseError: SkipInvalid,
	}
}

// DiscoverAll returns every device matching searchTarget that answers within
// the timeout, in arrival order. An empty searchTarget discovers all devices.
func (c *Client) DiscoverAll(timeout time.Duration, searchTarget string) ([]*Device, error) {
	return c.DiscoverAllWithContext(context.Background(), timeout, searchTarget)
}

// DiscoverAllWithContext is DiscoverAll with a context that can end the window early
func (c *Client) DiscoverAllWithContext(ctx context.Context, timeout time.Duration, searchTarget string) ([]*Device, error) {
	stream, err := c.open(ctx, c.AllPort, timeout, searchTarget)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	devices, err := c.collector().Collect(stream, searchTarget)
	if err != nil {
		return nil, fmt.Errorf("discovery failed: %w", err)
	}

	logging.Info("Discovery complete",
		zap.String("mode", "all"),
		zap.String("search_target", displayTarget(searchTarget)),
		zap.Int("responses", responsesReceived(stream)),
		zap.Int("devices", len(devices)),
	)
	return devices, nil
}

// DiscoverOne returns the first device matching searchTarget, or nil if none
// answered within the timeout. Finding nothing is not an error.
func (c *Client) DiscoverOne(timeout time.Duration, searchTarget string) (*Device, error) {
	return c.DiscoverOneWithContext(context.Background(), timeout, searchTarget)
}

// DiscoverOneWithContext is DiscoverOne with a context that can end the window early
func (c *Client) DiscoverOneWithContext(ctx context.Context, timeout time.Duration, searchTarget string) (*Device, error) {
	stream, err := c.open(ctx, c.OnePort, timeout, searchTarget)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	device, err := c.collector().CollectFirst(stream, searchTarget)
	if err != nil {
		return nil, fmt.Errorf("discovery failed: %w", err)
	}

	logging.Info("Discovery complete",
		zap.String("mode", "one"),
		zap.String("search_target", displayTarget(searchTarget)),
		zap.Int("responses", responsesReceived(stream)),
		zap.Bool("found", device != nil),
	)
	return device, nil
}

// responsesReceived reports how many datagrams a stream yielded, when the
// stream keeps count
func responsesReceived(stream ResponseStream) int {
	if counter, ok := stream.(interface{ Received() int }); ok {
		return counter.Received()
	}
	return -1
}

func (c *Client) open(ctx context.Context, port int, timeout time.Duration, searchTarget string) (ResponseStream, error) {
	if timeout < 0 {
		return nil, NewValidationError(fmt.Sprintf("timeout must not be negative, got %v", timeout))
	}
	if port < 0 || port > 65535 {
		return nil, NewValidationError(fmt.Sprintf("local port %d out of range", port))
	}

	transport := c.Transport
	if transport == nil {
		transport = NewUDPTransport()
	}

	return transport.Search(ctx, SearchRequest{
		Payload:   BuildQuery(searchTarget, timeout),
		LocalPort: port,
		Timeout:   timeout,
	})
}

func (c *Client) collector() *Collector {
	return &Collector{
		Match:        c.Match,
		Parse:        c.Parse,
		OnParseError: c.OnParseError,
	}
}

func displayTarget(searchTarget string) string {
	if searchTarget == "" {
		return SearchAll
	}
	return searchTarget
}

// DiscoverAll is a convenience function using NewClient()
func DiscoverAll(timeout time.Duration, searchTarget string) ([]*Device, error) {
	return NewClient().DiscoverAll(timeout, searchTarget)
}

// DiscoverOne is a convenience function using NewClient()
func DiscoverOne(timeout time.Duration, searchTarget string) (*Device, error) {
	return NewClient().DiscoverOne(timeout, searchTarget)
}
