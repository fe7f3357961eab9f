package ssdp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"github.com/muurk/ssdpscan/internal/logging"
)

const (
	// MaxDatagramSize is the receive buffer size. Longer responses are truncated.
	MaxDatagramSize = 1024

	// DefaultMulticastTTL keeps M-SEARCH requests on the local network segment
	DefaultMulticastTTL = 2
)

// SearchRequest describes one search window
type SearchRequest struct {
	// Payload is the M-SEARCH request sent once when the window opens
	Payload []byte

	// LocalPort is the UDP port the window binds to (0 lets the OS choose)
	LocalPort int

	// Timeout is armed before every receive. Zero disables the deadline,
	// leaving the window bounded only by the context.
	Timeout time.Duration
}

// ResponseStream yields the datagrams received during one search window.
//
// It follows the bufio.Scanner idiom: Next returns false once the window is
// over. If Err returns nil at that point the window closed normally (a receive
// attempt timed out); otherwise the stream ended on a fatal socket error or on
// context cancellation. A stream is not restartable.
type ResponseStream interface {
	// Next waits for the next datagram
	Next() bool

	// Response returns the datagram read by the last successful Next
	Response() RawResponse

	// Err returns the error that ended the stream, or nil when the window closed normally
	Err() error

	// Close releases the endpoint. It is safe to call more than once and is
	// required when the caller stops consuming early.
	Close() error
}

// Transport opens search windows
type Transport interface {
	Search(ctx context.Context, req SearchRequest) (ResponseStream, error)
}

// UDPTransport sends M-SEARCH requests over UDP/IPv4
type UDPTransport struct {
	// GroupAddress is the destination of the request (default: MulticastAddress)
	GroupAddress string

	// Interface is the outgoing multicast interface name (empty: OS default)
	Interface string

	// MulticastTTL is the IP TTL for multicast requests (0: DefaultMulticastTTL)
	MulticastTTL int

	// Loopback delivers multicast requests to listeners on this host as well
	Loopback bool
}

// NewUDPTransport creates a transport with default settings
func NewUDPTransport() *UDPTransport {
	return &UDPTransport{
		GroupAddress: MulticastAddress,
		MulticastTTL: DefaultMulticastTTL,
		Loopback:     true,
	}
}

// Search binds the local endpoint, sends the request once and returns the
// window of responses. On any error the endpoint is already closed.
func (t *UDPTransport) Search(ctx context.Context, req SearchRequest) (ResponseStream, error) {
	group := t.GroupAddress
	if group == "" {
		group = MulticastAddress
	}

	dest, err := net.ResolveUDPAddr("udp4", group)
	if err != nil {
		return nil, NewResolveError(group, err)
	}

	local := &net.UDPAddr{Port: req.LocalPort}
	conn, err := net.ListenUDP("udp4", local)
	if err != nil {
		return nil, NewBindError(":"+strconv.Itoa(req.LocalPort), err)
	}

	if dest.IP.IsMulticast() {
		if err := t.configureMulticast(conn); err != nil {
			conn.Close()
			return nil, NewBindError(conn.LocalAddr().String(), err)
		}
	}

	logging.LogDatagram("sent", dest.String(), req.Payload)
	if _, err := conn.WriteToUDP(req.Payload, dest); err != nil {
		conn.Close()
		return nil, NewSendError(dest.String(), err)
	}

	w := newWindow(ctx, conn, req.Timeout)
	logging.LogWindow("opened",
		zap.String("local_addr", w.LocalAddr().String()),
		zap.String("group", dest.String()),
		zap.Duration("timeout", req.Timeout),
	)
	return w, nil
}

// configureMulticast applies TTL, loopback and interface selection
func (t *UDPTransport) configureMulticast(conn *net.UDPConn) error {
	p := ipv4.NewPacketConn(conn)

	ttl := t.MulticastTTL
	if ttl <= 0 {
		ttl = DefaultMulticastTTL
	}
	if err := p.SetMulticastTTL(ttl); err != nil {
		return fmt.Errorf("failed to set multicast TTL: %w", err)
	}
	if err := p.SetMulticastLoopback(t.Loopback); err != nil {
		return fmt.Errorf("failed to set multicast loopback: %w", err)
	}

	if t.Interface != "" {
		ifi, err := net.InterfaceByName(t.Interface)
		if err != nil {
			return fmt.Errorf("unknown interface %q: %w", t.Interface, err)
		}
		if err := p.SetMulticastInterface(ifi); err != nil {
			return fmt.Errorf("failed to select interface %q: %w", t.Interface, err)
		}
	}

	return nil
}

// Window is the ResponseStream of a UDPTransport search
type Window struct {
	ctx     context.Context
	conn    *net.UDPConn
	timeout time.Duration
	buf     []byte

	current  RawResponse
	err      error
	done     bool
	received int

	stop      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newWindow(ctx context.Context, conn *net.UDPConn, timeout time.Duration) *Window {
	w := &Window{
		ctx:     ctx,
		conn:    conn,
		timeout: timeout,
		buf:     make([]byte, MaxDatagramSize),
		stop:    make(chan struct{}),
	}
	if ctx.Done() != nil {
		go w.watch()
	}
	return w
}

// watch closes the socket when the context ends, unblocking a pending read
func (w *Window) watch() {
	select {
	case <-w.ctx.Done():
		w.release()
	case <-w.stop:
	}
}

// LocalAddr returns the bound local address
func (w *Window) LocalAddr() *net.UDPAddr {
	return w.conn.LocalAddr().(*net.UDPAddr)
}

// Received returns how many datagrams the window has yielded so far
func (w *Window) Received() int {
	return w.received
}

// Next implements ResponseStream
func (w *Window) Next() bool {
	if w.done {
		return false
	}
	if err := w.ctx.Err(); err != nil {
		w.finish(err)
		return false
	}

	if w.timeout > 0 {
		if err := w.conn.SetReadDeadline(time.Now().Add(w.timeout)); err != nil {
			w.finish(NewReceiveError(w.LocalAddr().String(), err))
			return false
		}
	}

	n, addr, err := w.conn.ReadFromUDP(w.buf)
	if err != nil {
		switch {
		case w.ctx.Err() != nil:
			w.finish(w.ctx.Err())
		case errors.Is(err, os.ErrDeadlineExceeded):
			w.finish(nil)
		default:
			w.finish(NewReceiveError(w.LocalAddr().String(), err))
		}
		return false
	}

	payload := make([]byte, n)
	copy(payload, w.buf[:n])
	w.current = RawResponse{
		Payload:    payload,
		Addr:       addr,
		ReceivedAt: time.Now(),
	}
	w.received++
	logging.LogDatagram("received", addr.String(), payload)
	return true
}

// Response implements ResponseStream
func (w *Window) Response() RawResponse {
	return w.current
}

// Err implements ResponseStream
func (w *Window) Err() error {
	return w.err
}

// Close implements ResponseStream
func (w *Window) Close() error {
	w.done = true
	return w.release()
}

func (w *Window) finish(err error) {
	w.done = true
	w.err = err
	if err != nil {
		logging.LogWindow("aborted", zap.Int("received", w.received), zap.Error(err))
	} else {
		logging.LogWindow("closed", zap.Int("received", w.received))
	}
	w.release()
}

func (w *Window) release() error {
	w.closeOnce.Do(func() {
		close(w.stop)
		w.closeErr = w.conn.Close()
	})
	return w.closeErr
}
