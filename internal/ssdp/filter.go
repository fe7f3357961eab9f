package ssdp

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/ssdpscan/internal/logging"
)

// MatchPolicy decides whether a raw response matches the requested search
// target. An empty search target always matches.
type MatchPolicy func(payload []byte, searchTarget string) bool

// Match policy names accepted by MatchPolicyByName
const (
	MatchPolicySubstring = "substring"
	MatchPolicyHeader    = "header"
)

// MatchSubstring matches when the search target appears anywhere in the
// payload text. A value that only occurs in an unrelated header (for example
// inside LOCATION or SERVER) also matches. This loose behavior is kept for
// compatibility with existing callers; use MatchSearchTargetHeader for an
// exact ST/NT comparison.
func MatchSubstring(payload []byte, searchTarget string) bool {
	if searchTarget == "" {
		return true
	}
	return bytes.Contains(payload, []byte(searchTarget))
}

// MatchSearchTargetHeader matches only when the ST (or NT) header equals the
// search target. A request for ssdp:all matches any response.
func MatchSearchTargetHeader(payload []byte, searchTarget string) bool {
	if searchTarget == "" || searchTarget == SearchAll {
		return true
	}

	scanner := bufio.NewScanner(bytes.NewReader(payload))
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if !strings.EqualFold(key, "ST") && !strings.EqualFold(key, "NT") {
			continue
		}
		if strings.TrimSpace(value) == searchTarget {
			return true
		}
	}
	return false
}

// MatchPolicyByName resolves a policy name from configuration or flags
func MatchPolicyByName(name string) (MatchPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", MatchPolicySubstring:
		return MatchSubstring, nil
	case MatchPolicyHeader:
		return MatchSearchTargetHeader, nil
	default:
		return nil, NewValidationError(fmt.Sprintf("unknown match policy %q (use %q or %q)",
			name, MatchPolicySubstring, MatchPolicyHeader))
	}
}

// ParseErrorPolicy decides what happens when a matching response cannot be parsed
type ParseErrorPolicy int

const (
	// SkipInvalid drops the response and keeps collecting
	SkipInvalid ParseErrorPolicy = iota
	// AbortOnInvalid ends the discovery with the parse error
	AbortOnInvalid
)

// String returns the configuration name of the policy
func (p ParseErrorPolicy) String() string {
	switch p {
	case SkipInvalid:
		return "skip"
	case AbortOnInvalid:
		return "abort"
	default:
		return fmt.Sprintf("ParseErrorPolicy(%d)", int(p))
	}
}

// ParseErrorPolicyByName resolves "skip" or "abort"
func ParseErrorPolicyByName(name string) (ParseErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "skip":
		return SkipInvalid, nil
	case "abort":
		return AbortOnInvalid, nil
	default:
		return SkipInvalid, NewValidationError(fmt.Sprintf("unknown parse error policy %q (use \"skip\" or \"abort\")", name))
	}
}

// Collector filters a response stream and parses the matching responses
type Collector struct {
	// Match selects responses (default: MatchSubstring)
	Match MatchPolicy

	// Parse turns a response into a Device (default: ParseResponse)
	Parse ParseFunc

	// OnParseError selects skip-or-abort behavior (default: SkipInvalid)
	OnParseError ParseErrorPolicy
}

// Collect consumes the whole stream and returns every matching device in
// arrival order. Non-matching responses are dropped silently.
func (c *Collector) Collect(stream ResponseStream, searchTarget string) ([]*Device, error) {
	devices := make([]*Device, 0)

	for stream.Next() {
		device, err := c.accept(stream.Response(), searchTarget)
		if err != nil {
			return nil, err
		}
		if device != nil {
			devices = append(devices, device)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	return devices, nil
}

// CollectFirst consumes the stream until the first matching response and
// returns its device. It returns nil and no error when the window closes
// without a match.
func (c *Collector) CollectFirst(stream ResponseStream, searchTarget string) (*Device, error) {
	for stream.Next() {
		device, err := c.accept(stream.Response(), searchTarget)
		if err != nil {
			return nil, err
		}
		if device != nil {
			return device, nil
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	return nil, nil
}

// accept returns the parsed device for a matching response, nil for a
// dropped or skipped one, or an error when parsing fails under AbortOnInvalid.
func (c *Collector) accept(resp RawResponse, searchTarget string) (*Device, error) {
	match := c.Match
	if match == nil {
		match = MatchSubstring
	}
	if !match(resp.Payload, searchTarget) {
		logging.Debug("Dropped non-matching response",
			zap.String("addr", resp.Source()),
			zap.String("search_target", searchTarget),
		)
		return nil, nil
	}

	parse := c.Parse
	if parse == nil {
		parse = ParseResponse
	}

	var addr net.Addr
	if resp.Addr != nil {
		addr = resp.Addr
	}

	device, err := parse(resp.Payload, addr)
	if err != nil {
		if c.OnParseError == AbortOnInvalid {
			return nil, err
		}
		logging.Warn("Skipped unparseable response",
			zap.String("addr", resp.Source()),
			zap.Error(err),
		)
		return nil, nil
	}

	return device, nil
}
