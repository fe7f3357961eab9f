package ssdp

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// ErrorType represents the category of a discovery failure
type ErrorType int

const (
	// ErrTypeResolve indicates the multicast destination could not be resolved
	ErrTypeResolve ErrorType = iota
	// ErrTypeBind indicates the local UDP endpoint could not be opened
	ErrTypeBind
	// ErrTypeSend indicates the M-SEARCH request could not be transmitted
	ErrTypeSend
	// ErrTypeReceive indicates a socket failure other than the window timeout
	ErrTypeReceive
	// ErrTypeParse indicates a response could not be parsed into a Device
	ErrTypeParse
	// ErrTypeValidation indicates invalid discovery parameters
	ErrTypeValidation
	// ErrTypeDescribe indicates the device description could not be fetched
	ErrTypeDescribe
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeResolve:
		return "Resolve Error"
	case ErrTypeBind:
		return "Bind Error"
	case ErrTypeSend:
		return "Send Error"
	case ErrTypeReceive:
		return "Receive Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeDescribe:
		return "Describe Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DiscoveryError is returned for every fatal discovery failure. Timeouts are
// never reported as a DiscoveryError: the end of a search window is normal.
type DiscoveryError struct {
	Type    ErrorType // Category of error
	Message string    // Human-readable error message
	Addr    string    // Local or remote address involved, if any
	Err     error     // Underlying error (if any)
}

// Error implements the error interface
func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// NewResolveError creates an address resolution error
func NewResolveError(addr string, err error) *DiscoveryError {
	return &DiscoveryError{
		Type:    ErrTypeResolve,
		Message: fmt.Sprintf("cannot resolve multicast address %q", addr),
		Addr:    addr,
		Err:     err,
	}
}

// NewBindError creates a local endpoint error
func NewBindError(addr string, err error) *DiscoveryError {
	msg := fmt.Sprintf("cannot open UDP endpoint %s", addr)
	if errors.Is(err, syscall.EADDRINUSE) {
		msg = fmt.Sprintf("UDP endpoint %s is already in use by another discovery", addr)
	}
	return &DiscoveryError{
		Type:    ErrTypeBind,
		Message: msg,
		Addr:    addr,
		Err:     err,
	}
}

// NewSendError creates a transmission error
func NewSendError(addr string, err error) *DiscoveryError {
	return &DiscoveryError{
		Type:    ErrTypeSend,
		Message: fmt.Sprintf("cannot send M-SEARCH to %s", addr),
		Addr:    addr,
		Err:     err,
	}
}

// NewReceiveError creates a receive error
func NewReceiveError(addr string, err error) *DiscoveryError {
	return &DiscoveryError{
		Type:    ErrTypeReceive,
		Message: fmt.Sprintf("receive failed on %s", addr),
		Addr:    addr,
		Err:     err,
	}
}

// NewParseError creates a parsing error
func NewParseError(addr string, message string, err error) *DiscoveryError {
	return &DiscoveryError{
		Type:    ErrTypeParse,
		Message: message,
		Addr:    addr,
		Err:     err,
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *DiscoveryError {
	return &DiscoveryError{
		Type:    ErrTypeValidation,
		Message: message,
	}
}

// NewDescribeError creates a device description error
func NewDescribeError(location string, err error) *DiscoveryError {
	return &DiscoveryError{
		Type:    ErrTypeDescribe,
		Message: fmt.Sprintf("cannot fetch device description from %s", location),
		Addr:    location,
		Err:     err,
	}
}

func hasType(err error, t ErrorType) bool {
	var discErr *DiscoveryError
	if errors.As(err, &discErr) {
		return discErr.Type == t
	}
	return false
}

// IsBindError checks if an error is a local endpoint error
func IsBindError(err error) bool {
	return hasType(err, ErrTypeBind)
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	return hasType(err, ErrTypeParse)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return hasType(err, ErrTypeValidation)
}

// IsAddressInUse reports whether err was caused by another discovery already
// holding the local port.
func IsAddressInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}

// TroubleshootingHint returns user-friendly troubleshooting advice for an error
func TroubleshootingHint(err error) string {
	var discErr *DiscoveryError
	if !errors.As(err, &discErr) {
		return "An unexpected error occurred. Please try again."
	}

	switch discErr.Type {
	case ErrTypeBind:
		if IsAddressInUse(err) {
			return strings.Join([]string{
				"Another discovery of the same mode is already running.",
				"Troubleshooting:",
				"  • Wait for the other discovery to finish",
				"  • Use --port to pick a different local port (0 lets the OS choose)",
			}, "\n")
		}
		return strings.Join([]string{
			"The local UDP endpoint could not be opened.",
			"Troubleshooting:",
			"  • Ports below 1024 require elevated privileges",
			"  • Check the --interface name",
		}, "\n")

	case ErrTypeResolve:
		return "The multicast group address is invalid. Check group_address in the config file."

	case ErrTypeSend:
		return strings.Join([]string{
			"The search request could not be sent.",
			"Troubleshooting:",
			"  • Make sure a network interface with multicast support is up",
			"  • Check that a route exists for 239.255.255.250",
			"  • Try selecting an interface with --interface",
		}, "\n")

	case ErrTypeReceive:
		return "The socket failed while waiting for responses. Try again."

	case ErrTypeParse:
		return "A device sent a response that could not be parsed. Drop --strict-parse to skip such responses."

	case ErrTypeValidation:
		return discErr.Message

	case ErrTypeDescribe:
		return "The device answered the search but its description document could not be fetched."

	default:
		return "An error occurred. Please check the error message for details."
	}
}
