// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors, wrapped with fmt.Errorf("...: %w") by callers.
var (
	// Frame handling errors
	ErrFrameTooShort   = errors.New("vrouter: frame too short")
	ErrUnsupportedType = errors.New("vrouter: unsupported icmp type")

	// Routing table errors
	ErrInvalidRoute = errors.New("vrouter: invalid route")
	ErrRouteFormat  = errors.New("vrouter: malformed route table")

	// Interface errors
	ErrUnknownInterface = errors.New("vrouter: unknown interface")
	ErrNoIPv4Address    = errors.New("vrouter: interface has no ipv4 address")

	// Link errors
	ErrLinkClosed      = errors.New("vrouter: link closed")
	ErrUnsupportedLink = errors.New("vrouter: unsupported link type")

	// Configuration errors
	ErrConfigInvalid = errors.New("vrouter: invalid configuration")
)
