package decoder

import (
	"errors"

	"firestige.xyz/vrouter/internal/core"
)

// ErrNotIPv4 is returned when the version nibble is not 4.
var ErrNotIPv4 = errors.New("vrouter: not an ipv4 header")

// ICMP is a view over the fixed 8-byte ICMP header.
type ICMP []byte

// ParseICMP returns a view over the first ICMP header in data.
func ParseICMP(data []byte) (ICMP, error) {
	if len(data) < core.ICMPHeaderLen {
		return nil, core.ErrFrameTooShort
	}
	return ICMP(data[:core.ICMPHeaderLen]), nil
}

// Type returns the ICMP type.
func (m ICMP) Type() uint8 { return m[0] }
