// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/vrouter/internal/core"
)

// Byte offsets inside the IPv4 header.
const (
	ipv4OffVersionIHL = 0
	ipv4OffTotalLen   = 2
	ipv4OffTTL        = 8
	ipv4OffProtocol   = 9
	ipv4OffChecksum   = 10
	ipv4OffSrc        = 12
	ipv4OffDst        = 16
)

// IPv4 is a view over an IPv4 header.
type IPv4 []byte

// ParseIPv4 validates the fixed part of an IPv4 header and returns a view
// covering exactly the header (options included).
func ParseIPv4(data []byte) (IPv4, error) {
	if len(data) < core.IPv4HeaderLen {
		return nil, core.ErrFrameTooShort
	}
	if data[ipv4OffVersionIHL]>>4 != 4 {
		return nil, ErrNotIPv4
	}

	// IHL is in 32-bit words
	headerLen := int(data[ipv4OffVersionIHL]&0x0F) * 4
	if headerLen < core.IPv4HeaderLen || len(data) < headerLen {
		return nil, core.ErrFrameTooShort
	}
	return IPv4(data[:headerLen]), nil
}

// HeaderLen returns the header length in bytes.
func (h IPv4) HeaderLen() int { return int(h[ipv4OffVersionIHL]&0x0F) * 4 }

// TTL returns the time-to-live field.
func (h IPv4) TTL() uint8 { return h[ipv4OffTTL] }

// Protocol returns the protocol field.
func (h IPv4) Protocol() uint8 { return h[ipv4OffProtocol] }

// Src returns the source address.
func (h IPv4) Src() uint32 { return binary.BigEndian.Uint32(h[ipv4OffSrc:]) }

// Dst returns the destination address.
func (h IPv4) Dst() uint32 { return binary.BigEndian.Uint32(h[ipv4OffDst:]) }

// SwapAddrs exchanges source and destination addresses. The checksum is
// unaffected since the one's-complement sum is order independent.
func (h IPv4) SwapAddrs() {
	for i := 0; i < 4; i++ {
		h[ipv4OffSrc+i], h[ipv4OffDst+i] = h[ipv4OffDst+i], h[ipv4OffSrc+i]
	}
}

// Word returns the 16-bit word at byte offset off.
func (h IPv4) Word(off int) uint16 { return binary.BigEndian.Uint16(h[off:]) }

// Offsets of the 16-bit words that carry individually rewritable fields.
const (
	WordVersionIHL  = ipv4OffVersionIHL // version/IHL + TOS
	WordTotalLen    = ipv4OffTotalLen
	WordTTLProtocol = ipv4OffTTL // TTL + protocol
	WordChecksum    = ipv4OffChecksum
)
