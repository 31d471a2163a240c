// Package checksum implements the Internet checksum (RFC 1071) and its
// incremental update (RFC 1624) as used by IPv4 and ICMP headers.
package checksum

import (
	"encoding/binary"

	tcpipchecksum "gvisor.dev/gvisor/pkg/tcpip/checksum"
)

// Checksum computes the one's complement of the one's complement sum of
// the 16-bit big-endian words in b; a trailing odd byte is padded with
// zero. The checksum field inside b must be zero when computing a fresh
// value.
func Checksum(b []byte) uint16 {
	return ^tcpipchecksum.Checksum(b, 0)
}

// Valid reports whether a header that includes its own checksum field sums
// to all ones, i.e. Checksum over it folds to zero.
func Valid(b []byte) bool {
	return Checksum(b) == 0
}

// IncrementalUpdate returns the checksum that results from replacing the
// 16-bit field oldField with newField in a header whose checksum was old.
// It implements RFC 1624 eqn. 3: HC' = ~(~HC + ~m + m').
func IncrementalUpdate(old, oldField, newField uint16) uint16 {
	return ^tcpipchecksum.Combine(tcpipchecksum.Combine(^old, ^oldField), newField)
}

// Update16 writes v into the 16-bit word at fieldOff of hdr and patches the
// checksum stored at csumOff to match.
func Update16(hdr []byte, csumOff, fieldOff int, v uint16) {
	old := binary.BigEndian.Uint16(hdr[fieldOff:])
	if old == v {
		return
	}
	binary.BigEndian.PutUint16(hdr[fieldOff:], v)
	c := binary.BigEndian.Uint16(hdr[csumOff:])
	binary.BigEndian.PutUint16(hdr[csumOff:], IncrementalUpdate(c, old, v))
}

// Set zeroes the checksum field at csumOff, computes the checksum over hdr
// and stores it back.
func Set(hdr []byte, csumOff int) uint16 {
	hdr[csumOff], hdr[csumOff+1] = 0, 0
	c := Checksum(hdr)
	binary.BigEndian.PutUint16(hdr[csumOff:], c)
	return c
}
