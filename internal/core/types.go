// Package core defines core types with zero external dependencies.
package core

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
)

const (
	// Header sizes
	EthernetHeaderLen = 14
	IPv4HeaderLen     = 20
	ICMPHeaderLen     = 8
	ARPPacketLen      = 28

	// EtherType values
	EtherTypeIPv4 = 0x0800
	EtherTypeARP  = 0x0806

	// IPv4 protocol numbers
	ProtoICMP = 1

	// ICMP types
	ICMPEchoReply       = 0
	ICMPDestUnreachable = 3
	ICMPEchoRequest     = 8
	ICMPTimeExceeded    = 11
)

// MAC is a 6-byte Ethernet hardware address.
type MAC [6]byte

// BroadcastMAC is ff:ff:ff:ff:ff:ff.
var BroadcastMAC = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ParseMAC parses a colon or dash separated EUI-48 address.
func ParseMAC(s string) (MAC, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MAC{}, err
	}
	if len(hw) != 6 {
		return MAC{}, fmt.Errorf("not an EUI-48 address: %s", s)
	}
	var m MAC
	copy(m[:], hw)
	return m, nil
}

func (m MAC) String() string {
	return net.HardwareAddr(m[:]).String()
}

// HardwareAddr returns m as a net.HardwareAddr backed by a fresh slice.
func (m MAC) HardwareAddr() net.HardwareAddr {
	hw := make(net.HardwareAddr, 6)
	copy(hw, m[:])
	return hw
}

// AddrToUint32 converts an IPv4 address to its big-endian numeric form.
// It returns 0 and false for anything that is not IPv4.
func AddrToUint32(a netip.Addr) (uint32, bool) {
	a = a.Unmap()
	if !a.Is4() {
		return 0, false
	}
	b := a.As4()
	return binary.BigEndian.Uint32(b[:]), true
}

// Uint32ToAddr is the inverse of AddrToUint32.
func Uint32ToAddr(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}

// FormatIPv4 renders a numeric IPv4 address in dotted quad form.
func FormatIPv4(v uint32) string {
	return Uint32ToAddr(v).String()
}
