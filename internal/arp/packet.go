package arp

import (
	"encoding/binary"
	"errors"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/vrouter/internal/core"
)

// Operation codes.
const (
	OpRequest = 1
	OpReply   = 2
)

const (
	hwTypeEthernet = 1

	offHType = 0
	offPType = 2
	offHLen  = 4
	offPLen  = 5
	offOp    = 6
	offSHA   = 8
	offSPA   = 14
	offTHA   = 18
	offTPA   = 24
)

// ErrMalformed is returned for ARP packets that are not Ethernet/IPv4.
var ErrMalformed = errors.New("vrouter: malformed arp packet")

// Packet is a view over an Ethernet/IPv4 ARP packet inside a frame.
type Packet []byte

// Parse validates the fixed ARP header and returns a view over it.
func Parse(data []byte) (Packet, error) {
	if len(data) < core.ARPPacketLen {
		return nil, core.ErrFrameTooShort
	}
	if binary.BigEndian.Uint16(data[offHType:]) != hwTypeEthernet ||
		binary.BigEndian.Uint16(data[offPType:]) != core.EtherTypeIPv4 ||
		data[offHLen] != 6 || data[offPLen] != 4 {
		return nil, ErrMalformed
	}
	return Packet(data[:core.ARPPacketLen]), nil
}

// Op returns the operation code.
func (p Packet) Op() uint16 { return binary.BigEndian.Uint16(p[offOp:]) }

// SenderMAC returns the sender hardware address.
func (p Packet) SenderMAC() core.MAC { return macAt(p, offSHA) }

// SenderIP returns the sender protocol address.
func (p Packet) SenderIP() uint32 { return binary.BigEndian.Uint32(p[offSPA:]) }

// TargetMAC returns the target hardware address.
func (p Packet) TargetMAC() core.MAC { return macAt(p, offTHA) }

// TargetIP returns the target protocol address.
func (p Packet) TargetIP() uint32 { return binary.BigEndian.Uint32(p[offTPA:]) }

// MakeReply turns a request into the reply a host owning (mac, ip) would
// send: the original sender becomes the target and op becomes 2.
func (p Packet) MakeReply(mac core.MAC, ip uint32) {
	copy(p[offTHA:offTHA+6], p[offSHA:offSHA+6])
	copy(p[offTPA:offTPA+4], p[offSPA:offSPA+4])
	copy(p[offSHA:offSHA+6], mac[:])
	binary.BigEndian.PutUint32(p[offSPA:], ip)
	binary.BigEndian.PutUint16(p[offOp:], OpReply)
}

func macAt(p Packet, off int) core.MAC {
	var m core.MAC
	copy(m[:], p[off:off+6])
	return m
}

// BuildRequest serializes a broadcast who-has request for target, sent from
// the interface identified by (srcMAC, srcIP).
func BuildRequest(srcMAC core.MAC, srcIP, target uint32) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       srcMAC.HardwareAddr(),
		DstMAC:       core.BroadcastMAC.HardwareAddr(),
		EthernetType: layers.EthernetTypeARP,
	}
	req := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   srcMAC.HardwareAddr(),
		SourceProtAddress: ipBytes(srcIP),
		DstHwAddress:      make(net.HardwareAddr, 6),
		DstProtAddress:    ipBytes(target),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, req); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func ipBytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}
