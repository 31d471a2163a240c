// Package testutil builds and decodes frames with gopacket for tests.
package testutil

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/vrouter/internal/core"
)

// IPv4 describes the fields of an IPv4 frame to build.
type IPv4 struct {
	SrcMAC, DstMAC core.MAC
	Src, Dst       uint32
	TTL            uint8
	ID             uint16
}

func ip4(v uint32) net.IP {
	return net.IP(core.Uint32ToAddr(v).AsSlice())
}

func serialize(t testing.TB, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out
}

func (h IPv4) layers(proto layers.IPProtocol) (*layers.Ethernet, *layers.IPv4) {
	eth := &layers.Ethernet{
		SrcMAC:       h.SrcMAC.HardwareAddr(),
		DstMAC:       h.DstMAC.HardwareAddr(),
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      h.TTL,
		Id:       h.ID,
		Flags:    layers.IPv4DontFragment,
		Protocol: proto,
		SrcIP:    ip4(h.Src),
		DstIP:    ip4(h.Dst),
	}
	return eth, ip
}

// EchoRequest builds an ICMP echo request frame with the given payload.
func EchoRequest(t testing.TB, h IPv4, id, seq uint16, payload []byte) []byte {
	eth, ip := h.layers(layers.IPProtocolICMPv4)
	icmp := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
		Id:       id,
		Seq:      seq,
	}
	return serialize(t, eth, ip, icmp, gopacket.Payload(payload))
}

// UDP builds a UDP datagram frame.
func UDP(t testing.TB, h IPv4, srcPort, dstPort uint16, payload []byte) []byte {
	eth, ip := h.layers(layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("udp checksum: %v", err)
	}
	return serialize(t, eth, ip, udp, gopacket.Payload(payload))
}

// ARP describes an ARP frame to build.
type ARP struct {
	EthSrc, EthDst core.MAC
	Op             uint16
	SenderMAC      core.MAC
	SenderIP       uint32
	TargetMAC      core.MAC
	TargetIP       uint32
}

// ARPFrame builds an Ethernet/ARP frame.
func ARPFrame(t testing.TB, a ARP) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       a.EthSrc.HardwareAddr(),
		DstMAC:       a.EthDst.HardwareAddr(),
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         a.Op,
		SourceHwAddress:   a.SenderMAC.HardwareAddr(),
		SourceProtAddress: ip4(a.SenderIP).To4(),
		DstHwAddress:      a.TargetMAC.HardwareAddr(),
		DstProtAddress:    ip4(a.TargetIP).To4(),
	}
	return serialize(t, eth, arp)
}

// Decoded is the subset of layers tests look at.
type Decoded struct {
	Eth  *layers.Ethernet
	IP   *layers.IPv4
	ICMP *layers.ICMPv4
	ARP  *layers.ARP
	UDP  *layers.UDP
}

// Decode parses an Ethernet frame with gopacket.
func Decode(t testing.TB, data []byte) Decoded {
	t.Helper()
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	if el := pkt.ErrorLayer(); el != nil {
		t.Fatalf("decode: %v", el.Error())
	}
	var d Decoded
	if l, ok := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet); ok {
		d.Eth = l
	}
	if l, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
		d.IP = l
	}
	if l, ok := pkt.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4); ok {
		d.ICMP = l
	}
	if l, ok := pkt.Layer(layers.LayerTypeARP).(*layers.ARP); ok {
		d.ARP = l
	}
	if l, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		d.UDP = l
	}
	return d
}

// MAC converts a gopacket hardware address back to core.MAC.
func MAC(hw net.HardwareAddr) core.MAC {
	var m core.MAC
	copy(m[:], hw)
	return m
}

// Addr converts a gopacket IP back to the numeric form.
func Addr(ip net.IP) uint32 {
	v4 := ip.To4()
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3])
}
