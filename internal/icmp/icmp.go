// Package icmp rewrites received frames in place into ICMP echo replies and
// error messages. The buffer is reused: the result is always a 42 byte
// Ethernet + IPv4 + ICMP frame with no payload.
package icmp

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/vrouter/internal/checksum"
	"firestige.xyz/vrouter/internal/core"
	"firestige.xyz/vrouter/internal/core/decoder"
)

// FrameLen is the length of every synthesized frame.
const FrameLen = core.EthernetHeaderLen + core.IPv4HeaderLen + core.ICMPHeaderLen

const icmpCsumOff = 2

// EchoReply rewrites an echo request into its reply.
func EchoReply(f *core.Frame) error { return Rewrite(f, core.ICMPEchoReply) }

// TimeExceeded rewrites f into a time-exceeded error.
func TimeExceeded(f *core.Frame) error { return Rewrite(f, core.ICMPTimeExceeded) }

// DestUnreachable rewrites f into a destination-unreachable error.
func DestUnreachable(f *core.Frame) error { return Rewrite(f, core.ICMPDestUnreachable) }

// Rewrite converts the Ethernet/IPv4 frame f into an ICMP message of type
// typ addressed back to the original sender:
//
//  1. Ethernet addresses are swapped.
//  2. IPv4 addresses are swapped.
//  3. IHL becomes 5, protocol ICMP, total length 28.
//  4. TTL is decremented (never below zero); the IP checksum follows every
//     rewritten word incrementally and is recomputed if it does not verify.
//  5. ICMP code becomes 0 and type becomes typ.
//  6. The ICMP checksum is recomputed over the 8 byte header.
//  7. The frame is truncated to FrameLen.
//
// For echo replies the identifier and sequence number are kept; for errors
// the rest-of-header word is zeroed.
func Rewrite(f *core.Frame, typ uint8) error {
	switch typ {
	case core.ICMPEchoReply, core.ICMPDestUnreachable, core.ICMPTimeExceeded:
	default:
		return fmt.Errorf("%w: %d", core.ErrUnsupportedType, typ)
	}
	if f.Len() < FrameLen {
		return fmt.Errorf("icmp rewrite: %w (%d bytes)", core.ErrFrameTooShort, f.Len())
	}

	data := f.Data
	ip := decoder.IPv4(data[core.EthernetHeaderLen : core.EthernetHeaderLen+core.IPv4HeaderLen])
	hadOptions := ip.HeaderLen() != core.IPv4HeaderLen

	// An echo request carrying IP options has its ICMP header further in;
	// pull it up behind the 20 byte header we are about to emit.
	if hadOptions && typ == core.ICMPEchoReply {
		from := core.EthernetHeaderLen + ip.HeaderLen()
		if from+core.ICMPHeaderLen <= len(data) {
			copy(data[core.EthernetHeaderLen+core.IPv4HeaderLen:FrameLen], data[from:from+core.ICMPHeaderLen])
		}
	}

	f.SwapEther()
	ip.SwapAddrs()

	tos := ip.Word(decoder.WordVersionIHL) & 0x00ff
	checksum.Update16(ip, decoder.WordChecksum, decoder.WordVersionIHL, 0x4500|tos)
	checksum.Update16(ip, decoder.WordChecksum, decoder.WordTotalLen, core.IPv4HeaderLen+core.ICMPHeaderLen)

	ttl := ip.TTL()
	if ttl > 0 {
		ttl--
	}
	checksum.Update16(ip, decoder.WordChecksum, decoder.WordTTLProtocol, uint16(ttl)<<8|core.ProtoICMP)

	if hadOptions || !checksum.Valid(ip) {
		checksum.Set(ip, decoder.WordChecksum)
	}

	msg := data[core.EthernetHeaderLen+core.IPv4HeaderLen : FrameLen]
	msg[0] = typ
	msg[1] = 0
	if typ != core.ICMPEchoReply {
		binary.BigEndian.PutUint32(msg[4:], 0)
	}
	checksum.Set(msg, icmpCsumOff)

	f.Data = data[:FrameLen]
	return nil
}
