package router

import (
	"errors"
	"fmt"

	"firestige.xyz/vrouter/internal/arp"
	"firestige.xyz/vrouter/internal/checksum"
	"firestige.xyz/vrouter/internal/core"
	"firestige.xyz/vrouter/internal/core/decoder"
	"firestige.xyz/vrouter/internal/icmp"
	"firestige.xyz/vrouter/internal/metrics"
)

func (e *Engine) handleIPv4(f *core.Frame) (Verdict, error) {
	ip, err := decoder.ParseIPv4(f.Payload())
	if err != nil {
		return VerdictDropMalformed, nil
	}

	if ip.Dst() == e.ifaces.IPv4(f.Interface) && e.isEchoRequest(f, ip) {
		return e.reply(f, core.ICMPEchoReply, VerdictEchoReply)
	}
	if _, local := e.ifaces.Local(ip.Dst()); local {
		return VerdictDropLocal, nil
	}
	if !checksum.Valid(ip) {
		return VerdictDropChecksum, nil
	}
	if ip.TTL() <= 1 {
		return e.reply(f, core.ICMPTimeExceeded, VerdictTimeExceeded)
	}

	rt, ok := e.routes.Lookup(ip.Dst())
	if !ok {
		return e.reply(f, core.ICMPDestUnreachable, VerdictUnreachable)
	}

	checksum.Update16(ip, decoder.WordChecksum, decoder.WordTTLProtocol,
		uint16(ip.TTL()-1)<<8|uint16(ip.Protocol()))

	if mac, ok := e.cache.Lookup(rt.NextHop); ok {
		f.SetEtherSrc(e.ifaces.MAC(rt.Interface))
		f.SetEtherDst(mac)
		f.Interface = rt.Interface
		if err := e.transmit(f); err != nil {
			return VerdictForwarded, err
		}
		return VerdictForwarded, nil
	}

	// The clone keeps the arrival interface so a later unreachable can be
	// sent back the way the frame came.
	e.pending.Add(rt.NextHop, f.Clone())
	if err := e.requestNextHop(rt.NextHop, rt.Interface); err != nil {
		return VerdictQueued, err
	}
	return VerdictQueued, nil
}

func (e *Engine) isEchoRequest(f *core.Frame, ip decoder.IPv4) bool {
	if ip.Protocol() != core.ProtoICMP {
		return false
	}
	msg, err := decoder.ParseICMP(f.Payload()[ip.HeaderLen():])
	return err == nil && msg.Type() == core.ICMPEchoRequest
}

// reply turns f into an ICMP message and sends it back out of the
// interface it arrived on.
func (e *Engine) reply(f *core.Frame, typ uint8, v Verdict) (Verdict, error) {
	if err := icmp.Rewrite(f, typ); err != nil {
		if errors.Is(err, core.ErrFrameTooShort) {
			return VerdictDropMalformed, nil
		}
		return v, err
	}
	if err := e.transmit(f); err != nil {
		return v, err
	}
	return v, nil
}

// requestNextHop broadcasts a who-has for nextHop out of interface port.
func (e *Engine) requestNextHop(nextHop uint32, port int) error {
	data, err := arp.BuildRequest(e.ifaces.MAC(port), e.ifaces.IPv4(port), nextHop)
	if err != nil {
		return fmt.Errorf("build arp request for %s: %w", core.FormatIPv4(nextHop), err)
	}
	metrics.ARPRequestsTotal.Inc()
	if e.log.IsDebugEnabled() {
		e.log.WithFields(map[string]interface{}{
			"next_hop":  core.FormatIPv4(nextHop),
			"interface": port,
			"waiting":   e.pending.Waiting(nextHop),
		}).Debug("next hop unresolved, arp request sent")
	}
	return e.transmit(&core.Frame{Data: data, Interface: port})
}
