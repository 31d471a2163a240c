package router

import (
	"firestige.xyz/vrouter/internal/arp"
	"firestige.xyz/vrouter/internal/core"
	"firestige.xyz/vrouter/internal/core/decoder"
	"firestige.xyz/vrouter/internal/icmp"
)

func (e *Engine) handleARP(f *core.Frame) (Verdict, error) {
	p, err := arp.Parse(f.Payload())
	if err != nil {
		return VerdictDropMalformed, nil
	}

	switch p.Op() {
	case arp.OpRequest:
		ip := e.ifaces.IPv4(f.Interface)
		if p.TargetIP() != ip {
			return VerdictDropARPTarget, nil
		}
		mac := e.ifaces.MAC(f.Interface)
		p.MakeReply(mac, ip)
		f.SetEtherDst(f.EtherSrc())
		f.SetEtherSrc(mac)
		if err := e.transmit(f); err != nil {
			return VerdictARPReply, err
		}
		return VerdictARPReply, nil

	case arp.OpReply:
		hop, mac := p.SenderIP(), p.SenderMAC()
		if e.cache.Insert(hop, mac) {
			e.log.WithFields(map[string]interface{}{
				"ip":  core.FormatIPv4(hop),
				"mac": mac.String(),
			}).Debug("arp entry learned")
		}
		if err := e.drain(hop); err != nil {
			return VerdictARPLearned, err
		}
		return VerdictARPLearned, nil

	default:
		return VerdictDropMalformed, nil
	}
}

// drain releases the frames waiting for hop, in arrival order. Each frame
// is routed again. A frame whose route now uses another unresolved next hop
// moves to that next hop's partition and triggers a request for it. A
// frame with no route at all is answered with destination unreachable on
// its arrival interface.
func (e *Engine) drain(hop uint32) error {
	var txErr error
	released := e.pending.Drain(hop, func(f *core.Frame) bool {
		if txErr != nil {
			return false
		}
		ip := decoder.IPv4(f.Payload())

		rt, ok := e.routes.Lookup(ip.Dst())
		if !ok {
			if err := icmp.DestUnreachable(f); err != nil {
				return true
			}
			txErr = e.transmit(f)
			return true
		}
		mac, ok := e.cache.Lookup(rt.NextHop)
		if !ok {
			if rt.NextHop == hop {
				return false
			}
			e.pending.Add(rt.NextHop, f)
			txErr = e.requestNextHop(rt.NextHop, rt.Interface)
			return true
		}
		f.SetEtherSrc(e.ifaces.MAC(rt.Interface))
		f.SetEtherDst(mac)
		f.Interface = rt.Interface
		txErr = e.transmit(f)
		return true
	})

	if released > 0 {
		e.log.WithFields(map[string]interface{}{
			"next_hop": core.FormatIPv4(hop),
			"released": released,
			"waiting":  e.pending.Waiting(hop),
		}).Debug("pending frames drained")
	}
	return txErr
}
