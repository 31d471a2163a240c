// Package router is the forwarding engine: it classifies every received
// frame and forwards it, answers it, queues it behind ARP resolution or
// drops it.
package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"firestige.xyz/vrouter/internal/arp"
	"firestige.xyz/vrouter/internal/core"
	"firestige.xyz/vrouter/internal/link"
	"firestige.xyz/vrouter/internal/log"
	"firestige.xyz/vrouter/internal/metrics"
	"firestige.xyz/vrouter/internal/queue"
	"firestige.xyz/vrouter/internal/route"
)

// Interfaces is the engine's view of the router ports.
type Interfaces interface {
	Len() int
	MAC(i int) core.MAC
	IPv4(i int) uint32
	Local(ip uint32) (int, bool)
}

// Engine owns the routing table, ARP cache and pending set. It is driven
// by a single goroutine and takes no locks.
type Engine struct {
	routes  *route.Table
	cache   *arp.Cache
	pending *queue.Pending
	ifaces  Interfaces
	link    link.Link
	log     log.Logger
}

// NewEngine checks that every route leaves through an existing interface.
func NewEngine(routes *route.Table, ifaces Interfaces, l link.Link) (*Engine, error) {
	for _, r := range routes.Routes() {
		if r.Interface >= ifaces.Len() {
			return nil, fmt.Errorf("%w: route %s", core.ErrUnknownInterface, r)
		}
	}
	metrics.Routes.Set(float64(routes.Len()))
	return &Engine{
		routes:  routes,
		cache:   arp.NewCache(),
		pending: queue.NewPending(),
		ifaces:  ifaces,
		link:    l,
		log:     log.GetLogger().WithField("component", "engine"),
	}, nil
}

func (e *Engine) Cache() *arp.Cache { return e.cache }

func (e *Engine) Pending() *queue.Pending { return e.pending }

func (e *Engine) Routes() *route.Table { return e.routes }

// Run receives and processes frames until ctx ends, the link runs out of
// frames, or a receive or transmit fails. Only the last case is an error;
// a transmit on a link closed after ctx ended counts as a shutdown.
func (e *Engine) Run(ctx context.Context) error {
	e.log.WithField("routes", e.routes.Len()).Info("forwarding engine started")
	defer func() {
		e.log.WithFields(map[string]interface{}{
			"arp_entries": e.cache.Len(),
			"pending":     e.pending.Len(),
		}).Info("forwarding engine stopped")
	}()

	for {
		f, err := e.link.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, core.ErrLinkClosed) {
				return nil
			}
			e.log.WithError(err).Error("receive failed")
			return fmt.Errorf("receive frame: %w", err)
		}
		if _, err := e.Step(ctx, f); err != nil {
			if ctx.Err() != nil && errors.Is(err, core.ErrLinkClosed) {
				return nil
			}
			e.log.WithError(err).Error("transmit failed")
			return err
		}
	}
}

// Step processes exactly one frame. The frame may be rewritten and
// transmitted in place; a frame that must wait for ARP is cloned first.
// The error is non-nil only when the link failed to transmit.
func (e *Engine) Step(ctx context.Context, f *core.Frame) (Verdict, error) {
	v, err := e.step(f)
	metrics.FramesTotal.WithLabelValues(v.String()).Inc()
	metrics.ARPCacheEntries.Set(float64(e.cache.Len()))
	metrics.PendingFrames.Set(float64(e.pending.Len()))
	if e.log.IsTraceEnabled() {
		e.log.WithFields(map[string]interface{}{
			"interface": f.Interface,
			"len":       f.Len(),
			"verdict":   v.String(),
		}).Trace("frame processed")
	}
	return v, err
}

func (e *Engine) step(f *core.Frame) (Verdict, error) {
	if f.Len() < core.EthernetHeaderLen || f.Interface < 0 || f.Interface >= e.ifaces.Len() {
		return VerdictDropMalformed, nil
	}
	if dst := f.EtherDst(); dst != e.ifaces.MAC(f.Interface) && dst != core.BroadcastMAC {
		return VerdictDropNotForUs, nil
	}

	switch f.EtherType() {
	case core.EtherTypeARP:
		return e.handleARP(f)
	case core.EtherTypeIPv4:
		return e.handleIPv4(f)
	default:
		return VerdictDropEtherType, nil
	}
}

func (e *Engine) transmit(f *core.Frame) error {
	if err := e.link.Transmit(f); err != nil {
		metrics.TransmitErrorsTotal.WithLabelValues(strconv.Itoa(f.Interface)).Inc()
		return fmt.Errorf("transmit on interface %d: %w", f.Interface, err)
	}
	return nil
}
