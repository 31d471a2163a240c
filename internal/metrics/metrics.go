// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesTotal counts received frames by the verdict the engine reached
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vrouter_frames_total",
			Help: "Total number of received frames by verdict",
		},
		[]string{"verdict"},
	)

	// TransmitErrorsTotal counts failed transmissions by outgoing interface
	TransmitErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vrouter_transmit_errors_total",
			Help: "Total number of frames the link failed to transmit",
		},
		[]string{"interface"},
	)

	// ARPRequestsTotal counts ARP requests broadcast for unresolved next hops
	ARPRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vrouter_arp_requests_total",
			Help: "Total number of ARP requests sent",
		},
	)

	ARPCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vrouter_arp_cache_entries",
			Help: "Number of resolved next hops in the ARP cache",
		},
	)

	PendingFrames = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vrouter_pending_frames",
			Help: "Number of frames waiting for ARP resolution",
		},
	)

	Routes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vrouter_routes",
			Help: "Number of entries in the routing table",
		},
	)
)
