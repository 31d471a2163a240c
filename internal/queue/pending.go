package queue

import (
	"sort"

	"firestige.xyz/vrouter/internal/core"
)

// Pending holds frames waiting for a next-hop to be resolved, partitioned
// by next-hop so that an ARP reply only visits the frames it can release.
// Relative order is preserved inside each partition.
type Pending struct {
	byHop map[uint32]*Queue[*core.Frame]
	size  int
}

// NewPending returns an empty pending set.
func NewPending() *Pending {
	return &Pending{byHop: make(map[uint32]*Queue[*core.Frame])}
}

// Add queues f behind every frame already waiting for nextHop. Pending
// takes ownership of f; callers must hand in a frame no one else mutates.
func (p *Pending) Add(nextHop uint32, f *core.Frame) {
	q, ok := p.byHop[nextHop]
	if !ok {
		q = &Queue[*core.Frame]{}
		p.byHop[nextHop] = q
	}
	q.Enqueue(f)
	p.size++
}

// Len returns the total number of queued frames.
func (p *Pending) Len() int {
	return p.size
}

// Waiting returns how many frames are queued for nextHop.
func (p *Pending) Waiting(nextHop uint32) int {
	if q, ok := p.byHop[nextHop]; ok {
		return q.Len()
	}
	return 0
}

// NextHops returns the unresolved next-hops in ascending order.
func (p *Pending) NextHops() []uint32 {
	hops := make([]uint32, 0, len(p.byHop))
	for h := range p.byHop {
		hops = append(hops, h)
	}
	sort.Slice(hops, func(i, j int) bool { return hops[i] < hops[j] })
	return hops
}

// Drain visits, in FIFO order, exactly the frames queued for nextHop when
// Drain was called. release reports whether the frame left the queue; a
// frame it keeps goes to the back of the partition and is not visited
// again during this call. Drain returns the number of released frames.
func (p *Pending) Drain(nextHop uint32, release func(*core.Frame) bool) int {
	q, ok := p.byHop[nextHop]
	if !ok {
		return 0
	}

	released := 0
	for n := q.Len(); n > 0; n-- {
		f, _ := q.Dequeue()
		if release(f) {
			released++
			continue
		}
		q.Enqueue(f)
	}

	p.size -= released
	if q.Len() == 0 {
		delete(p.byHop, nextHop)
	}
	return released
}
