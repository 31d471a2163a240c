// Package arp implements the ARP cache and the ARP wire format helpers used
// by the forwarding engine.
package arp

import (
	"sort"

	"firestige.xyz/vrouter/internal/core"
)

// Entry is a resolved next-hop.
type Entry struct {
	IP  uint32
	MAC core.MAC
}

// Cache maps next-hop IPv4 addresses to hardware addresses. Entries live for
// the lifetime of the process. Cache is not safe for concurrent use; the
// engine owns it exclusively.
type Cache struct {
	entries map[uint32]core.MAC
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[uint32]core.MAC)}
}

// Insert records ip -> mac, replacing any previous mapping for ip. It
// reports whether the cache changed.
func (c *Cache) Insert(ip uint32, mac core.MAC) bool {
	old, ok := c.entries[ip]
	c.entries[ip] = mac
	return !ok || old != mac
}

// Lookup returns the hardware address for ip.
func (c *Cache) Lookup(ip uint32) (core.MAC, bool) {
	mac, ok := c.entries[ip]
	return mac, ok
}

// Len returns the number of cached addresses.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Entries returns a snapshot ordered by address.
func (c *Cache) Entries() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for ip, mac := range c.entries {
		out = append(out, Entry{IP: ip, MAC: mac})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IP < out[j].IP })
	return out
}
