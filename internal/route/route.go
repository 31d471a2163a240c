// Package route implements the static IPv4 routing table: a binary trie
// giving longest-prefix-match lookups in at most 32 steps.
package route

import (
	"fmt"
	"math/bits"

	"firestige.xyz/vrouter/internal/core"
)

// Route is a single static routing entry. Addresses are numeric IPv4 values
// in host order.
type Route struct {
	Prefix    uint32
	Mask      uint32
	NextHop   uint32
	Interface int
}

// PrefixLen returns the number of leading one bits in the mask.
func (r Route) PrefixLen() int {
	return bits.LeadingZeros32(^r.Mask)
}

// Contains reports whether dst falls inside the route's prefix.
func (r Route) Contains(dst uint32) bool {
	return dst&r.Mask == r.Prefix
}

// Validate checks that the mask is contiguous and that the prefix carries
// no host bits.
func (r Route) Validate() error {
	n := r.PrefixLen()
	if r.Mask != ^uint32(0)<<(32-n) {
		return fmt.Errorf("%w: non-contiguous mask %s", core.ErrInvalidRoute, core.FormatIPv4(r.Mask))
	}
	if r.Prefix&r.Mask != r.Prefix {
		return fmt.Errorf("%w: prefix %s has host bits outside mask /%d",
			core.ErrInvalidRoute, core.FormatIPv4(r.Prefix), n)
	}
	if r.Interface < 0 {
		return fmt.Errorf("%w: negative interface %d", core.ErrInvalidRoute, r.Interface)
	}
	return nil
}

func (r Route) String() string {
	return fmt.Sprintf("%s/%d via %s dev %d",
		core.FormatIPv4(r.Prefix), r.PrefixLen(), core.FormatIPv4(r.NextHop), r.Interface)
}
