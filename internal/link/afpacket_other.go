//go:build !linux

package link

import (
	"fmt"

	"firestige.xyz/vrouter/internal/core"
)

// NewAFPacket is only available on Linux.
func NewAFPacket(Ports, AFPacketOptions) (Link, error) {
	return nil, fmt.Errorf("%w: afpacket requires linux", core.ErrUnsupportedLink)
}
