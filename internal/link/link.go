// Package link moves raw Ethernet frames between the router and the wire.
//
// A Link owns every router port. Implementations may read ports on several
// goroutines, but all received frames come out of a single Receive call so
// the forwarding engine can stay single threaded.
package link

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/vrouter/internal/config"
	"firestige.xyz/vrouter/internal/core"
)

type Link interface {
	// Receive blocks until a frame arrives, ctx ends or the link fails.
	// A link that has run out of frames returns io.EOF or core.ErrLinkClosed.
	Receive(ctx context.Context) (*core.Frame, error)
	// Transmit sends f out of port f.Interface. The link does not retain
	// f.Data after Transmit returns.
	Transmit(f *core.Frame) error
	Close() error
}

// Ports describes the router ports a link serves, indexed by interface number.
type Ports interface {
	Len() int
	Name(i int) string
	MAC(i int) core.MAC
}

// New opens the link selected by cfg.Type over all ports.
func New(cfg config.LinkConfig, ports Ports) (Link, error) {
	switch cfg.Type {
	case config.LinkAFPacket:
		var opts AFPacketOptions
		if err := decodeOptions(cfg.Options, &opts); err != nil {
			return nil, err
		}
		l, err := NewAFPacket(ports, opts)
		if err != nil {
			return nil, err
		}
		return l, nil
	case config.LinkPcap:
		var opts PcapOptions
		if err := decodeOptions(cfg.Options, &opts); err != nil {
			return nil, err
		}
		l, err := NewPcap(ports, opts)
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedLink, cfg.Type)
	}
}

func decodeOptions(in map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("%w: link options: %w", core.ErrConfigInvalid, err)
	}
	return nil
}
