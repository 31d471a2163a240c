//go:build linux

package link

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/gopacket/afpacket"

	"firestige.xyz/vrouter/internal/core"
	"firestige.xyz/vrouter/internal/log"
)

// AFPacket is a Link over one TPACKET_V3 socket per router port.
type AFPacket struct {
	ports   Ports
	mu      sync.RWMutex // guards handles against Close
	handles []*afpacket.TPacket
	frames  chan *core.Frame
	errs    chan error
	done    chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
	log     log.Logger
}

// NewAFPacket opens every port and starts one reader per port.
func NewAFPacket(ports Ports, opts AFPacketOptions) (*AFPacket, error) {
	opts.applyDefaults()

	frameSize, blockSize, numBlocks, err := ringLayout(opts.BufferSizeMB, opts.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, fmt.Errorf("%w: afpacket ring: %w", core.ErrConfigInvalid, err)
	}
	filter, err := assembleFilter(opts.SnapLen)
	if err != nil {
		return nil, fmt.Errorf("assemble ethertype filter: %w", err)
	}

	l := &AFPacket{
		ports:  ports,
		frames: make(chan *core.Frame, opts.Backlog),
		errs:   make(chan error, ports.Len()),
		done:   make(chan struct{}),
		log:    log.GetLogger().WithField("link", "afpacket"),
	}

	for i := 0; i < ports.Len(); i++ {
		name := ports.Name(i)
		h, err := afpacket.NewTPacket(
			afpacket.OptInterface(name),
			afpacket.OptFrameSize(frameSize),
			afpacket.OptBlockSize(blockSize),
			afpacket.OptNumBlocks(numBlocks),
			afpacket.OptPollTimeout(opts.PollTimeout),
			afpacket.OptTPacketVersion(afpacket.TPacketVersion3),
		)
		if err != nil {
			l.closeHandles()
			return nil, fmt.Errorf("open afpacket socket on %s: %w", name, err)
		}
		l.handles = append(l.handles, h)

		if !opts.DisableFilter {
			if err := h.SetBPF(filter); err != nil {
				l.closeHandles()
				return nil, fmt.Errorf("attach ethertype filter on %s: %w", name, err)
			}
		}
		l.log.WithFields(map[string]interface{}{
			"interface":  name,
			"frame_size": frameSize,
			"block_size": blockSize,
			"num_blocks": numBlocks,
		}).Info("afpacket port opened")
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	for i, h := range l.handles {
		l.wg.Add(1)
		go l.read(ctx, i, h)
	}
	return l, nil
}

// read copies frames off the ring. The handle is only closed after every
// reader has returned, so a read never touches an unmapped ring.
func (l *AFPacket) read(ctx context.Context, port int, h *afpacket.TPacket) {
	defer l.wg.Done()
	own := l.ports.MAC(port)

	for ctx.Err() == nil {
		data, _, err := h.ZeroCopyReadPacketData()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, afpacket.ErrTimeout) || errors.Is(err, afpacket.ErrPoll) {
				continue
			}
			l.errs <- fmt.Errorf("read from %s: %w", l.ports.Name(port), err)
			return
		}
		// the socket also sees frames this router transmitted
		if len(data) >= core.EthernetHeaderLen && core.MAC(data[6:12]) == own {
			continue
		}

		buf := make([]byte, len(data))
		copy(buf, data)
		select {
		case l.frames <- &core.Frame{Data: buf, Interface: port}:
		case <-ctx.Done():
			return
		}
	}
}

func (l *AFPacket) Receive(ctx context.Context) (*core.Frame, error) {
	select {
	case f := <-l.frames:
		return f, nil
	case err := <-l.errs:
		return nil, err
	case <-l.done:
		return nil, core.ErrLinkClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *AFPacket) Transmit(f *core.Frame) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.handles == nil {
		return core.ErrLinkClosed
	}
	if f.Interface < 0 || f.Interface >= len(l.handles) {
		return fmt.Errorf("%w: %d", core.ErrUnknownInterface, f.Interface)
	}
	return l.handles[f.Interface].WritePacketData(f.Data)
}

func (l *AFPacket) Close() error {
	l.once.Do(func() {
		close(l.done)
		l.cancel()
		l.wg.Wait()
		packets, drops := l.Stats()
		l.closeHandles()
		l.log.WithFields(map[string]interface{}{
			"packets": packets,
			"drops":   drops,
		}).Info("afpacket link closed")
	})
	return nil
}

func (l *AFPacket) closeHandles() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, h := range l.handles {
		h.Close()
	}
	l.handles = nil
}

// Stats sums kernel socket counters over all ports.
func (l *AFPacket) Stats() (packets, drops uint) {
	for _, h := range l.handles {
		s, _, err := h.SocketStats()
		if err != nil {
			continue
		}
		packets += s.Packets()
		drops += s.Drops()
	}
	return packets, drops
}
