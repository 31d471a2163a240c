package link

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/vrouter/internal/core"
	"firestige.xyz/vrouter/internal/log"
)

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
}

// Pcap is an offline Link: it replays a capture file as received traffic
// and records transmitted frames to a pcapng file. It needs no privileges,
// which makes it the link of choice for replay tests.
type Pcap struct {
	ports   Ports
	opts    PcapOptions
	in      *os.File
	reader  packetReader
	ng      bool
	out     *os.File
	writer  *pcapgo.NgWriter
	mu      sync.Mutex
	closed  bool
	skipped int
	log     log.Logger
}

func NewPcap(ports Ports, opts PcapOptions) (*Pcap, error) {
	opts.applyDefaults()
	if opts.Input == "" {
		return nil, fmt.Errorf("%w: pcap link needs an input file", core.ErrConfigInvalid)
	}
	if opts.Interface < 0 || opts.Interface >= ports.Len() {
		return nil, fmt.Errorf("%w: pcap input interface %d", core.ErrUnknownInterface, opts.Interface)
	}

	p := &Pcap{
		ports: ports,
		opts:  opts,
		log:   log.GetLogger().WithField("link", "pcap"),
	}

	in, err := os.Open(opts.Input)
	if err != nil {
		return nil, fmt.Errorf("open pcap input: %w", err)
	}
	p.in = in
	if strings.EqualFold(filepath.Ext(opts.Input), ".pcapng") {
		p.ng = true
		p.reader, err = pcapgo.NewNgReader(bufio.NewReader(in), pcapgo.DefaultNgReaderOptions)
	} else {
		p.reader, err = pcapgo.NewReader(bufio.NewReader(in))
	}
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("read pcap header of %s: %w", opts.Input, err)
	}

	if opts.Output != "" {
		if err := p.openOutput(); err != nil {
			in.Close()
			return nil, err
		}
	}
	return p, nil
}

func (p *Pcap) openOutput() error {
	out, err := os.Create(p.opts.Output)
	if err != nil {
		return fmt.Errorf("create pcap output: %w", err)
	}

	w, err := pcapgo.NewNgWriterInterface(out, p.ngInterface(0), pcapgo.DefaultNgWriterOptions)
	if err != nil {
		out.Close()
		return fmt.Errorf("write pcapng header: %w", err)
	}
	for i := 1; i < p.ports.Len(); i++ {
		if _, err := w.AddInterface(p.ngInterface(i)); err != nil {
			out.Close()
			return fmt.Errorf("describe interface %s: %w", p.ports.Name(i), err)
		}
	}
	p.out = out
	p.writer = w
	return nil
}

func (p *Pcap) ngInterface(i int) pcapgo.NgInterface {
	return pcapgo.NgInterface{
		Name:        p.ports.Name(i),
		Description: p.ports.MAC(i).String(),
		LinkType:    layers.LinkTypeEthernet,
		SnapLength:  uint32(p.opts.SnapLen),
	}
}

// Receive returns io.EOF once the input is exhausted. Frames whose pcapng
// interface id does not name a router port are skipped.
func (p *Pcap) Receive(ctx context.Context) (*core.Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, core.ErrLinkClosed
		}
		data, ci, err := p.reader.ReadPacketData()
		p.mu.Unlock()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p.opts.Input, err)
		}

		port := p.opts.Interface
		if p.ng {
			port = ci.InterfaceIndex
		}
		if port < 0 || port >= p.ports.Len() {
			p.skipped++
			p.log.WithField("interface_id", port).Debug("skipping frame from unknown interface")
			continue
		}

		buf := make([]byte, len(data))
		copy(buf, data)
		return &core.Frame{Data: buf, Interface: port}, nil
	}
}

func (p *Pcap) Transmit(f *core.Frame) error {
	if f.Interface < 0 || f.Interface >= p.ports.Len() {
		return fmt.Errorf("%w: %d", core.ErrUnknownInterface, f.Interface)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return core.ErrLinkClosed
	}
	if p.writer == nil {
		return nil
	}
	ci := gopacket.CaptureInfo{
		Timestamp:      time.Now(),
		CaptureLength:  len(f.Data),
		Length:         len(f.Data),
		InterfaceIndex: f.Interface,
	}
	return p.writer.WritePacket(ci, f.Data)
}

// Close flushes the output file.
func (p *Pcap) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var firstErr error
	if p.writer != nil {
		if err := p.writer.Flush(); err != nil {
			firstErr = fmt.Errorf("flush pcap output: %w", err)
		}
		if err := p.out.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := p.in.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if p.skipped > 0 {
		p.log.WithField("skipped", p.skipped).Warn("input frames referenced unknown interfaces")
	}
	return firstErr
}
