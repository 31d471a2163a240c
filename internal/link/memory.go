package link

import (
	"context"
	"sync"

	"firestige.xyz/vrouter/internal/core"
)

// Memory is an in-process Link. Tests inject received frames and inspect
// what the router transmitted.
type Memory struct {
	in     chan *core.Frame
	closed chan struct{}
	once   sync.Once

	mu   sync.Mutex
	sent []*core.Frame
	fail error
}

func NewMemory(backlog int) *Memory {
	return &Memory{
		in:     make(chan *core.Frame, backlog),
		closed: make(chan struct{}),
	}
}

// Inject queues f for Receive. It blocks when the backlog is full.
func (m *Memory) Inject(f *core.Frame) {
	m.in <- f
}

// Receive drains injected frames before reporting core.ErrLinkClosed.
func (m *Memory) Receive(ctx context.Context) (*core.Frame, error) {
	select {
	case f := <-m.in:
		return f, nil
	default:
	}
	select {
	case f := <-m.in:
		return f, nil
	case <-m.closed:
		return nil, core.ErrLinkClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Transmit records a copy of f, or returns the error set by FailTransmit.
func (m *Memory) Transmit(f *core.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, f.Clone())
	return nil
}

// FailTransmit makes every later Transmit return err; nil restores success.
func (m *Memory) FailTransmit(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

// Sent returns the frames transmitted so far and forgets them.
func (m *Memory) Sent() []*core.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sent
	m.sent = nil
	return out
}

func (m *Memory) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}
