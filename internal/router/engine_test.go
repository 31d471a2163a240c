package router

import (
	"context"
	"errors"
	"testing"

	"github.com/google/gopacket/layers"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firestige.xyz/vrouter/internal/checksum"
	"firestige.xyz/vrouter/internal/core"
	"firestige.xyz/vrouter/internal/iface"
	"firestige.xyz/vrouter/internal/link"
	"firestige.xyz/vrouter/internal/log"
	"firestige.xyz/vrouter/internal/metrics"
	"firestige.xyz/vrouter/internal/route"
	"firestige.xyz/vrouter/internal/testutil"
)

func ip(a, b, c, d byte) uint32 {
	return uint32(a)<<24 | uint32(b)<<16 | uint32(c)<<8 | uint32(d)
}

var (
	macEth0 = core.MAC{0x02, 0, 0, 0, 0, 0x01}
	macEth1 = core.MAC{0x02, 0, 0, 0, 0, 0x02}
	macEth2 = core.MAC{0x02, 0, 0, 0, 0, 0x03}

	macHost = core.MAC{0x0a, 0, 0, 0, 0, 0x01}
	macHop2 = core.MAC{0x0a, 0, 0, 0, 0, 0x64}
	macHop1 = core.MAC{0x0a, 0, 0, 0, 0, 0x0a}

	addrEth0 = ip(192, 168, 0, 1)
	addrEth1 = ip(172, 64, 3, 1)
	addrEth2 = ip(10, 0, 1, 1)
	addrHost = ip(192, 168, 0, 2)
	addrHop2 = ip(10, 0, 1, 100)
	addrHop1 = ip(172, 64, 3, 10)
)

func testInterfaces(t *testing.T) *iface.Table {
	t.Helper()
	tbl, err := iface.New([]iface.Interface{
		{Name: "eth0", MAC: macEth0, IP: addrEth0},
		{Name: "eth1", MAC: macEth1, IP: addrEth1},
		{Name: "eth2", MAC: macEth2, IP: addrEth2},
	})
	require.NoError(t, err)
	return tbl
}

func testRoutes() []route.Route {
	return []route.Route{
		{Prefix: ip(10, 0, 1, 0), Mask: 0xffffff00, NextHop: addrHop2, Interface: 2},
		{Prefix: ip(172, 64, 0, 0), Mask: 0xffff0000, NextHop: addrHop1, Interface: 1},
		{Prefix: ip(192, 168, 0, 0), Mask: 0xffffff00, NextHop: addrHost, Interface: 0},
	}
}

type fixture struct {
	engine *Engine
	link   *link.Memory
}

func newFixture(t *testing.T, routes []route.Route) fixture {
	t.Helper()
	tbl, err := route.Build(routes)
	require.NoError(t, err)
	l := link.NewMemory(16)
	e, err := NewEngine(tbl, testInterfaces(t), l)
	require.NoError(t, err)
	return fixture{engine: e, link: l}
}

func (fx fixture) step(t *testing.T, data []byte, port int) Verdict {
	t.Helper()
	v, err := fx.engine.Step(context.Background(), &core.Frame{Data: data, Interface: port})
	require.NoError(t, err)
	return v
}

func fromHost(dst uint32, ttl uint8, id uint16) testutil.IPv4 {
	return testutil.IPv4{SrcMAC: macHost, DstMAC: macEth0, Src: addrHost, Dst: dst, TTL: ttl, ID: id}
}

func arpReply(sender uint32, senderMAC, to core.MAC, target uint32) testutil.ARP {
	return testutil.ARP{
		EthSrc: senderMAC, EthDst: to,
		Op:        layers.ARPReply,
		SenderMAC: senderMAC, SenderIP: sender,
		TargetMAC: to, TargetIP: target,
	}
}

func TestTimeExceededWithDefaultRoute(t *testing.T) {
	fx := newFixture(t, []route.Route{{Prefix: 0, Mask: 0, NextHop: addrHop1, Interface: 1}})
	data := testutil.UDP(t, fromHost(ip(8, 8, 8, 8), 1, 7), 5000, 53, make([]byte, 18))

	assert.Equal(t, VerdictTimeExceeded, fx.step(t, data, 0))

	sent := fx.link.Sent()
	require.Len(t, sent, 1)
	out := sent[0]
	assert.Equal(t, 0, out.Interface)
	assert.Equal(t, 42, out.Len())
	assert.True(t, checksum.Valid(out.Data[14:34]))

	d := testutil.Decode(t, out.Data)
	assert.Equal(t, macHost, testutil.MAC(d.Eth.DstMAC))
	assert.Equal(t, macEth0, testutil.MAC(d.Eth.SrcMAC))
	assert.Equal(t, ip(8, 8, 8, 8), testutil.Addr(d.IP.SrcIP))
	assert.Equal(t, addrHost, testutil.Addr(d.IP.DstIP))
	assert.Equal(t, uint16(28), d.IP.Length)
	assert.Equal(t, uint8(layers.ICMPv4TypeTimeExceeded), d.ICMP.TypeCode.Type())
	assert.Zero(t, fx.engine.Pending().Len())
}

func TestARPRequestForInterfaceAddress(t *testing.T) {
	fx := newFixture(t, testRoutes())
	req := testutil.ARPFrame(t, testutil.ARP{
		EthSrc: macHost, EthDst: core.BroadcastMAC,
		Op:        layers.ARPRequest,
		SenderMAC: macHost, SenderIP: addrHost,
		TargetIP: addrEth0,
	})

	assert.Equal(t, VerdictARPReply, fx.step(t, req, 0))

	sent := fx.link.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, 0, sent[0].Interface)
	d := testutil.Decode(t, sent[0].Data)
	require.NotNil(t, d.ARP)
	assert.Equal(t, uint16(layers.ARPReply), d.ARP.Operation)
	assert.Equal(t, macEth0, testutil.MAC(d.ARP.SourceHwAddress))
	assert.Equal(t, addrEth0, testutil.Addr(d.ARP.SourceProtAddress))
	assert.Equal(t, macHost, testutil.MAC(d.ARP.DstHwAddress))
	assert.Equal(t, addrHost, testutil.Addr(d.ARP.DstProtAddress))
	assert.Equal(t, macHost, testutil.MAC(d.Eth.DstMAC))
	assert.Equal(t, macEth0, testutil.MAC(d.Eth.SrcMAC))
}

func TestARPRequestForOtherAddressDropped(t *testing.T) {
	fx := newFixture(t, testRoutes())
	req := testutil.ARPFrame(t, testutil.ARP{
		EthSrc: macHost, EthDst: core.BroadcastMAC,
		Op:        layers.ARPRequest,
		SenderMAC: macHost, SenderIP: addrHost,
		TargetIP: addrEth1,
	})

	assert.Equal(t, VerdictDropARPTarget, fx.step(t, req, 0))
	assert.Empty(t, fx.link.Sent())
	assert.Zero(t, fx.engine.Cache().Len())
}

func TestQueueResolveAndForward(t *testing.T) {
	fx := newFixture(t, testRoutes())
	payload := []byte("resolve me please!")
	data := testutil.UDP(t, fromHost(ip(10, 0, 1, 7), 64, 1), 5000, 6000, payload)

	assert.Equal(t, VerdictQueued, fx.step(t, data, 0))
	assert.Equal(t, 1, fx.engine.Pending().Len())
	assert.Equal(t, 1, fx.engine.Pending().Waiting(addrHop2))

	sent := fx.link.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, 2, sent[0].Interface)
	req := testutil.Decode(t, sent[0].Data)
	require.NotNil(t, req.ARP)
	assert.Equal(t, core.BroadcastMAC, testutil.MAC(req.Eth.DstMAC))
	assert.Equal(t, uint16(layers.ARPRequest), req.ARP.Operation)
	assert.Equal(t, addrHop2, testutil.Addr(req.ARP.DstProtAddress))
	assert.Equal(t, addrEth2, testutil.Addr(req.ARP.SourceProtAddress))
	assert.Equal(t, macEth2, testutil.MAC(req.ARP.SourceHwAddress))

	reply := testutil.ARPFrame(t, arpReply(addrHop2, macHop2, macEth2, addrEth2))
	assert.Equal(t, VerdictARPLearned, fx.step(t, reply, 2))
	assert.Zero(t, fx.engine.Pending().Len())

	sent = fx.link.Sent()
	require.Len(t, sent, 1)
	out := sent[0]
	assert.Equal(t, 2, out.Interface)
	assert.True(t, checksum.Valid(out.Data[14:34]))
	d := testutil.Decode(t, out.Data)
	assert.Equal(t, macHop2, testutil.MAC(d.Eth.DstMAC))
	assert.Equal(t, macEth2, testutil.MAC(d.Eth.SrcMAC))
	assert.Equal(t, uint8(63), d.IP.TTL)
	assert.Equal(t, uint16(1), d.IP.Id)
	require.NotNil(t, d.UDP)
	assert.Equal(t, payload, d.UDP.Payload)

	// resolved now: forwarded without queuing
	again := testutil.UDP(t, fromHost(ip(10, 0, 1, 8), 9, 2), 5000, 6000, payload)
	assert.Equal(t, VerdictForwarded, fx.step(t, again, 0))
	sent = fx.link.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, uint8(8), testutil.Decode(t, sent[0].Data).IP.TTL)
}

func TestCorruptedChecksumDropped(t *testing.T) {
	fx := newFixture(t, testRoutes())
	data := testutil.UDP(t, fromHost(ip(10, 0, 1, 7), 64, 1), 5000, 6000, make([]byte, 18))
	data[24] ^= 0xff

	before := promtest.ToFloat64(metrics.FramesTotal.WithLabelValues("drop_checksum"))
	assert.Equal(t, VerdictDropChecksum, fx.step(t, data, 0))
	assert.Equal(t, before+1, promtest.ToFloat64(metrics.FramesTotal.WithLabelValues("drop_checksum")))

	assert.Empty(t, fx.link.Sent())
	assert.Zero(t, fx.engine.Pending().Len())
	assert.Zero(t, fx.engine.Cache().Len())
}

func TestEchoRequestToInterface(t *testing.T) {
	fx := newFixture(t, testRoutes())
	data := testutil.EchoRequest(t, fromHost(addrEth0, 64, 3), 0x1234, 9, []byte("ping payload"))

	assert.Equal(t, VerdictEchoReply, fx.step(t, data, 0))

	sent := fx.link.Sent()
	require.Len(t, sent, 1)
	out := sent[0]
	assert.Equal(t, 0, out.Interface)
	assert.Equal(t, 42, out.Len())
	assert.True(t, checksum.Valid(out.Data[14:34]))
	assert.True(t, checksum.Valid(out.Data[34:42]))

	d := testutil.Decode(t, out.Data)
	assert.Equal(t, addrEth0, testutil.Addr(d.IP.SrcIP))
	assert.Equal(t, addrHost, testutil.Addr(d.IP.DstIP))
	assert.Equal(t, macHost, testutil.MAC(d.Eth.DstMAC))
	assert.Equal(t, uint8(63), d.IP.TTL)
	assert.Equal(t, uint8(layers.ICMPv4TypeEchoReply), d.ICMP.TypeCode.Type())
	assert.Equal(t, uint16(0x1234), d.ICMP.Id)
	assert.Equal(t, uint16(9), d.ICMP.Seq)
}

func TestEchoToOtherLocalAddressDropped(t *testing.T) {
	fx := newFixture(t, testRoutes())
	data := testutil.EchoRequest(t, fromHost(addrEth1, 64, 3), 1, 1, nil)

	assert.Equal(t, VerdictDropLocal, fx.step(t, data, 0))
	assert.Empty(t, fx.link.Sent())
}

func TestNoRouteUnreachable(t *testing.T) {
	fx := newFixture(t, testRoutes())
	data := testutil.UDP(t, fromHost(ip(8, 8, 8, 8), 64, 1), 5000, 53, make([]byte, 18))

	assert.Equal(t, VerdictUnreachable, fx.step(t, data, 0))
	sent := fx.link.Sent()
	require.Len(t, sent, 1)
	d := testutil.Decode(t, sent[0].Data)
	assert.Equal(t, uint8(layers.ICMPv4TypeDestinationUnreachable), d.ICMP.TypeCode.Type())
	assert.Equal(t, addrHost, testutil.Addr(d.IP.DstIP))
}

func TestLinkLayerFilter(t *testing.T) {
	fx := newFixture(t, testRoutes())

	h := fromHost(ip(10, 0, 1, 7), 64, 1)
	h.DstMAC = core.MAC{0x0a, 0xff, 0, 0, 0, 0x01}
	assert.Equal(t, VerdictDropNotForUs, fx.step(t, testutil.UDP(t, h, 1, 2, nil), 0))

	// right MAC, wrong port
	h.DstMAC = macEth0
	assert.Equal(t, VerdictDropNotForUs, fx.step(t, testutil.UDP(t, h, 1, 2, nil), 1))

	ipv6 := testutil.UDP(t, fromHost(ip(10, 0, 1, 7), 64, 1), 1, 2, nil)
	ipv6[12], ipv6[13] = 0x86, 0xdd
	assert.Equal(t, VerdictDropEtherType, fx.step(t, ipv6, 0))

	assert.Equal(t, VerdictDropMalformed, fx.step(t, macEth0[:], 0))
	assert.Equal(t, VerdictDropMalformed, fx.step(t, testutil.UDP(t, h, 1, 2, nil), 7))
	assert.Empty(t, fx.link.Sent())
}

func TestEveryMissSendsRequest(t *testing.T) {
	fx := newFixture(t, testRoutes())
	for id := uint16(1); id <= 2; id++ {
		data := testutil.UDP(t, fromHost(ip(10, 0, 1, 7), 64, id), 1, 2, nil)
		assert.Equal(t, VerdictQueued, fx.step(t, data, 0))
	}
	sent := fx.link.Sent()
	require.Len(t, sent, 2)
	for _, f := range sent {
		assert.Equal(t, uint16(core.EtherTypeARP), f.EtherType())
	}
	assert.Equal(t, 2, fx.engine.Pending().Waiting(addrHop2))
}

func TestDrainPreservesOrderAndPartitions(t *testing.T) {
	fx := newFixture(t, testRoutes())
	for id := uint16(1); id <= 3; id++ {
		fx.step(t, testutil.UDP(t, fromHost(ip(10, 0, 1, 7), 64, id), 1, 2, nil), 0)
		fx.step(t, testutil.UDP(t, fromHost(ip(172, 64, 9, 9), 64, 100+id), 1, 2, nil), 0)
	}
	fx.link.Sent()
	require.Equal(t, 6, fx.engine.Pending().Len())

	fx.step(t, testutil.ARPFrame(t, arpReply(addrHop2, macHop2, macEth2, addrEth2)), 2)

	sent := fx.link.Sent()
	require.Len(t, sent, 3)
	for i, f := range sent {
		d := testutil.Decode(t, f.Data)
		assert.Equal(t, uint16(i+1), d.IP.Id)
		assert.Equal(t, 2, f.Interface)
	}
	assert.Equal(t, 3, fx.engine.Pending().Len())
	assert.Equal(t, []uint32{addrHop1}, fx.engine.Pending().NextHops())
}

func TestDuplicateReplyOverwrites(t *testing.T) {
	fx := newFixture(t, testRoutes())
	fx.step(t, testutil.ARPFrame(t, arpReply(addrHop2, macHop2, macEth2, addrEth2)), 2)
	moved := core.MAC{0x0a, 0, 0, 0, 0, 0x65}
	fx.step(t, testutil.ARPFrame(t, arpReply(addrHop2, moved, macEth2, addrEth2)), 2)

	assert.Equal(t, 1, fx.engine.Cache().Len())
	mac, ok := fx.engine.Cache().Lookup(addrHop2)
	assert.True(t, ok)
	assert.Equal(t, moved, mac)
}

func TestDrainReroutes(t *testing.T) {
	fx := newFixture(t, testRoutes())
	fx.step(t, testutil.UDP(t, fromHost(ip(10, 0, 1, 7), 64, 1), 1, 2, nil), 0)
	fx.step(t, testutil.UDP(t, fromHost(ip(10, 0, 1, 8), 64, 2), 1, 2, nil), 0)
	fx.link.Sent()

	// 10.0.1.7 now goes via eth1 and 10.0.1.8 has no route at all
	tbl, err := route.Build([]route.Route{
		{Prefix: ip(10, 0, 1, 7), Mask: 0xffffffff, NextHop: addrHop1, Interface: 1},
	})
	require.NoError(t, err)
	fx.engine.routes = tbl

	fx.step(t, testutil.ARPFrame(t, arpReply(addrHop2, macHop2, macEth2, addrEth2)), 2)

	sent := fx.link.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, uint16(core.EtherTypeARP), sent[0].EtherType())
	assert.Equal(t, 1, sent[0].Interface)
	d := testutil.Decode(t, sent[1].Data)
	assert.Equal(t, 0, sent[1].Interface)
	assert.Equal(t, uint8(layers.ICMPv4TypeDestinationUnreachable), d.ICMP.TypeCode.Type())
	assert.Equal(t, addrHost, testutil.Addr(d.IP.DstIP))

	assert.Zero(t, fx.engine.Pending().Waiting(addrHop2))
	assert.Equal(t, 1, fx.engine.Pending().Waiting(addrHop1))
	assert.Equal(t, 1, fx.engine.Pending().Len())

	fx.step(t, testutil.ARPFrame(t, arpReply(addrHop1, macHop1, macEth1, addrEth1)), 1)

	sent = fx.link.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, 1, sent[0].Interface)
	assert.Equal(t, macHop1, sent[0].EtherDst())
	assert.Equal(t, macEth1, sent[0].EtherSrc())
	assert.Equal(t, uint16(1), testutil.Decode(t, sent[0].Data).IP.Id)
	assert.Zero(t, fx.engine.Pending().Len())
}

func TestDrainReroutesToResolvedHop(t *testing.T) {
	fx := newFixture(t, testRoutes())
	fx.step(t, testutil.ARPFrame(t, arpReply(addrHop1, macHop1, macEth1, addrEth1)), 1)
	fx.step(t, testutil.UDP(t, fromHost(ip(10, 0, 1, 7), 64, 1), 1, 2, nil), 0)
	fx.link.Sent()

	tbl, err := route.Build([]route.Route{
		{Prefix: ip(10, 0, 1, 0), Mask: 0xffffff00, NextHop: addrHop1, Interface: 1},
	})
	require.NoError(t, err)
	fx.engine.routes = tbl

	fx.step(t, testutil.ARPFrame(t, arpReply(addrHop2, macHop2, macEth2, addrEth2)), 2)

	sent := fx.link.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, 1, sent[0].Interface)
	assert.Equal(t, macHop1, sent[0].EtherDst())
	assert.Zero(t, fx.engine.Pending().Len())
}

func TestTransmitFailureIsFatal(t *testing.T) {
	fx := newFixture(t, testRoutes())
	errDown := errors.New("network is down")
	fx.link.FailTransmit(errDown)

	before := promtest.ToFloat64(metrics.TransmitErrorsTotal.WithLabelValues("0"))
	data := testutil.EchoRequest(t, fromHost(addrEth0, 64, 3), 1, 1, nil)
	_, err := fx.engine.Step(context.Background(), &core.Frame{Data: data, Interface: 0})
	assert.True(t, errors.Is(err, errDown))
	assert.Equal(t, before+1, promtest.ToFloat64(metrics.TransmitErrorsTotal.WithLabelValues("0")))
}

func TestNewEngineRejectsUnknownInterface(t *testing.T) {
	tbl, err := route.Build([]route.Route{{Prefix: 0, Mask: 0, NextHop: 1, Interface: 3}})
	require.NoError(t, err)
	_, err = NewEngine(tbl, testInterfaces(t), link.NewMemory(1))
	assert.True(t, errors.Is(err, core.ErrUnknownInterface))
}

func TestRunUntilLinkCloses(t *testing.T) {
	fx := newFixture(t, testRoutes())
	fx.link.Inject(&core.Frame{Data: testutil.EchoRequest(t, fromHost(addrEth0, 64, 1), 1, 1, nil), Interface: 0})
	fx.link.Inject(&core.Frame{Data: testutil.UDP(t, fromHost(ip(10, 0, 1, 7), 64, 2), 1, 2, nil), Interface: 0})
	require.NoError(t, fx.link.Close())

	require.NoError(t, fx.engine.Run(context.Background()))
	assert.Len(t, fx.link.Sent(), 2)
	assert.Equal(t, 1, fx.engine.Pending().Len())
}

type mockLink struct {
	mock.Mock
}

func (m *mockLink) Receive(ctx context.Context) (*core.Frame, error) {
	args := m.Called(ctx)
	f, _ := args.Get(0).(*core.Frame)
	return f, args.Error(1)
}

func (m *mockLink) Transmit(f *core.Frame) error {
	return m.Called(f).Error(0)
}

func (m *mockLink) Close() error {
	return m.Called().Error(0)
}

func newMockEngine(t *testing.T, l link.Link) *Engine {
	t.Helper()
	tbl, err := route.Build(testRoutes())
	require.NoError(t, err)
	e, err := NewEngine(tbl, testInterfaces(t), l)
	require.NoError(t, err)
	return e
}

func TestRunReceiveError(t *testing.T) {
	l := &mockLink{}
	errRead := errors.New("socket gone")
	l.On("Receive", mock.Anything).Return(nil, errRead).Once()

	err := newMockEngine(t, l).Run(context.Background())
	assert.True(t, errors.Is(err, errRead))
	l.AssertExpectations(t)
}

func TestRunTransmitError(t *testing.T) {
	l := &mockLink{}
	errTx := errors.New("no buffer space")
	echo := &core.Frame{Data: testutil.EchoRequest(t, fromHost(addrEth0, 64, 1), 1, 1, nil), Interface: 0}
	l.On("Receive", mock.Anything).Return(echo, nil).Once()
	l.On("Transmit", mock.MatchedBy(func(f *core.Frame) bool { return f.Interface == 0 })).Return(errTx).Once()

	err := newMockEngine(t, l).Run(context.Background())
	assert.True(t, errors.Is(err, errTx))
	l.AssertExpectations(t)
}

func TestRunTransmitOnClosedLinkAfterCancel(t *testing.T) {
	fx := newFixture(t, testRoutes())
	ctx, cancel := context.WithCancel(context.Background())
	fx.link.FailTransmit(core.ErrLinkClosed)
	fx.link.Inject(&core.Frame{Data: testutil.EchoRequest(t, fromHost(addrEth0, 64, 1), 1, 1, nil), Interface: 0})
	cancel()

	assert.NoError(t, fx.engine.Run(ctx))
}

func TestRunTransmitOnClosedLinkIsFatalWhileRunning(t *testing.T) {
	fx := newFixture(t, testRoutes())
	fx.link.FailTransmit(core.ErrLinkClosed)
	fx.link.Inject(&core.Frame{Data: testutil.EchoRequest(t, fromHost(addrEth0, 64, 1), 1, 1, nil), Interface: 0})

	err := fx.engine.Run(context.Background())
	assert.True(t, errors.Is(err, core.ErrLinkClosed))
}

func TestEngineFollowsLogReload(t *testing.T) {
	t.Cleanup(func() { require.NoError(t, log.Init(log.Config{})) })

	require.NoError(t, log.Init(log.Config{Level: "info"}))
	fx := newFixture(t, testRoutes())
	assert.False(t, fx.engine.log.IsDebugEnabled())

	require.NoError(t, log.Init(log.Config{Level: "debug"}))
	assert.True(t, fx.engine.log.IsDebugEnabled())
	assert.False(t, fx.engine.log.IsTraceEnabled())
}

func TestRunStopsOnCancel(t *testing.T) {
	l := &mockLink{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.On("Receive", mock.Anything).Return(nil, context.Canceled).Once()

	assert.NoError(t, newMockEngine(t, l).Run(ctx))
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "forwarded", VerdictForwarded.String())
	assert.Equal(t, "drop_arp_target", VerdictDropARPTarget.String())
	assert.Equal(t, "unknown", Verdict(99).String())
	assert.True(t, VerdictDropChecksum.Dropped())
	assert.False(t, VerdictQueued.Dropped())
}
