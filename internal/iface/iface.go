// Package iface holds the router's interface table: the name, hardware
// address and IPv4 address of every port, indexed by the interface number
// used in route entries and frames.
package iface

import (
	"fmt"
	"net"
	"net/netip"

	"firestige.xyz/vrouter/internal/config"
	"firestige.xyz/vrouter/internal/core"
)

// Interface is one router port.
type Interface struct {
	Name string
	MAC  core.MAC
	IP   uint32
}

// Table maps interface numbers to ports and local addresses back to
// interface numbers. It is immutable after New.
type Table struct {
	ifs   []Interface
	local map[uint32]int
	names map[string]int
}

// New builds a table from ifs; the slice position is the interface number.
func New(ifs []Interface) (*Table, error) {
	t := &Table{
		ifs:   make([]Interface, len(ifs)),
		local: make(map[uint32]int, len(ifs)),
		names: make(map[string]int, len(ifs)),
	}
	copy(t.ifs, ifs)
	for i, ifc := range t.ifs {
		if j, dup := t.names[ifc.Name]; dup {
			return nil, fmt.Errorf("interface %s listed twice (%d and %d)", ifc.Name, j, i)
		}
		t.names[ifc.Name] = i
		if ifc.IP == 0 {
			return nil, fmt.Errorf("%w: %s", core.ErrNoIPv4Address, ifc.Name)
		}
		if j, dup := t.local[ifc.IP]; dup {
			return nil, fmt.Errorf("address %s assigned to both %s and %s",
				core.FormatIPv4(ifc.IP), t.ifs[j].Name, ifc.Name)
		}
		t.local[ifc.IP] = i
	}
	return t, nil
}

func (t *Table) Len() int { return len(t.ifs) }

// Name returns "" for an unknown interface number.
func (t *Table) Name(i int) string {
	if !t.valid(i) {
		return ""
	}
	return t.ifs[i].Name
}

// MAC returns the zero MAC for an unknown interface number.
func (t *Table) MAC(i int) core.MAC {
	if !t.valid(i) {
		return core.MAC{}
	}
	return t.ifs[i].MAC
}

// IPv4 returns 0 for an unknown interface number.
func (t *Table) IPv4(i int) uint32 {
	if !t.valid(i) {
		return 0
	}
	return t.ifs[i].IP
}

// Local reports which interface, if any, owns ip.
func (t *Table) Local(ip uint32) (int, bool) {
	i, ok := t.local[ip]
	return i, ok
}

// Index maps an interface name to its number.
func (t *Table) Index(name string) (int, bool) {
	i, ok := t.names[name]
	return i, ok
}

// Interfaces returns a copy of all entries in interface-number order.
func (t *Table) Interfaces() []Interface {
	out := make([]Interface, len(t.ifs))
	copy(out, t.ifs)
	return out
}

func (t *Table) valid(i int) bool { return i >= 0 && i < len(t.ifs) }

type lookupFunc func(name string) (net.HardwareAddr, []net.Addr, error)

// Resolve builds the table from configuration, filling in any MAC or IP
// the configuration leaves empty from the kernel's view of the interface.
func Resolve(cfgs []config.InterfaceConfig) (*Table, error) {
	return resolve(cfgs, kernelLookup)
}

func kernelLookup(name string) (net.HardwareAddr, []net.Addr, error) {
	ifc, err := net.InterfaceByName(name)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", core.ErrUnknownInterface, name, err)
	}
	addrs, err := ifc.Addrs()
	if err != nil {
		return nil, nil, fmt.Errorf("list addresses of %s: %w", name, err)
	}
	return ifc.HardwareAddr, addrs, nil
}

func resolve(cfgs []config.InterfaceConfig, lookup lookupFunc) (*Table, error) {
	ifs := make([]Interface, 0, len(cfgs))
	for _, c := range cfgs {
		ifc := Interface{Name: c.Name}

		if c.MAC != "" {
			mac, err := core.ParseMAC(c.MAC)
			if err != nil {
				return nil, fmt.Errorf("interface %s: %w", c.Name, err)
			}
			ifc.MAC = mac
		}
		if c.IP != "" {
			addr, err := config.ParseInterfaceIP(c.IP)
			if err != nil {
				return nil, fmt.Errorf("interface %s: %w", c.Name, err)
			}
			ifc.IP, _ = core.AddrToUint32(addr)
		}

		if c.MAC == "" || c.IP == "" {
			hw, addrs, err := lookup(c.Name)
			if err != nil {
				return nil, err
			}
			if c.MAC == "" {
				if len(hw) != 6 {
					return nil, fmt.Errorf("interface %s has no ethernet address", c.Name)
				}
				copy(ifc.MAC[:], hw)
			}
			if c.IP == "" {
				ip, ok := firstIPv4(addrs)
				if !ok {
					return nil, fmt.Errorf("%w: %s", core.ErrNoIPv4Address, c.Name)
				}
				ifc.IP = ip
			}
		}
		ifs = append(ifs, ifc)
	}
	return New(ifs)
}

func firstIPv4(addrs []net.Addr) (uint32, bool) {
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		default:
			continue
		}
		addr, ok := netip.AddrFromSlice(ip)
		if !ok {
			continue
		}
		if n, ok := core.AddrToUint32(addr); ok {
			return n, true
		}
	}
	return 0, false
}
