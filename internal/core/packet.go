// Package core defines core data structures with zero external dependencies.
package core

// Frame is a raw Ethernet frame together with the interface it arrived on
// or is about to leave through. The frame length is len(Data).
type Frame struct {
	Data      []byte
	Interface int
}

// Len returns the frame length in bytes.
func (f *Frame) Len() int {
	return len(f.Data)
}

// Clone returns a deep copy that shares no memory with f.
func (f *Frame) Clone() *Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return &Frame{Data: data, Interface: f.Interface}
}

// EtherDst returns the destination MAC of the frame.
func (f *Frame) EtherDst() MAC {
	var m MAC
	copy(m[:], f.Data[0:6])
	return m
}

// EtherSrc returns the source MAC of the frame.
func (f *Frame) EtherSrc() MAC {
	var m MAC
	copy(m[:], f.Data[6:12])
	return m
}

// EtherType returns the EtherType field.
func (f *Frame) EtherType() uint16 {
	return uint16(f.Data[12])<<8 | uint16(f.Data[13])
}

// SetEtherDst overwrites the destination MAC.
func (f *Frame) SetEtherDst(m MAC) {
	copy(f.Data[0:6], m[:])
}

// SetEtherSrc overwrites the source MAC.
func (f *Frame) SetEtherSrc(m MAC) {
	copy(f.Data[6:12], m[:])
}

// SwapEther exchanges source and destination MACs.
func (f *Frame) SwapEther() {
	for i := 0; i < 6; i++ {
		f.Data[i], f.Data[6+i] = f.Data[6+i], f.Data[i]
	}
}

// Payload returns the bytes after the Ethernet header.
func (f *Frame) Payload() []byte {
	return f.Data[EthernetHeaderLen:]
}
