package decoder

import (
	"testing"

	"firestige.xyz/vrouter/internal/core"
)

func makeIPv4Header() []byte {
	return []byte{
		0x45,       // Version 4, IHL 5
		0x00,       // DSCP, ECN
		0x00, 0x1C, // Total Length: 28 bytes
		0x12, 0x34, // Identification
		0x00, 0x00, // Flags, Fragment Offset
		0x40,       // TTL: 64
		0x01,       // Protocol: ICMP
		0xAB, 0xCD, // Checksum
		192, 168, 1, 1, // Src IP
		192, 168, 1, 2, // Dst IP
		0x08, 0x00, 0x00, 0x00, // Payload (ICMP echo request)
		0x00, 0x01, 0x00, 0x02,
	}
}

func TestParseIPv4Basic(t *testing.T) {
	h, err := ParseIPv4(makeIPv4Header())
	if err != nil {
		t.Fatalf("ParseIPv4 failed: %v", err)
	}

	if h.HeaderLen() != 20 {
		t.Errorf("Expected header length 20, got %d", h.HeaderLen())
	}
	if len(h) != 20 {
		t.Errorf("Expected view length 20, got %d", len(h))
	}
	if h.Protocol() != core.ProtoICMP {
		t.Errorf("Expected protocol 1, got %d", h.Protocol())
	}
	if h.TTL() != 64 {
		t.Errorf("Expected TTL 64, got %d", h.TTL())
	}
	if h.Word(WordTotalLen) != 28 {
		t.Errorf("Expected total length 28, got %d", h.Word(WordTotalLen))
	}
	if h.Word(WordChecksum) != 0xABCD {
		t.Errorf("Expected checksum 0xABCD, got 0x%04x", h.Word(WordChecksum))
	}
	if h.Src() != 0xC0A80101 {
		t.Errorf("Expected Src 192.168.1.1, got %s", core.FormatIPv4(h.Src()))
	}
	if h.Dst() != 0xC0A80102 {
		t.Errorf("Expected Dst 192.168.1.2, got %s", core.FormatIPv4(h.Dst()))
	}
}

func TestParseIPv4WithOptions(t *testing.T) {
	data := makeIPv4Header()
	data[0] = 0x46 // IHL 6, one option word
	h, err := ParseIPv4(data)
	if err != nil {
		t.Fatalf("ParseIPv4 failed: %v", err)
	}
	if h.HeaderLen() != 24 {
		t.Errorf("Expected header length 24, got %d", h.HeaderLen())
	}
}

func TestParseIPv4Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"too short", []byte{0x45, 0x00, 0x00}, core.ErrFrameTooShort},
		{"ipv6 version", append([]byte{0x60}, make([]byte, 39)...), ErrNotIPv4},
		{"ihl below minimum", append([]byte{0x44}, make([]byte, 19)...), core.ErrFrameTooShort},
		{"ihl beyond buffer", append([]byte{0x4F}, make([]byte, 19)...), core.ErrFrameTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIPv4(tt.data)
			if err != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSwapAddrs(t *testing.T) {
	h, _ := ParseIPv4(makeIPv4Header())
	h.SwapAddrs()
	if h.Src() != 0xC0A80102 || h.Dst() != 0xC0A80101 {
		t.Errorf("Addresses not swapped: src=%s dst=%s", core.FormatIPv4(h.Src()), core.FormatIPv4(h.Dst()))
	}
	if h.Word(WordChecksum) != 0xABCD {
		t.Errorf("Swap must not touch the checksum field")
	}
}

func TestParseICMP(t *testing.T) {
	data := makeIPv4Header()
	m, err := ParseICMP(data[20:])
	if err != nil {
		t.Fatalf("ParseICMP failed: %v", err)
	}
	if m.Type() != core.ICMPEchoRequest {
		t.Errorf("Expected type 8, got %d", m.Type())
	}
	if _, err := ParseICMP(data[24:]); err != core.ErrFrameTooShort {
		t.Errorf("Expected ErrFrameTooShort, got %v", err)
	}
}

func BenchmarkParseIPv4(b *testing.B) {
	data := makeIPv4Header()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ParseIPv4(data); err != nil {
			b.Fatal(err)
		}
	}
}
