package link

import (
	"golang.org/x/net/bpf"

	"firestige.xyz/vrouter/internal/core"
)

// etherTypeFilter accepts IPv4 and ARP frames, truncated to snapLen bytes,
// and rejects everything else in the kernel.
func etherTypeFilter(snapLen int) []bpf.Instruction {
	return []bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: core.EtherTypeIPv4, SkipTrue: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: core.EtherTypeARP, SkipTrue: 1},
		bpf.RetConstant{Val: 0},
		bpf.RetConstant{Val: uint32(snapLen)},
	}
}

func assembleFilter(snapLen int) ([]bpf.RawInstruction, error) {
	return bpf.Assemble(etherTypeFilter(snapLen))
}
