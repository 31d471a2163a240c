package link

import "time"

// AFPacketOptions is decoded from link.options when link.type is afpacket.
type AFPacketOptions struct {
	SnapLen       int           `mapstructure:"snap_len"`
	BufferSizeMB  int           `mapstructure:"buffer_size_mb"` // ring size per port
	PollTimeout   time.Duration `mapstructure:"poll_timeout"`
	Backlog       int           `mapstructure:"backlog"` // frames buffered between readers and Receive
	DisableFilter bool          `mapstructure:"disable_filter"`
}

func (o *AFPacketOptions) applyDefaults() {
	if o.SnapLen <= 0 {
		o.SnapLen = 2048
	}
	if o.BufferSizeMB <= 0 {
		o.BufferSizeMB = 8
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = 100 * time.Millisecond
	}
	if o.Backlog <= 0 {
		o.Backlog = 1024
	}
}

// PcapOptions is decoded from link.options when link.type is pcap.
type PcapOptions struct {
	// Input is replayed as received traffic. Classic pcap files deliver
	// every frame on Interface; pcapng files use each block's interface id.
	Input     string `mapstructure:"input"`
	Interface int    `mapstructure:"interface"`
	// Output collects transmitted frames as pcapng with one interface
	// description per router port. Empty discards them.
	Output  string `mapstructure:"output"`
	SnapLen int    `mapstructure:"snap_len"`
}

func (o *PcapOptions) applyDefaults() {
	if o.SnapLen <= 0 {
		o.SnapLen = 65535
	}
}
