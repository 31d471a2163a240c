package router

// Verdict is the terminal action the engine took for one received frame.
type Verdict int

const (
	VerdictForwarded Verdict = iota
	VerdictQueued
	VerdictEchoReply
	VerdictTimeExceeded
	VerdictUnreachable
	VerdictARPReply
	VerdictARPLearned

	VerdictDropNotForUs
	VerdictDropEtherType
	VerdictDropMalformed
	VerdictDropLocal
	VerdictDropChecksum
	VerdictDropARPTarget
)

var verdictNames = [...]string{
	VerdictForwarded:     "forwarded",
	VerdictQueued:        "queued",
	VerdictEchoReply:     "echo_reply",
	VerdictTimeExceeded:  "time_exceeded",
	VerdictUnreachable:   "unreachable",
	VerdictARPReply:      "arp_reply",
	VerdictARPLearned:    "arp_learned",
	VerdictDropNotForUs:  "drop_not_for_us",
	VerdictDropEtherType: "drop_ethertype",
	VerdictDropMalformed: "drop_malformed",
	VerdictDropLocal:     "drop_local",
	VerdictDropChecksum:  "drop_checksum",
	VerdictDropARPTarget: "drop_arp_target",
}

func (v Verdict) String() string {
	if v >= 0 && int(v) < len(verdictNames) {
		return verdictNames[v]
	}
	return "unknown"
}

// Dropped reports whether the frame was discarded without any transmission.
func (v Verdict) Dropped() bool {
	return v >= VerdictDropNotForUs
}
