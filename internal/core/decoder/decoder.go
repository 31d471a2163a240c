// Package decoder provides zero-copy views over the IPv4 and ICMP headers
// carried inside a frame buffer. Views alias the frame, so setters mutate
// the frame in place.
package decoder
