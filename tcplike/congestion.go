package tcplike

// congestionControl is the optional AIMD window per spec.md §4.4: slow
// start until ssthresh, congestion avoidance (one segment of growth per
// round trip) above it, and a multiplicative cut plus fast recovery on
// fast retransmit. It is off by default: the sender's effective window
// is then just the fixed configured window, as in plain SR.
type congestionControl struct {
	enabled bool

	cwnd     float64 // in segments
	ssthresh float64

	// ackedThisRTT counts segments acked since the last per-RTT cwnd
	// bump in congestion avoidance; a full cwnd's worth of acks buys one
	// segment of growth, approximating the classic "+1 MSS per RTT".
	ackedThisRTT float64

	inFastRecovery bool
}

// newCongestionControl seeds cwnd at 1 segment per spec.md §4.4: slow start
// always begins from scratch, regardless of the fixed/advertised window.
func newCongestionControl(enabled bool) *congestionControl {
	return &congestionControl{
		enabled:  enabled,
		cwnd:     1,
		ssthresh: 1 << 20, // effectively unbounded until the first loss
	}
}

// effectiveWindow returns the window the sender should use for this
// transfer: the fixed configured window when congestion control is
// disabled, or min(fixedWindow, cwnd) when enabled.
func (c *congestionControl) effectiveWindow(fixedWindow uint32) uint32 {
	if !c.enabled {
		return fixedWindow
	}
	cw := uint32(c.cwnd)
	if cw < 1 {
		cw = 1
	}
	if cw > fixedWindow {
		return fixedWindow
	}
	return cw
}

// onAck folds in one newly-acknowledged segment: slow start grows cwnd by
// a full segment per ack (exponential), congestion avoidance grows it by
// roughly one segment per RTT's worth of acks (linear).
func (c *congestionControl) onAck() {
	if !c.enabled {
		return
	}
	if c.inFastRecovery {
		c.inFastRecovery = false
	}
	if c.cwnd < c.ssthresh {
		c.cwnd++
		return
	}
	c.ackedThisRTT++
	if c.ackedThisRTT >= c.cwnd {
		c.ackedThisRTT = 0
		c.cwnd++
	}
}

// onFastRetransmit halves cwnd (floor of 2 segments) and enters fast
// recovery, per the classic Reno cut triggered by 3 duplicate ACKs.
func (c *congestionControl) onFastRetransmit() {
	if !c.enabled {
		return
	}
	c.ssthresh = c.cwnd / 2
	if c.ssthresh < 2 {
		c.ssthresh = 2
	}
	c.cwnd = c.ssthresh
	c.inFastRecovery = true
}

// onTimeout is the more severe cut: a timeout means the pipe may be
// empty, so cwnd collapses back to slow start rather than just halving.
func (c *congestionControl) onTimeout() {
	if !c.enabled {
		return
	}
	c.ssthresh = c.cwnd / 2
	if c.ssthresh < 2 {
		c.ssthresh = 2
	}
	c.cwnd = 1
	c.ackedThisRTT = 0
	c.inFastRecovery = false
}
