// Package tcplike builds a TCP-style sender/receiver on top of Selective
// Repeat: the same per-segment ACKs and reorder buffer, plus an adaptive
// retransmission timeout, Karn's rule, 3-dupACK fast retransmit, and an
// optional AIMD congestion window, per spec.md §4.4.
//
// It is grounded on the teacher's transport/tcp RTT machinery
// (transport/tcp/rcv.go's updateRTO/srtt/rttvar fields and the
// Jacobson/Karels update the teacher ports from the BSD stack), carried
// forward into the simulator's virtual-time domain.
package tcplike

import "time"

const (
	rtoAlpha = 0.125
	rtoBeta  = 0.25

	rtoMin = 100 * time.Millisecond
	rtoMax = 60 * time.Second

	// rtoInit is the RTO used before any RTT sample has ever been taken,
	// per the Design Notes.
	rtoInit = 1 * time.Second
)

// rttEstimator implements the Jacobson/Karels SRTT/RTTVAR recurrence
// (RFC 6298) together with Karn's rule: a segment's RTT sample is
// discarded entirely whenever it was ever retransmitted, since a
// returning ACK for a retransmitted segment can't be attributed to
// either the original or the retransmitted send.
type rttEstimator struct {
	srtt    time.Duration
	rttvar  time.Duration
	rto     time.Duration
	sampled bool
}

func newRTTEstimator() *rttEstimator {
	return &rttEstimator{rto: rtoInit}
}

// sample folds one fresh (non-retransmitted) RTT observation into the
// estimator. The first-ever sample seeds srtt=r, rttvar=r/2 per RFC 6298
// §2.2; every subsequent sample applies the standard recurrence, taking
// care to compute rttvar from the OLD srtt before srtt itself is updated.
func (e *rttEstimator) sample(r time.Duration) {
	if !e.sampled {
		e.srtt = r
		e.rttvar = r / 2
		e.sampled = true
	} else {
		diff := e.srtt - r
		if diff < 0 {
			diff = -diff
		}
		e.rttvar = time.Duration((1-rtoBeta)*float64(e.rttvar) + rtoBeta*float64(diff))
		e.srtt = time.Duration((1-rtoAlpha)*float64(e.srtt) + rtoAlpha*float64(r))
	}
	e.rto = e.srtt + 4*e.rttvar
	e.clamp()
}

// backoff doubles the current RTO after a retransmission timeout, per
// the standard exponential-backoff rule, without touching srtt/rttvar
// (those are only ever updated from a Karn-clean sample).
func (e *rttEstimator) backoff() {
	e.rto *= 2
	e.clamp()
}

func (e *rttEstimator) clamp() {
	if e.rto < rtoMin {
		e.rto = rtoMin
	}
	if e.rto > rtoMax {
		e.rto = rtoMax
	}
}

// current returns the RTO to arm the next timer with.
func (e *rttEstimator) current() time.Duration {
	return e.rto
}
