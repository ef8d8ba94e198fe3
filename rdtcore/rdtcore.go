// Package rdtcore defines the interfaces shared by the three protocol
// engines (gbn, sr, tcplike) so the experiment driver can run any of them
// without knowing which one it has. Each engine is an explicit state
// machine advanced by an event (ACK received, DATA received, timer
// fired), never by a blocking call, per the Design Notes in spec.md §9 —
// this is what makes the deterministic simulated-time driver possible.
package rdtcore

import (
	"time"

	"github.com/joepengzhou/rdt/segment"
)

// Sender is satisfied by gbn.Sender, sr.Sender, and tcplike.Sender.
type Sender interface {
	// Start returns the initial burst of DATA segments the send window
	// allows (the constructor has already split the payload into
	// segments), starting whatever timers it needs.
	Start(now time.Duration) []segment.Segment

	// OnAck processes an inbound ACK and returns any segments the sender
	// transmits as a result (newly-opened window slots).
	OnAck(now time.Duration, ack segment.Segment) []segment.Segment

	// NextTimeout reports the deadline of the sender's earliest pending
	// retransmission timer, if any.
	NextTimeout() (time.Duration, bool)

	// FireTimeout processes every timer due at or before now and returns
	// the retransmitted segments.
	FireTimeout(now time.Duration) []segment.Segment

	// Done reports whether every segment has been acknowledged.
	Done() bool

	// Retransmissions is the running count of segments (GBN) or segment
	// retransmissions (SR/TCP-like) resent due to timeout or fast
	// retransmit.
	Retransmissions() uint64
}

// Receiver is satisfied by gbn.Receiver, sr.Receiver, and
// tcplike.Receiver.
type Receiver interface {
	// OnData processes an inbound DATA segment and returns the ACK(s) to
	// send in response.
	OnData(now time.Duration, data segment.Segment) []segment.Segment

	// Done reports whether every segment through the total has been
	// delivered to the application, in order.
	Done() bool

	// Delivered returns the bytes delivered so far, in order. It must
	// equal the sender's input exactly once Done reports true (the
	// round-trip property, spec.md §8 invariant 1).
	Delivered() []byte
}
