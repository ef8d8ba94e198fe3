package gbn

import (
	"time"

	"github.com/joepengzhou/rdt/segment"
)

// Receiver is the GBN receiver-side state machine: a single "expected"
// cursor and nothing else, per spec.md §4.2.
type Receiver struct {
	total    uint32
	expected uint32
	delivered [][]byte
}

// NewReceiver builds a GBN receiver expecting total segments.
func NewReceiver(total int) *Receiver {
	return &Receiver{total: uint32(total)}
}

// OnData processes an inbound DATA segment. A segment that fails the
// checksum is never passed here at all (the channel already collapses
// corruption into "nothing arrived"); OnData only has to handle the
// in-order-vs-not-in-order case.
//
// The ACK's Seq carries "expected" itself (the count of segments received
// in order so far), rather than the classic "expected-1", so that the
// initial ACK before anything has arrived doesn't require representing
// -1 in an unsigned sequence space; see DESIGN.md.
func (r *Receiver) OnData(now time.Duration, data segment.Segment) []segment.Segment {
	if data.Seq == r.expected {
		r.delivered = append(r.delivered, data.Payload)
		r.expected++
	}
	// Whether in-order or not, the cumulative ACK always reports the
	// current expected count: duplicates/out-of-order DATA get the same
	// ACK a correctly-ordered one would have produced just before it.
	return []segment.Segment{{Type: segment.Ack, Seq: r.expected}}
}

// Done reports whether every segment has been delivered in order.
func (r *Receiver) Done() bool {
	return r.expected == r.total
}

// Delivered concatenates everything delivered so far, in order.
func (r *Receiver) Delivered() []byte {
	var out []byte
	for _, p := range r.delivered {
		out = append(out, p...)
	}
	return out
}

// Expected exposes the receiver cursor for tests.
func (r *Receiver) Expected() uint32 { return r.expected }
