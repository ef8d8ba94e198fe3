package sr

import (
	"testing"
	"time"

	"github.com/joepengzhou/rdt/segment"
)

func makePayload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

// runLoopback drives a sender/receiver pair over a perfect (lossless,
// zero-delay) in-memory loopback, checking that the sender never has more
// than window segments in flight and that the receiver's reorder buffer
// never exceeds window either (spec.md §8 invariants 2 and 3).
func runLoopback(t *testing.T, s *Sender, r *Receiver, window uint32) {
	t.Helper()
	now := time.Duration(0)
	pending := s.Start(now)
	for steps := 0; !r.Done() && steps < 10000; steps++ {
		if s.NextSeq()-s.Base() > window {
			t.Fatalf("sender window bound violated: base=%d next=%d window=%d", s.Base(), s.NextSeq(), window)
		}
		if r.Buffered() > int(window) {
			t.Fatalf("receiver reorder buffer exceeded window: buffered=%d window=%d", r.Buffered(), window)
		}
		var nextPending []segment.Segment
		for _, seg := range pending {
			acks := r.OnData(now, seg)
			nextPending = append(nextPending, s.OnAck(now, acks[0])...)
		}
		pending = nextPending
		if len(pending) == 0 && !r.Done() {
			t.Fatalf("sender produced no more segments but receiver is not done (expected=%d total=%d)", r.Expected(), s.TotalSegments())
		}
	}
}

func TestLoselessTransferDeliversExactly(t *testing.T) {
	payload := makePayload(20000)
	s := NewSender(payload, 1024, 4, 100*time.Millisecond, nil)
	r := NewReceiver(s.TotalSegments(), 4)

	runLoopback(t, s, r, 4)

	if !r.Done() {
		t.Fatalf("receiver never completed")
	}
	if string(r.Delivered()) != string(payload) {
		t.Fatalf("delivered bytes do not match input")
	}
	if s.Retransmissions() != 0 {
		t.Fatalf("expected zero retransmissions on a lossless run, got %d", s.Retransmissions())
	}
}

func TestShortFinalSegment(t *testing.T) {
	payload := makePayload(2500) // 1024 + 1024 + 452
	s := NewSender(payload, 1024, 4, 50*time.Millisecond, nil)
	if got, want := s.TotalSegments(), 3; got != want {
		t.Fatalf("expected %d segments, got %d", want, got)
	}
	r := NewReceiver(s.TotalSegments(), 4)
	runLoopback(t, s, r, 4)
	if string(r.Delivered()) != string(payload) {
		t.Fatalf("short final segment mishandled")
	}
}

// TestPerSegmentTimeoutRetransmitsOnlyThatSegment is the defining
// difference from Go-Back-N: losing one segment's ACK costs exactly one
// retransmission, not a whole-window burst.
func TestPerSegmentTimeoutRetransmitsOnlyThatSegment(t *testing.T) {
	payload := makePayload(4096) // 4 segments at mss=1024
	s := NewSender(payload, 1024, 4, 10*time.Millisecond, nil)

	now := time.Duration(0)
	sent := s.Start(now)
	if len(sent) != 4 {
		t.Fatalf("expected all 4 segments sent up front with window=4, got %d", len(sent))
	}

	// Every segment but seq 0 gets acked; seq 0's ack is lost.
	s.OnAck(now, segment.Segment{Type: segment.Ack, Seq: 1})
	s.OnAck(now, segment.Segment{Type: segment.Ack, Seq: 2})
	s.OnAck(now, segment.Segment{Type: segment.Ack, Seq: 3})

	if got, want := s.Outstanding(), 1; got != want {
		t.Fatalf("expected exactly 1 outstanding segment, got %d", got)
	}

	deadline, ok := s.NextTimeout()
	if !ok {
		t.Fatalf("expected seq 0's timer still running")
	}
	retransmitted := s.FireTimeout(deadline)
	if len(retransmitted) != 1 || retransmitted[0].Seq != 0 {
		t.Fatalf("expected selective repeat to resend only seq 0, got %+v", retransmitted)
	}
	if s.Retransmissions() != 1 {
		t.Fatalf("expected retransmission counter to read 1, got %d", s.Retransmissions())
	}
}

func TestIdempotentAckIsANoOp(t *testing.T) {
	payload := makePayload(4096)
	s := NewSender(payload, 1024, 4, 50*time.Millisecond, nil)
	s.Start(0)

	s.OnAck(0, segment.Segment{Type: segment.Ack, Seq: 1})
	baseAfterFirst := s.Base()
	outstandingAfterFirst := s.Outstanding()

	// Re-acking the same segment again must change nothing: it is no
	// longer in byitSeq, so the lookup simply misses.
	s.OnAck(0, segment.Segment{Type: segment.Ack, Seq: 1})
	if s.Base() != baseAfterFirst || s.Outstanding() != outstandingAfterFirst {
		t.Fatalf("duplicate ack mutated sender state")
	}
}

func TestReceiverBuffersOutOfOrderThenDeliversOnGapFill(t *testing.T) {
	r := NewReceiver(3, 4)

	// seq 2 arrives before seq 0 and seq 1: buffered, not delivered.
	acks := r.OnData(0, segment.Segment{Type: segment.Data, Seq: 2, Payload: []byte("c")})
	if acks[0].Seq != 2 {
		t.Fatalf("SR acks the exact seq received, got %d", acks[0].Seq)
	}
	if len(r.Delivered()) != 0 {
		t.Fatalf("out-of-order segment must not be delivered yet")
	}
	if r.Buffered() != 1 {
		t.Fatalf("expected 1 buffered segment, got %d", r.Buffered())
	}

	r.OnData(0, segment.Segment{Type: segment.Data, Seq: 0, Payload: []byte("a")})
	r.OnData(0, segment.Segment{Type: segment.Data, Seq: 1, Payload: []byte("b")})

	if !r.Done() {
		t.Fatalf("expected all 3 segments delivered after the gap filled")
	}
	if string(r.Delivered()) != "abc" {
		t.Fatalf("delivered out of order, got %q", r.Delivered())
	}
	if r.Buffered() != 0 {
		t.Fatalf("expected buffer drained after delivery, got %d entries", r.Buffered())
	}
}

func TestReceiverReAcksAlreadyDeliveredSegment(t *testing.T) {
	r := NewReceiver(2, 4)
	r.OnData(0, segment.Segment{Type: segment.Data, Seq: 0, Payload: []byte("a")})

	// The sender's ACK(0) was lost and it retransmits seq 0; the receiver
	// must still ACK it instead of silently dropping.
	acks := r.OnData(0, segment.Segment{Type: segment.Data, Seq: 0, Payload: []byte("a")})
	if acks[0].Seq != 0 {
		t.Fatalf("expected a re-ack for an already-delivered segment, got %d", acks[0].Seq)
	}
	if len(r.Delivered()) != 1 {
		t.Fatalf("duplicate delivery: expected 1 delivered chunk, got %d", len(r.Delivered()))
	}
}
