package gbn

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
// zero-delay) in-memory loopback: every DATA segment sent is immediately
// fed to the receiver, and every ACK immediately fed back to the sender.
// This isolates the state machine logic from the channel.
func runLoopback(t *testing.T, s *Sender, r *Receiver, window uint32) {
	t.Helper()
	now := time.Duration(0)
	pending := s.Start(now)
	for steps := 0; !r.Done() && steps < 10000; steps++ {
		if s.NextSeq()-s.Base() > window {
			t.Fatalf("window bound violated: base=%d next=%d window=%d", s.Base(), s.NextSeq(), window)
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
	r := NewReceiver(s.TotalSegments())

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
	r := NewReceiver(s.TotalSegments())
	runLoopback(t, s, r, 4)
	if string(r.Delivered()) != string(payload) {
		t.Fatalf("short final segment mishandled")
	}
}

func TestTimeoutRetransmitsWholeWindow(t *testing.T) {
	payload := makePayload(4096) // 4 segments at mss=1024
	s := NewSender(payload, 1024, 4, 10*time.Millisecond, nil)

	now := time.Duration(0)
	sent := s.Start(now)
	if len(sent) != 4 {
		t.Fatalf("expected all 4 segments sent up front with window=4, got %d", len(sent))
	}

	deadline, ok := s.NextTimeout()
	if !ok {
		t.Fatalf("expected a running timer")
	}

	// Simulate total silence (every DATA and ACK lost) until the timer fires.
	retransmitted := s.FireTimeout(deadline)
	if len(retransmitted) != 4 {
		t.Fatalf("expected go-back-n to resend all 4 outstanding segments, got %d", len(retransmitted))
	}
	if s.Retransmissions() != 4 {
		t.Fatalf("expected retransmission counter to read 4, got %d", s.Retransmissions())
	}
}

func TestStaleAckIsIgnored(t *testing.T) {
	payload := makePayload(4096)
	s := NewSender(payload, 1024, 4, 50*time.Millisecond, nil)
	s.Start(0)

	s.OnAck(0, segment.Segment{Type: segment.Ack, Seq: 2})
	baseAfterFirst := s.Base()
	retxAfterFirst := s.Retransmissions()

	// Feeding the same (now stale) ack again must change nothing.
	s.OnAck(0, segment.Segment{Type: segment.Ack, Seq: 2})
	if s.Base() != baseAfterFirst || s.Retransmissions() != retxAfterFirst {
		t.Fatalf("stale/duplicate ack mutated sender state")
	}

	// An older ack than the current base must also be a no-op.
	s.OnAck(0, segment.Segment{Type: segment.Ack, Seq: 1})
	if s.Base() != baseAfterFirst {
		t.Fatalf("ack older than base moved base backwards")
	}
}

func TestReceiverDropsOutOfOrderAndReAcksLastInOrder(t *testing.T) {
	r := NewReceiver(5)
	acks := r.OnData(0, segment.Segment{Type: segment.Data, Seq: 2, Payload: []byte("x")})
	if acks[0].Seq != 0 {
		t.Fatalf("out-of-order segment should not advance expected, got ack=%d", acks[0].Seq)
	}
	if len(r.Delivered()) != 0 {
		t.Fatalf("out-of-order payload must not be delivered")
	}
}
