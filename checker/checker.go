// Package checker provides composable assertions over decoded segments,
// in the combinator style of checker.IPv4(t, b, checker.SrcAddr(x), ...):
// decode once, then run however many independent field checks the caller
// wants against the result.
package checker

import (
	"testing"

	"github.com/joepengzhou/rdt/segment"
)

// SegmentChecker is a function that checks one property of a decoded
// segment.
type SegmentChecker func(*testing.T, segment.Segment)

// Segment decodes wire and runs every checker against the result. It
// fails the test immediately if wire doesn't decode at all (a bad
// checksum or truncated buffer), since none of the field checkers have
// anything to check in that case.
func Segment(t *testing.T, wire []byte, checkers ...SegmentChecker) segment.Segment {
	t.Helper()
	got, ok := segment.Decode(wire)
	if !ok {
		t.Fatalf("segment failed to decode (bad checksum or truncated)")
	}
	for _, c := range checkers {
		c(t, got)
	}
	return got
}

// SegmentType checks the decoded type (DATA or ACK).
func SegmentType(want segment.Type) SegmentChecker {
	return func(t *testing.T, s segment.Segment) {
		t.Helper()
		if s.Type != want {
			t.Fatalf("bad type: got %v, want %v", s.Type, want)
		}
	}
}

// SeqNum checks the segment's Seq field.
func SeqNum(want uint32) SegmentChecker {
	return func(t *testing.T, s segment.Segment) {
		t.Helper()
		if s.Seq != want {
			t.Fatalf("bad seq: got %d, want %d", s.Seq, want)
		}
	}
}

// Payload checks the segment's payload bytes exactly.
func Payload(want []byte) SegmentChecker {
	return func(t *testing.T, s segment.Segment) {
		t.Helper()
		if string(s.Payload) != string(want) {
			t.Fatalf("bad payload: got %q, want %q", s.Payload, want)
		}
	}
}

// CumAck checks the trailer's cumulative ack field, requiring HasCumAck.
func CumAck(want uint32) SegmentChecker {
	return func(t *testing.T, s segment.Segment) {
		t.Helper()
		if !s.HasCumAck {
			t.Fatalf("expected a cumulative ack trailer, found none")
		}
		if s.CumAck != want {
			t.Fatalf("bad cum ack: got %d, want %d", s.CumAck, want)
		}
	}
}

// SACK checks the trailer's SACK block matches want exactly, in order.
func SACK(want ...uint32) SegmentChecker {
	return func(t *testing.T, s segment.Segment) {
		t.Helper()
		if len(s.SACK) != len(want) {
			t.Fatalf("bad sack length: got %v, want %v", s.SACK, want)
		}
		for i := range want {
			if s.SACK[i] != want[i] {
				t.Fatalf("bad sack block: got %v, want %v", s.SACK, want)
			}
		}
	}
}
