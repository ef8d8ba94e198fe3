package segment_test

import (
	"testing"

	"github.com/joepengzhou/rdt/checker"
	"github.com/joepengzhou/rdt/segment"
)

func TestEncodeDecodeData(t *testing.T) {
	in := segment.Segment{Type: segment.Data, Seq: 42, Payload: []byte("hello world")}
	wire := segment.Encode(in)

	checker.Segment(t, wire,
		checker.SegmentType(segment.Data),
		checker.SeqNum(42),
		checker.Payload([]byte("hello world")),
	)
}

func TestEncodeDecodeAckWithTrailer(t *testing.T) {
	in := segment.Segment{Type: segment.Ack, Seq: 7, HasCumAck: true, CumAck: 5, SACK: []uint32{8, 9, 11}}
	wire := segment.Encode(in)

	checker.Segment(t, wire,
		checker.SeqNum(7),
		checker.CumAck(5),
		checker.SACK(8, 9, 11),
	)
}

func TestDecodeRejectsTooShort(t *testing.T) {
	if _, ok := segment.Decode([]byte{1, 2, 3}); ok {
		t.Fatalf("expected decode of a too-short buffer to fail")
	}
}

func TestCorruptionIsDetected(t *testing.T) {
	wire := segment.Encode(segment.Segment{Type: segment.Data, Seq: 1, Payload: []byte("payload bytes")})
	for i := 0; i < len(wire)*8; i++ {
		corrupted := segment.Corrupt(wire, i/8, i%8)
		if _, ok := segment.Decode(corrupted); ok {
			t.Fatalf("bit flip at bit %d went undetected", i)
		}
	}
}

func TestEmptyPayloadAck(t *testing.T) {
	in := segment.Segment{Type: segment.Ack, Seq: 3}
	wire := segment.Encode(in)
	got, ok := segment.Decode(wire)
	if !ok || got.Seq != 3 || len(got.Payload) != 0 {
		t.Fatalf("unexpected decode of bare ack: %+v ok=%v", got, ok)
	}
}
