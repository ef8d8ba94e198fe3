package channel

import (
	"testing"
	"time"

	"github.com/joepengzhou/rdt/segment"
)

func drainAtoB(t *testing.T, c *Channel) []segment.Segment {
	t.Helper()
	var out []segment.Segment
	for {
		dir, at, ok := c.PeekNext()
		if !ok || dir != AtoB {
			break
		}
		seg, ok := c.RecvB(at)
		if ok {
			out = append(out, seg)
		}
	}
	return out
}

func TestNoLossDeliversEverything(t *testing.T) {
	c := New(Config{RTT: 50 * time.Millisecond}, 1)
	for i := uint32(0); i < 10; i++ {
		c.SendAtoB(0, segment.Segment{Type: segment.Data, Seq: i})
	}
	got := drainAtoB(t, c)
	if len(got) != 10 {
		t.Fatalf("expected 10 segments delivered, got %d", len(got))
	}
}

func TestFullLossDropsEverything(t *testing.T) {
	c := New(Config{LossProb: 1.0, RTT: 10 * time.Millisecond}, 2)
	for i := uint32(0); i < 20; i++ {
		c.SendAtoB(0, segment.Segment{Type: segment.Data, Seq: i})
	}
	if _, _, ok := c.PeekNext(); ok {
		t.Fatalf("expected nothing queued with loss_prob=1.0")
	}
	if c.Stats.Lost != 20 {
		t.Fatalf("expected 20 losses recorded, got %d", c.Stats.Lost)
	}
}

func TestSameSeedIsReproducible(t *testing.T) {
	cfg := Config{LossProb: 0.3, RTT: 50 * time.Millisecond, Jitter: 5 * time.Millisecond, CorruptProb: 0.1, ReorderProb: 0.2}

	run := func(seed int64) []uint32 {
		c := New(cfg, seed)
		for i := uint32(0); i < 50; i++ {
			c.SendAtoB(0, segment.Segment{Type: segment.Data, Seq: i})
		}
		var seqs []uint32
		for _, s := range drainAtoB(t, c) {
			seqs = append(seqs, s.Seq)
		}
		return seqs
	}

	a := run(42)
	b := run(42)
	if len(a) != len(b) {
		t.Fatalf("same seed produced different delivery counts: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed diverged at index %d: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestCorruptedSegmentIsUndeliverable(t *testing.T) {
	c := New(Config{CorruptProb: 1.0, RTT: 10 * time.Millisecond}, 7)
	c.SendAtoB(0, segment.Segment{Type: segment.Data, Seq: 1, Payload: []byte("x")})

	_, at, ok := c.PeekNext()
	if !ok {
		t.Fatalf("expected the corrupted segment to still be scheduled")
	}
	if _, ok := c.RecvB(at); ok {
		t.Fatalf("corrupted segment should be indistinguishable from a loss")
	}
	if c.Stats.Corrupted != 1 {
		t.Fatalf("expected corruption to be counted")
	}
}

func TestReorderCanDeliverOutOfSendOrder(t *testing.T) {
	c := New(Config{RTT: 10 * time.Millisecond, Jitter: 4 * time.Millisecond, ReorderProb: 1.0}, 3)
	for i := uint32(0); i < 30; i++ {
		c.SendAtoB(0, segment.Segment{Type: segment.Data, Seq: i})
	}
	got := drainAtoB(t, c)
	if len(got) != 30 {
		t.Fatalf("expected all 30 delivered, got %d", len(got))
	}
	inOrder := true
	for i, s := range got {
		if s.Seq != uint32(i) {
			inOrder = false
			break
		}
	}
	if inOrder {
		t.Fatalf("expected reorder_prob=1.0 to produce at least one out-of-order delivery")
	}
}
