// Package channel implements the UnreliableChannel: an in-process,
// bidirectional datagram pipe that loses, delays, corrupts, and reorders
// segments between two simulated endpoints, A and B (spec.md §4.1).
//
// It is grounded on the teacher's link/channel.Endpoint (an in-memory
// link-layer endpoint that stores outbound packets in a Go channel and
// allows injecting inbound ones), generalized from a single unbuffered
// pipe into a time-ordered event queue so loss/delay/jitter/reorder can
// be modeled explicitly rather than relying on goroutine scheduling.
package channel

import (
	"container/heap"
	"math/rand"
	"time"

	"github.com/joepengzhou/rdt/segment"
)

// Direction identifies which endpoint a segment is travelling towards.
type Direction int

const (
	AtoB Direction = iota
	BtoA
)

func (d Direction) String() string {
	if d == AtoB {
		return "A->B"
	}
	return "B->A"
}

// Config holds the loss/delay/corruption/reorder parameters enumerated in
// spec.md §4.1.
type Config struct {
	// LossProb is the independent Bernoulli drop probability per send.
	LossProb float64
	// RTT is the base round trip time; one-way delay is RTT/2.
	RTT time.Duration
	// Jitter is the maximum uniform additive noise applied to each
	// delivery, in either direction (delay in [oneWay-Jitter, oneWay+Jitter],
	// clamped to be non-negative).
	Jitter time.Duration
	// CorruptProb flips a bit of the encoded segment with this probability.
	CorruptProb float64
	// ReorderProb, independently of jitter, swaps a newly scheduled
	// event's delivery time with a random already-queued event travelling
	// in the same direction.
	ReorderProb float64
}

// event is the channel's internal ChannelEvent (spec.md §3): a segment in
// flight, due for delivery at a given virtual time.
type event struct {
	deliverAt time.Duration
	seq       uint64 // insertion order, breaks deliverAt ties
	dir       Direction
	wire      []byte
	index     int
}

type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].deliverAt != h[j].deliverAt {
		return h[i].deliverAt < h[j].deliverAt
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *eventHeap) Push(x any) {
	e := x.(*event)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Stats accumulates channel-level counters over the life of a Channel.
type Stats struct {
	Sent       uint64
	Lost       uint64
	Corrupted  uint64
	Reordered  uint64
	Delivered  uint64
}

// Channel is the UnreliableChannel. A single seeded PRNG family (one
// sub-stream per concern, so reproducibility survives unrelated parameter
// changes, per spec.md §9) drives loss, jitter, corruption, and reorder
// decisions; a Channel must never consult math/rand's global source.
type Channel struct {
	cfg Config

	lossRng     *rand.Rand
	jitterRng   *rand.Rand
	corruptRng  *rand.Rand
	reorderRng  *rand.Rand

	events  eventHeap
	nextSeq uint64

	Stats Stats
}

// New constructs a Channel configured by cfg, seeded from seed so that the
// same (cfg, seed) pair always produces the same sequence of
// drops/delays/corruptions/reorders.
func New(cfg Config, seed int64) *Channel {
	return &Channel{
		cfg:        cfg,
		lossRng:    rand.New(rand.NewSource(seed ^ 0x5151_5151_5151)),
		jitterRng:  rand.New(rand.NewSource(seed ^ 0x6262_6262_6262)),
		corruptRng: rand.New(rand.NewSource(seed ^ 0x7373_7373_7373)),
		reorderRng: rand.New(rand.NewSource(seed ^ 0x8484_8484_8484)),
	}
}

// SendAtoB enqueues seg for delivery at endpoint B, per send_a_to_b.
func (c *Channel) SendAtoB(now time.Duration, seg segment.Segment) {
	c.send(now, AtoB, seg)
}

// SendBtoA enqueues seg for delivery at endpoint A, per send_b_to_a.
func (c *Channel) SendBtoA(now time.Duration, seg segment.Segment) {
	c.send(now, BtoA, seg)
}

func (c *Channel) send(now time.Duration, dir Direction, seg segment.Segment) {
	c.Stats.Sent++

	if c.lossRng.Float64() < c.cfg.LossProb {
		c.Stats.Lost++
		return
	}

	wire := segment.Encode(seg)
	if c.cfg.CorruptProb > 0 && c.corruptRng.Float64() < c.cfg.CorruptProb {
		bit := c.corruptRng.Intn(len(wire) * 8)
		wire = segment.Corrupt(wire, bit/8, bit%8)
		c.Stats.Corrupted++
	}

	oneWay := c.cfg.RTT / 2
	delay := oneWay
	if c.cfg.Jitter > 0 {
		noise := time.Duration((c.jitterRng.Float64()*2 - 1) * float64(c.cfg.Jitter))
		delay += noise
		if delay < 0 {
			delay = 0
		}
	}

	e := &event{deliverAt: now + delay, seq: c.nextSeq, dir: dir, wire: wire}
	c.nextSeq++
	heap.Push(&c.events, e)

	if c.cfg.ReorderProb > 0 && c.reorderRng.Float64() < c.cfg.ReorderProb {
		c.reorderAgainst(e)
	}
}

// reorderAgainst swaps e's delivery time with a uniformly random other
// queued event travelling in the same direction, per spec.md §4.1 ("swap
// delivery time with a random already-queued event in the same
// direction").
func (c *Channel) reorderAgainst(e *event) {
	var candidates []*event
	for _, other := range c.events {
		if other != e && other.dir == e.dir {
			candidates = append(candidates, other)
		}
	}
	if len(candidates) == 0 {
		return
	}
	other := candidates[c.reorderRng.Intn(len(candidates))]
	e.deliverAt, other.deliverAt = other.deliverAt, e.deliverAt
	heap.Fix(&c.events, e.index)
	heap.Fix(&c.events, other.index)
	c.Stats.Reordered++
}

// PeekNext reports the direction and delivery time of the earliest
// still-queued event, across both directions. The driver uses this to
// decide whether the channel or a sender timer is the next thing to
// process, and, if the channel, which of RecvA/RecvB to call.
func (c *Channel) PeekNext() (dir Direction, at time.Duration, ok bool) {
	if c.events.Len() == 0 {
		return 0, 0, false
	}
	return c.events[0].dir, c.events[0].deliverAt, true
}

// Timeout is the sentinel returned by Recv* when no segment is ready.
var Timeout = segment.Segment{}

// RecvA delivers the next segment addressed to endpoint A whose
// deliverAt is <= now, if any, per recv_a(timeout). The caller is
// expected to have already advanced its clock to the event it intends to
// process; RecvA/RecvB never block.
func (c *Channel) RecvA(now time.Duration) (segment.Segment, bool) {
	return c.recv(now, BtoA)
}

// RecvB delivers the next segment addressed to endpoint B, per recv_b.
func (c *Channel) RecvB(now time.Duration) (segment.Segment, bool) {
	return c.recv(now, AtoB)
}

func (c *Channel) recv(now time.Duration, dir Direction) (segment.Segment, bool) {
	if c.events.Len() == 0 || c.events[0].deliverAt > now || c.events[0].dir != dir {
		return segment.Segment{}, false
	}
	e := heap.Pop(&c.events).(*event)
	c.Stats.Delivered++
	seg, ok := segment.Decode(e.wire)
	if !ok {
		// Corruption is indistinguishable from loss at the receiver
		// (spec.md §4.1 and the InvariantViolation note in §7): the
		// segment was "delivered" but must be treated as never arrived.
		return segment.Segment{}, false
	}
	return seg, true
}
