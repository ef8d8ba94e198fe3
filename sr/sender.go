// Package sr implements Selective Repeat: per-segment ACKs, a per-segment
// retransmission timer, and a receiver-side reorder buffer, per
// spec.md §4.3.
//
// The outstanding-segment bookkeeping is grounded on two teacher pieces:
// the write-list walk in transport/tcp/snd.go (seg.Next() until the
// window is exhausted) for the "what's still in flight" traversal, and
// ilist.List (an intrusive, allocation-free doubly linked list) for how
// that traversal advances in O(1) as segments leave the list out of
// acknowledgement order — SR, unlike the teacher's cumulative-ack TCP,
// needs to remove an arbitrary interior node when an individual seq is
// acked, which is exactly what ilist.List.Remove is for.
package sr

import (
	"time"

	"github.com/joepengzhou/rdt/buffer"
	"github.com/joepengzhou/rdt/clock"
	"github.com/joepengzhou/rdt/ilist"
	"github.com/joepengzhou/rdt/segment"
	"github.com/sirupsen/logrus"
)

// outstanding is one unacknowledged segment sitting in the sender's
// retransmission buffer. It is linked into Sender.inFlight in seq order,
// via the embedded ilist.Entry, and removed in O(1) the moment it is
// acked.
type outstanding struct {
	ilist.Entry
	seq          uint32
	payload      []byte
	sentAt       time.Duration
	acked        bool
	retransCount int
	timer        clock.Timer
}

// Sender is the Selective Repeat sender-side state machine.
type Sender struct {
	segments [][]byte
	window   uint32
	timeout  time.Duration

	base    uint32
	nextSeq uint32

	inFlight ilist.List
	byitSeq  map[uint32]*outstanding
	timers   *clock.TimerHeap

	retransmissions uint64

	log *logrus.Entry
}

// NewSender builds an SR sender for payload, chunked at mss, with the
// given fixed window and per-segment retransmission timeout.
func NewSender(payload []byte, mss int, window uint32, timeout time.Duration, log *logrus.Entry) *Sender {
	return &Sender{
		segments: chunkPayload(payload, mss),
		window:   window,
		timeout:  timeout,
		byitSeq:  make(map[uint32]*outstanding),
		timers:   clock.NewTimerHeap(),
		log:      log,
	}
}

func chunkPayload(payload []byte, mss int) [][]byte {
	views := buffer.Chunk(buffer.View(payload), mss)
	out := make([][]byte, len(views))
	for i, v := range views {
		out[i] = v
	}
	return out
}

// Start transmits every segment the initial window allows.
func (s *Sender) Start(now time.Duration) []segment.Segment {
	return s.fill(now)
}

// fill transmits every not-yet-sent segment the window currently allows,
// arming a fresh per-segment timer for each.
func (s *Sender) fill(now time.Duration) []segment.Segment {
	var out []segment.Segment
	total := uint32(len(s.segments))
	for s.nextSeq < s.base+s.window && s.nextSeq < total {
		seq := s.nextSeq
		entry := &outstanding{seq: seq, payload: s.segments[seq], sentAt: now}
		entry.timer = s.timers.Start(seq, now+s.timeout)
		s.inFlight.PushBack(entry)
		s.byitSeq[seq] = entry

		out = append(out, segment.Segment{Type: segment.Data, Seq: seq, Payload: entry.payload})
		s.nextSeq++
	}
	return out
}

// OnAck marks seq as acknowledged (SR's ACK acknowledges exactly one
// segment, not a cumulative prefix) and slides base forward past however
// much of the contiguous prefix is now acked. Re-acking an
// already-acked/out-of-window seq is a no-op (idempotent, spec.md §8
// invariant 4), since byitSeq no longer (or never did) contain it.
func (s *Sender) OnAck(now time.Duration, ack segment.Segment) []segment.Segment {
	entry, live := s.byitSeq[ack.Seq]
	if live {
		s.timers.Cancel(entry.timer)
		entry.acked = true
		s.inFlight.Remove(entry)
		delete(s.byitSeq, ack.Seq)
	}
	s.advanceBase()
	return s.fill(now)
}

func (s *Sender) advanceBase() {
	front, ok := s.inFlight.Front().(*outstanding)
	if !ok {
		s.base = s.nextSeq
		return
	}
	s.base = front.seq
}

// NextTimeout reports the earliest pending per-segment timer deadline.
func (s *Sender) NextTimeout() (time.Duration, bool) {
	return s.timers.NextDeadline()
}

// FireTimeout retransmits exactly the segments whose individual timers
// expired, restarting only their own timers (spec.md §4.3).
func (s *Sender) FireTimeout(now time.Duration) []segment.Segment {
	due := s.timers.PopDue(now)
	var out []segment.Segment
	for _, seq := range due {
		entry, live := s.byitSeq[seq]
		if !live || entry.acked {
			continue
		}
		entry.retransCount++
		entry.timer = s.timers.Start(seq, now+s.timeout)
		s.retransmissions++
		out = append(out, segment.Segment{Type: segment.Data, Seq: seq, Payload: entry.payload})
	}
	if s.log != nil && len(out) > 0 {
		s.log.WithField("count", len(out)).Debug("sr: per-segment timeout retransmit")
	}
	return out
}

// Done reports whether every segment has been individually acknowledged.
func (s *Sender) Done() bool {
	return s.base == uint32(len(s.segments))
}

// Retransmissions is the running per-segment retransmission counter.
func (s *Sender) Retransmissions() uint64 { return s.retransmissions }

// TotalSegments is the number of MSS-sized chunks the payload was split into.
func (s *Sender) TotalSegments() int { return len(s.segments) }

func (s *Sender) Base() uint32    { return s.base }
func (s *Sender) NextSeq() uint32 { return s.nextSeq }
func (s *Sender) Window() uint32  { return s.window }

// Outstanding reports how many segments are currently unacknowledged and
// in flight, for tests that check the sender never exceeds its window.
func (s *Sender) Outstanding() int { return len(s.byitSeq) }
