package tcplike

import (
	"time"

	"github.com/joepengzhou/rdt/buffer"
	"github.com/joepengzhou/rdt/clock"
	"github.com/joepengzhou/rdt/segment"
	"github.com/sirupsen/logrus"
)

// outstanding is one in-flight segment. acked is set either by the
// cumulative ack sliding past it or by it showing up in a SACK block;
// either way it must never be retransmitted again. retransmitted, once
// set, poisons the segment for RTT sampling (Karn's rule): an ACK that
// eventually arrives for it can't be attributed to the original send or
// the retransmission.
type outstanding struct {
	seq          uint32
	payload      []byte
	sentAt       time.Duration
	acked        bool
	retransmitted bool
	timer        clock.Timer
}

// Sender is the TCP-style sender: Selective Repeat's per-segment timers
// and cumulative+SACK acknowledgement, layered with an adaptive RTO
// (estimator.go) and an optional AIMD window (congestion.go).
type Sender struct {
	segments    [][]byte
	fixedWindow uint32

	base    uint32
	nextSeq uint32

	byitSeq map[uint32]*outstanding
	timers  *clock.TimerHeap

	estimator *rttEstimator
	cc        *congestionControl

	lastCumAck        uint32
	dupCount          int
	fastRetransmitted map[uint32]bool

	retransmissions uint64

	log *logrus.Entry
}

// Config bundles the knobs a TCP-like sender needs beyond plain SR:
// whether AIMD congestion control is active (spec.md §4.4 default OFF).
type Config struct {
	MSS                 int
	Window              uint32
	CongestionControl   bool
}

// NewSender builds a TCP-style sender for payload under cfg.
func NewSender(payload []byte, cfg Config, log *logrus.Entry) *Sender {
	return &Sender{
		segments:          chunkPayload(payload, cfg.MSS),
		fixedWindow:       cfg.Window,
		byitSeq:           make(map[uint32]*outstanding),
		timers:            clock.NewTimerHeap(),
		estimator:         newRTTEstimator(),
		cc:                newCongestionControl(cfg.CongestionControl),
		fastRetransmitted: make(map[uint32]bool),
		log:               log,
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

// Start transmits whatever the initial effective window allows.
func (s *Sender) Start(now time.Duration) []segment.Segment {
	return s.fill(now)
}

func (s *Sender) fill(now time.Duration) []segment.Segment {
	var out []segment.Segment
	total := uint32(len(s.segments))
	win := s.cc.effectiveWindow(s.fixedWindow)
	for s.nextSeq < s.base+win && s.nextSeq < total {
		seq := s.nextSeq
		entry := &outstanding{seq: seq, payload: s.segments[seq], sentAt: now}
		entry.timer = s.timers.Start(seq, now+s.estimator.current())
		s.byitSeq[seq] = entry

		out = append(out, segment.Segment{Type: segment.Data, Seq: seq, Payload: entry.payload})
		s.nextSeq++
	}
	return out
}

// OnAck folds in a cumulative+SACK ack: segments below ack.CumAck slide
// the window base forward (sampling RTT from any that were never
// retransmitted), segments named in the SACK block are marked acked in
// place without moving base, and three consecutive acks reporting the
// same CumAck trigger a fast retransmit of the oldest unacked segment.
func (s *Sender) OnAck(now time.Duration, ack segment.Segment) []segment.Segment {
	for seq := s.base; seq < ack.CumAck; seq++ {
		if entry, live := s.byitSeq[seq]; live {
			s.settle(now, entry)
		}
	}
	if ack.CumAck > s.base {
		s.base = ack.CumAck
	}

	for _, seq := range ack.SACK {
		if entry, live := s.byitSeq[seq]; live && !entry.acked {
			s.settle(now, entry)
		}
	}

	retransmit := s.trackDupAck(now, ack.CumAck)

	out := s.fill(now)
	if retransmit != nil {
		out = append([]segment.Segment{*retransmit}, out...)
	}
	return out
}

// settle marks entry as acknowledged, cancels its timer, folds its round
// trip into the RTT estimator (unless it was ever retransmitted), and
// grows the congestion window: each newly-acked segment is one ack for
// slow start / congestion avoidance to react to.
func (s *Sender) settle(now time.Duration, entry *outstanding) {
	if entry.acked {
		return
	}
	entry.acked = true
	s.timers.Cancel(entry.timer)
	if !entry.retransmitted {
		s.estimator.sample(now - entry.sentAt)
	}
	s.cc.onAck()
}

// trackDupAck updates the duplicate-ack run for cumAck and, on the third
// consecutive ack reporting no progress, fast-retransmits the oldest
// unacked segment, returning it so the caller can hand it back to the
// channel immediately rather than waiting for its timer.
func (s *Sender) trackDupAck(now time.Duration, cumAck uint32) *segment.Segment {
	if cumAck > s.lastCumAck {
		s.lastCumAck = cumAck
		s.dupCount = 0
		s.fastRetransmitted = make(map[uint32]bool)
		return nil
	}
	if cumAck == s.lastCumAck && cumAck < uint32(len(s.segments)) {
		s.dupCount++
		if s.dupCount >= 3 && !s.fastRetransmitted[cumAck] {
			return s.fastRetransmit(now, cumAck)
		}
	}
	return nil
}

func (s *Sender) fastRetransmit(now time.Duration, seq uint32) *segment.Segment {
	entry, live := s.byitSeq[seq]
	if !live || entry.acked {
		return nil
	}
	s.timers.Cancel(entry.timer)
	entry.retransmitted = true
	entry.timer = s.timers.Start(seq, now+s.estimator.current())
	s.retransmissions++
	s.fastRetransmitted[seq] = true
	s.cc.onFastRetransmit()
	if s.log != nil {
		s.log.WithField("seq", seq).Debug("tcplike: 3 duplicate acks, fast retransmit")
	}
	return &segment.Segment{Type: segment.Data, Seq: seq, Payload: entry.payload}
}

// NextTimeout reports the earliest pending per-segment timer deadline.
func (s *Sender) NextTimeout() (time.Duration, bool) {
	return s.timers.NextDeadline()
}

// FireTimeout retransmits every segment whose individual timer expired,
// backs off the RTO, and cuts the congestion window (spec.md §4.4).
func (s *Sender) FireTimeout(now time.Duration) []segment.Segment {
	due := s.timers.PopDue(now)
	var out []segment.Segment
	for _, seq := range due {
		entry, live := s.byitSeq[seq]
		if !live || entry.acked {
			continue
		}
		entry.retransmitted = true
		entry.timer = s.timers.Start(seq, now+s.estimator.current())
		s.retransmissions++
		out = append(out, segment.Segment{Type: segment.Data, Seq: seq, Payload: entry.payload})
	}
	if len(out) > 0 {
		s.estimator.backoff()
		s.cc.onTimeout()
		if s.log != nil {
			s.log.WithField("count", len(out)).Debug("tcplike: retransmission timeout")
		}
	}
	return out
}

// Done reports whether every segment has been acknowledged.
func (s *Sender) Done() bool {
	return s.base == uint32(len(s.segments))
}

// Retransmissions is the running retransmission counter, covering both
// timeout-driven and fast retransmits.
func (s *Sender) Retransmissions() uint64 { return s.retransmissions }

// TotalSegments is the number of MSS-sized chunks the payload was split into.
func (s *Sender) TotalSegments() int { return len(s.segments) }

func (s *Sender) Base() uint32    { return s.base }
func (s *Sender) NextSeq() uint32 { return s.nextSeq }

// RTO exposes the estimator's current timeout, for tests.
func (s *Sender) RTO() time.Duration { return s.estimator.current() }

// Outstanding reports how many segments are currently unacknowledged.
func (s *Sender) Outstanding() int {
	n := 0
	for _, e := range s.byitSeq {
		if !e.acked {
			n++
		}
	}
	return n
}
