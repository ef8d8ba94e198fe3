// Package gbn implements Go-Back-N: a cumulative-ACK sliding window with
// a single retransmission timer for the oldest unacknowledged segment,
// per spec.md §4.2.
//
// It is grounded on the teacher's transport/tcp sender
// (transport/tcp/snd.go), keeping its sndUna/sndNxt/sndWnd naming style
// and its "walk the write list, send whatever the window allows, then
// remember where to resume" sendData loop, generalized from TCP's
// byte-oriented sequence space to the spec's segment-indexed one and
// simplified to GBN's single shared timer (the teacher's per-connection
// resendWaker) instead of TCP's richer per-segment bookkeeping.
package gbn

import (
	"time"

	"github.com/joepengzhou/rdt/buffer"
	"github.com/joepengzhou/rdt/clock"
	"github.com/joepengzhou/rdt/segment"
	"github.com/sirupsen/logrus"
)

// Sender is the GBN sender-side state machine.
type Sender struct {
	segments [][]byte // payload chunked at MSS
	window   uint32
	timeout  time.Duration // fixed retransmission timeout, e.g. 2*RTT

	base    uint32 // oldest unacknowledged segment
	nextSeq uint32 // next segment to transmit

	timers *clock.TimerHeap
	timer  clock.Timer
	timing bool

	retransmissions uint64

	log *logrus.Entry
}

// NewSender builds a GBN sender for payload, split into mss-sized chunks,
// with the given fixed window and retransmission timeout.
func NewSender(payload []byte, mss int, window uint32, timeout time.Duration, log *logrus.Entry) *Sender {
	return &Sender{
		segments: chunk(payload, mss),
		window:   window,
		timeout:  timeout,
		timers:   clock.NewTimerHeap(),
		log:      log,
	}
}

func chunk(payload []byte, mss int) [][]byte {
	views := buffer.Chunk(buffer.View(payload), mss)
	out := make([][]byte, len(views))
	for i, v := range views {
		out[i] = v
	}
	return out
}

// Start sends the initial window's worth of segments.
func (s *Sender) Start(now time.Duration) []segment.Segment {
	return s.sendWindow(now)
}

// sendWindow transmits every not-yet-sent segment the window currently
// allows, starting the shared timer if it isn't already running.
func (s *Sender) sendWindow(now time.Duration) []segment.Segment {
	var out []segment.Segment
	total := uint32(len(s.segments))
	for s.nextSeq < s.base+s.window && s.nextSeq < total {
		out = append(out, segment.Segment{
			Type:    segment.Data,
			Seq:     s.nextSeq,
			Payload: s.segments[s.nextSeq],
		})
		s.nextSeq++
	}
	if len(out) > 0 && !s.timing {
		s.startTimer(now)
	}
	return out
}

func (s *Sender) startTimer(now time.Duration) {
	s.timer = s.timers.Start(s.base, now+s.timeout)
	s.timing = true
}

func (s *Sender) stopTimer() {
	if s.timing {
		s.timers.Cancel(s.timer)
		s.timing = false
	}
}

// OnAck handles a cumulative ACK: "ack.Seq" is the receiver's expected
// count (see segment.Segment doc), i.e. "all segments with seq < ack.Seq
// have arrived in order". ACKs that don't move base forward are stale or
// duplicate and are ignored outright, which is what gives GBN its
// idempotent-ACK property (spec.md §8 invariant 4).
func (s *Sender) OnAck(now time.Duration, ack segment.Segment) []segment.Segment {
	if ack.Seq <= s.base {
		return nil
	}
	s.base = ack.Seq
	s.stopTimer()
	if s.base != s.nextSeq {
		s.startTimer(now)
	}
	return s.sendWindow(now)
}

// NextTimeout reports the shared timer's deadline, if running.
func (s *Sender) NextTimeout() (time.Duration, bool) {
	return s.timers.NextDeadline()
}

// FireTimeout retransmits every outstanding segment in [base, nextSeq),
// in order, incrementing the retransmission counter by that many
// segments at once (spec.md §4.2).
func (s *Sender) FireTimeout(now time.Duration) []segment.Segment {
	due := s.timers.PopDue(now)
	if len(due) == 0 {
		return nil
	}
	s.timing = false

	var out []segment.Segment
	for seq := s.base; seq < s.nextSeq; seq++ {
		out = append(out, segment.Segment{Type: segment.Data, Seq: seq, Payload: s.segments[seq]})
	}
	s.retransmissions += uint64(len(out))
	if s.log != nil {
		s.log.WithFields(logrus.Fields{"base": s.base, "next_seq": s.nextSeq}).Debug("gbn: timeout, go-back-n retransmit burst")
	}
	if len(out) > 0 {
		s.startTimer(now)
	}
	return out
}

// Done reports whether every segment has been acknowledged.
func (s *Sender) Done() bool {
	return s.base == uint32(len(s.segments))
}

// Retransmissions is the running retransmission counter.
func (s *Sender) Retransmissions() uint64 {
	return s.retransmissions
}

// TotalSegments is the number of MSS-sized chunks the payload was split
// into; the driver uses it to size the receiver and to compute goodput.
func (s *Sender) TotalSegments() int { return len(s.segments) }

// Base and NextSeq expose sender bookkeeping for the window-bound
// invariant check in tests (spec.md §8 invariant 2).
func (s *Sender) Base() uint32    { return s.base }
func (s *Sender) NextSeq() uint32 { return s.nextSeq }
func (s *Sender) Window() uint32  { return s.window }
