package experiment

import (
	"time"

	"github.com/joepengzhou/rdt/channel"
	"github.com/joepengzhou/rdt/clock"
	"github.com/joepengzhou/rdt/gbn"
	"github.com/joepengzhou/rdt/rdtcore"
	"github.com/joepengzhou/rdt/sr"
	"github.com/joepengzhou/rdt/tcplike"
	"github.com/sirupsen/logrus"
)

// Result is what one RunTransfer call reports, per spec.md §8's run
// summary fields.
type Result struct {
	Scenario         string        `yaml:"scenario"`
	ElapsedVirtual   time.Duration `yaml:"elapsed_virtual"`
	BytesSent        int           `yaml:"bytes_sent"`
	Retransmissions  uint64        `yaml:"retransmissions"`
	ChannelSent      uint64        `yaml:"channel_sent"`
	ChannelLost      uint64        `yaml:"channel_lost"`
	ChannelCorrupted uint64        `yaml:"channel_corrupted"`
	ChannelReordered uint64        `yaml:"channel_reordered"`
	Success          bool          `yaml:"success"`
	Err              error         `yaml:"error,omitempty"`
}

func buildPayload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func buildEngines(s Scenario, log *logrus.Entry) (rdtcore.Sender, rdtcore.Receiver, int) {
	payload := buildPayload(s.Bytes)
	switch s.Protocol {
	case "gbn":
		snd := gbn.NewSender(payload, s.MSS, s.Window, s.Timeout.AsDuration(), log)
		rcv := gbn.NewReceiver(snd.TotalSegments())
		return snd, rcv, snd.TotalSegments()
	case "sr":
		snd := sr.NewSender(payload, s.MSS, s.Window, s.Timeout.AsDuration(), log)
		rcv := sr.NewReceiver(snd.TotalSegments(), s.Window)
		return snd, rcv, snd.TotalSegments()
	case "tcplike":
		cfg := tcplike.Config{MSS: s.MSS, Window: s.Window, CongestionControl: s.CongestionControl}
		snd := tcplike.NewSender(payload, cfg, log)
		rcv := tcplike.NewReceiver(snd.TotalSegments(), s.Window)
		return snd, rcv, snd.TotalSegments()
	}
	return nil, nil, 0
}

// RunTransfer drives one complete, single-threaded, deterministic
// simulation of scenario s to completion (or to its safety bound), per
// spec.md §5's discrete-event scheduling model: the loop always advances
// the clock to whichever of the channel's next delivery or the sender's
// next retransmission timer comes first, never sleeping in wall-clock
// time.
func RunTransfer(s Scenario, log *logrus.Entry) Result {
	if err := s.Validate(); err != nil {
		return Result{Scenario: s.Name, Success: false, Err: err}
	}

	snd, rcv, total := buildEngines(s, log)
	if total == 0 {
		return Result{Scenario: s.Name, Success: true}
	}

	clk := clock.New()
	ch := channel.New(channel.Config{
		LossProb:    s.LossProb,
		RTT:         s.RTT.AsDuration(),
		Jitter:      s.Jitter.AsDuration(),
		CorruptProb: s.CorruptProb,
		ReorderProb: s.ReorderProb,
	}, s.Seed)

	bound := s.RunBound.AsDuration()

	for _, seg := range snd.Start(clk.Now()) {
		ch.SendAtoB(clk.Now(), seg)
	}

	for !rcv.Done() {
		chanDir, chanAt, chanOK := ch.PeekNext()
		timeoutAt, timeoutOK := snd.NextTimeout()

		switch {
		case !chanOK && !timeoutOK:
			// Nothing left in flight and no timer pending, yet the
			// receiver isn't done: every remaining segment (and its ack)
			// was lost and nothing will ever retry it. This can only
			// happen for a scenario with window 0 or a logic defect;
			// treat it as a run timeout rather than spinning.
			return Result{Scenario: s.Name, Success: false, Err: &rdtcore.RunTimeoutError{Bound: bound}}

		case timeoutOK && (!chanOK || timeoutAt <= chanAt):
			clk.Advance(timeoutAt)
			for _, seg := range snd.FireTimeout(clk.Now()) {
				ch.SendAtoB(clk.Now(), seg)
			}

		default:
			clk.Advance(chanAt)
			if chanDir == channel.AtoB {
				if data, ok := ch.RecvB(clk.Now()); ok {
					for _, ack := range rcv.OnData(clk.Now(), data) {
						ch.SendBtoA(clk.Now(), ack)
					}
				}
			} else {
				if ack, ok := ch.RecvA(clk.Now()); ok {
					for _, seg := range snd.OnAck(clk.Now(), ack) {
						ch.SendAtoB(clk.Now(), seg)
					}
				}
			}
		}

		if clk.Now() > bound {
			return Result{
				Scenario:        s.Name,
				ElapsedVirtual:  clk.Now(),
				Retransmissions: snd.Retransmissions(),
				ChannelSent:     ch.Stats.Sent,
				ChannelLost:     ch.Stats.Lost,
				ChannelCorrupted: ch.Stats.Corrupted,
				ChannelReordered: ch.Stats.Reordered,
				Success:         false,
				Err:             &rdtcore.RunTimeoutError{Bound: bound},
			}
		}
	}

	return Result{
		Scenario:         s.Name,
		ElapsedVirtual:   clk.Now(),
		BytesSent:        s.Bytes,
		Retransmissions:  snd.Retransmissions(),
		ChannelSent:      ch.Stats.Sent,
		ChannelLost:      ch.Stats.Lost,
		ChannelCorrupted: ch.Stats.Corrupted,
		ChannelReordered: ch.Stats.Reordered,
		Success:          true,
	}
}
