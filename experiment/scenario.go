// Package experiment wires the clock, channel, and protocol engines
// together into single runs and multi-run sweeps, and loads the scenario
// presets the CLI exposes via --scenario, per spec.md §8.
package experiment

import (
	"time"

	"github.com/joepengzhou/rdt/rdtcore"
	"gopkg.in/yaml.v3"
)

// Duration parses the same "100ms"/"2s" strings time.ParseDuration
// accepts, so scenario files read naturally instead of forcing raw
// nanosecond integers.
type Duration time.Duration

func (d Duration) AsDuration() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Scenario is one fully-specified run configuration: everything needed
// to build a channel.Config and a protocol engine without consulting
// anything else.
type Scenario struct {
	Name     string   `yaml:"name"`
	Protocol string   `yaml:"protocol"` // "gbn", "sr", or "tcplike"
	Bytes    int      `yaml:"bytes"`
	MSS      int      `yaml:"mss"`
	Window   uint32   `yaml:"window"`
	Timeout  Duration `yaml:"timeout"`

	RTT         Duration `yaml:"rtt"`
	Jitter      Duration `yaml:"jitter"`
	LossProb    float64  `yaml:"loss_prob"`
	CorruptProb float64  `yaml:"corrupt_prob"`
	ReorderProb float64  `yaml:"reorder_prob"`

	CongestionControl bool `yaml:"congestion_control"`

	Seed int64 `yaml:"seed"`

	// RunBound is the safety bound past which a run is abandoned as
	// hung rather than let spin forever (spec.md §7, RunTimeout).
	RunBound Duration `yaml:"run_bound"`
}

// Validate checks a scenario's fields are all within the ranges spec.md
// §8 requires, returning an *rdtcore.ConfigError naming the first
// offending field.
func (s Scenario) Validate() error {
	switch {
	case s.Protocol != "gbn" && s.Protocol != "sr" && s.Protocol != "tcplike":
		return rdtcore.NewConfigError("protocol", s.Protocol, "must be one of gbn, sr, tcplike")
	case s.Bytes <= 0:
		return rdtcore.NewConfigError("bytes", s.Bytes, "must be positive")
	case s.MSS <= 0:
		return rdtcore.NewConfigError("mss", s.MSS, "must be positive")
	case s.Window == 0:
		return rdtcore.NewConfigError("window", s.Window, "must be at least 1")
	case s.LossProb < 0 || s.LossProb > 1:
		return rdtcore.NewConfigError("loss_prob", s.LossProb, "must be within [0,1]")
	case s.CorruptProb < 0 || s.CorruptProb > 1:
		return rdtcore.NewConfigError("corrupt_prob", s.CorruptProb, "must be within [0,1]")
	case s.ReorderProb < 0 || s.ReorderProb > 1:
		return rdtcore.NewConfigError("reorder_prob", s.ReorderProb, "must be within [0,1]")
	case s.RTT.AsDuration() < 0:
		return rdtcore.NewConfigError("rtt", s.RTT.AsDuration(), "must be non-negative")
	}
	return nil
}

// LoadScenarios parses a YAML document of named scenarios, as used by
// --scenario-file.
func LoadScenarios(data []byte) ([]Scenario, error) {
	var out []Scenario
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func durationPtr(d time.Duration) Duration { return Duration(d) }

// Presets returns the four built-in scenarios (A-D) spec.md §8 names,
// for use with --scenario without a YAML file on disk.
func Presets() map[string]Scenario {
	return map[string]Scenario{
		"A": { // clean link: everything should just work
			Name: "A-clean-link", Protocol: "gbn", Bytes: 65536, MSS: 1024, Window: 4,
			Timeout: durationPtr(200 * time.Millisecond), RTT: durationPtr(40 * time.Millisecond),
			Seed: 1, RunBound: durationPtr(10 * time.Second),
		},
		"B": { // lossy link: exercises retransmission
			Name: "B-lossy-link", Protocol: "sr", Bytes: 65536, MSS: 1024, Window: 8,
			Timeout: durationPtr(200 * time.Millisecond), RTT: durationPtr(40 * time.Millisecond),
			LossProb: 0.05, Seed: 2, RunBound: durationPtr(30 * time.Second),
		},
		"C": { // jittery/reordering link: exercises the reorder buffer
			Name: "C-jittery-link", Protocol: "tcplike", Bytes: 65536, MSS: 1024, Window: 8,
			Timeout: durationPtr(200 * time.Millisecond), RTT: durationPtr(60 * time.Millisecond),
			Jitter: durationPtr(30 * time.Millisecond), ReorderProb: 0.1, Seed: 3,
			RunBound: durationPtr(30 * time.Second),
		},
		"D": { // high loss + congestion control: the AIMD stress scenario
			Name: "D-congested-link", Protocol: "tcplike", Bytes: 131072, MSS: 1024, Window: 16,
			Timeout: durationPtr(200 * time.Millisecond), RTT: durationPtr(80 * time.Millisecond),
			LossProb: 0.1, CorruptProb: 0.01, CongestionControl: true, Seed: 4,
			RunBound: durationPtr(60 * time.Second),
		},
	}
}
