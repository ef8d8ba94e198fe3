package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joepengzhou/rdt/experiment"
	"github.com/joepengzhou/rdt/internal/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type runFlags struct {
	scenario     string
	scenarioFile string
	protocol     string
	loss         float64
	corrupt      float64
	reorder      float64
	rtt          time.Duration
	jitter       time.Duration
	window       uint32
	bytes        int
	mss          int
	timeout      time.Duration
	runs         int
	concurrency  int
	seed         int64
	congestion   bool
	output       string
	metricsAddr  string
	live         bool
	logLevel     string
}

func newRunCmd(exitCode *int) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario (or sweep of runs) and report throughput, retransmissions, and completion time",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, f, exitCode)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.scenario, "scenario", "A", "built-in preset (A, B, C, D) or, with --scenario-file, a scenario name from that file")
	flags.StringVar(&f.scenarioFile, "scenario-file", "", "load named scenarios from this YAML file instead of the built-in presets")
	flags.StringVar(&f.protocol, "protocol", "", "override: gbn, sr, or tcplike")
	flags.Float64Var(&f.loss, "loss", -1, "override: independent per-segment loss probability [0,1]")
	flags.Float64Var(&f.corrupt, "corrupt", -1, "override: independent per-segment corruption probability [0,1]")
	flags.Float64Var(&f.reorder, "reorder", -1, "override: independent per-segment reorder probability [0,1]")
	flags.DurationVar(&f.rtt, "rtt", 0, "override: channel round trip time")
	flags.DurationVar(&f.jitter, "jitter", 0, "override: maximum uniform delivery jitter")
	flags.Uint32Var(&f.window, "window", 0, "override: sender window size in segments")
	flags.IntVar(&f.bytes, "bytes", 0, "override: payload size in bytes")
	flags.IntVar(&f.mss, "mss", 0, "override: maximum segment size in bytes")
	flags.DurationVar(&f.timeout, "timeout", 0, "override: retransmission timeout (gbn/sr; tcplike adapts its own)")
	flags.IntVar(&f.runs, "runs", 1, "number of independent runs in the sweep")
	flags.IntVar(&f.concurrency, "concurrency", 4, "maximum number of runs to execute in parallel")
	flags.Int64Var(&f.seed, "seed", 0, "override: base PRNG seed; run i uses seed+i")
	flags.BoolVar(&f.congestion, "congestion-control", false, "override: enable AIMD congestion control (tcplike only)")
	flags.StringVar(&f.output, "output", "", "write the sweep summary as YAML to this path instead of stdout")
	flags.StringVar(&f.metricsAddr, "metrics-addr", "", "if set, serve live Prometheus metrics on this address while the sweep runs")
	flags.BoolVar(&f.live, "live", false, "show a progress bar for the sweep; it fills once the sweep finishes, not run by run")
	flags.StringVar(&f.logLevel, "log-level", "info", "debug, info, warn, or error")

	return cmd
}

// resolveBaseScenario picks the scenario applyOverrides starts from: a
// named entry in --scenario-file if one was given, otherwise one of the
// built-in presets.
func resolveBaseScenario(f *runFlags) (experiment.Scenario, error) {
	if f.scenarioFile == "" {
		preset, ok := experiment.Presets()[f.scenario]
		if !ok {
			return experiment.Scenario{}, fmt.Errorf("unknown scenario preset %q (want one of A, B, C, D)", f.scenario)
		}
		return preset, nil
	}

	data, err := os.ReadFile(f.scenarioFile)
	if err != nil {
		return experiment.Scenario{}, err
	}
	scenarios, err := experiment.LoadScenarios(data)
	if err != nil {
		return experiment.Scenario{}, err
	}
	for _, s := range scenarios {
		if s.Name == f.scenario {
			return s, nil
		}
	}
	return experiment.Scenario{}, fmt.Errorf("scenario %q not found in %s", f.scenario, f.scenarioFile)
}

func applyOverrides(base experiment.Scenario, f *runFlags) experiment.Scenario {
	s := base
	if f.protocol != "" {
		s.Protocol = f.protocol
	}
	if f.loss >= 0 {
		s.LossProb = f.loss
	}
	if f.corrupt >= 0 {
		s.CorruptProb = f.corrupt
	}
	if f.reorder >= 0 {
		s.ReorderProb = f.reorder
	}
	if f.rtt > 0 {
		s.RTT = experiment.Duration(f.rtt)
	}
	if f.jitter > 0 {
		s.Jitter = experiment.Duration(f.jitter)
	}
	if f.window > 0 {
		s.Window = f.window
	}
	if f.bytes > 0 {
		s.Bytes = f.bytes
	}
	if f.mss > 0 {
		s.MSS = f.mss
	}
	if f.timeout > 0 {
		s.Timeout = experiment.Duration(f.timeout)
	}
	if f.seed != 0 {
		s.Seed = f.seed
	}
	if f.congestion {
		s.CongestionControl = true
	}
	return s
}

func runRun(cmd *cobra.Command, f *runFlags, exitCode *int) error {
	base, err := resolveBaseScenario(f)
	if err != nil {
		*exitCode = ExitConfigError
		return err
	}
	scenario := applyOverrides(base, f)
	if err := scenario.Validate(); err != nil {
		*exitCode = ExitConfigError
		return err
	}

	log := logging.New(f.logLevel)

	if f.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: f.metricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Warn("metrics server stopped")
			}
		}()
		defer server.Close()
	}

	var bar *progressbar.ProgressBar
	if f.live {
		bar = progressbar.Default(int64(f.runs), fmt.Sprintf("%s/%s", scenario.Name, scenario.Protocol))
	}

	summary, sweepErr := experiment.RunSweep(context.Background(), scenario, f.runs, f.concurrency, log.WithField("protocol", scenario.Protocol))
	if bar != nil {
		bar.Set(f.runs)
		bar.Close()
	}

	if err := writeSummary(cmd, f.output, summary); err != nil {
		*exitCode = ExitConfigError
		return err
	}

	if summary.Excluded > 0 {
		*exitCode = ExitRunsExcluded
		log.WithError(sweepErr).Warnf("%d of %d runs excluded for exceeding their safety bound", summary.Excluded, summary.Runs)
	}
	return nil
}

func writeSummary(cmd *cobra.Command, path string, summary experiment.Summary) error {
	out, err := yaml.Marshal(summary)
	if err != nil {
		return err
	}
	if path == "" {
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}
	return os.WriteFile(path, out, 0o644)
}
