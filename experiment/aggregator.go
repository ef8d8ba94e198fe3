package experiment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/joepengzhou/rdt/tmutex"
	"github.com/joepengzhou/rdt/waiter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	lastRunRetransmissions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rdt_last_run_retransmissions",
		Help: "Retransmission count of the most recently completed run.",
	})
	lastRunElapsedSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rdt_last_run_elapsed_seconds",
		Help: "Virtual elapsed time of the most recently completed run, in seconds.",
	})
	sweepRunsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rdt_sweep_runs_completed_total",
		Help: "Number of runs completed across all sweeps in this process.",
	})
)

func init() {
	prometheus.MustRegister(lastRunRetransmissions, lastRunElapsedSeconds, sweepRunsCompleted)
}

// Summary is the means over every successful run of a scenario,
// plus the count of runs that were excluded for exceeding their safety
// bound (spec.md §8: "means are computed over successful runs; timed-out
// runs are reported separately, never silently folded into the mean").
type Summary struct {
	RunID                  string        `yaml:"run_id"`
	Scenario               string        `yaml:"scenario"`
	Runs                   int           `yaml:"runs"`
	Excluded               int           `yaml:"excluded"`
	MeanElapsedVirtual     time.Duration `yaml:"mean_elapsed_virtual"`
	MeanRetransmissions    float64       `yaml:"mean_retransmissions"`
	MeanGoodputBytesPerSec float64       `yaml:"mean_goodput_bytes_per_sec"`
	Results                []Result      `yaml:"results"`
}

// resultCollector guards the growing slice of per-run results against
// concurrent appends from a bounded-parallel sweep. A plain sync.Mutex
// would do the same job; this one additionally supports TryLock, which
// Snapshot uses to read the slice without waiting on a worker that's
// mid-append.
type resultCollector struct {
	mu      tmutex.Mutex
	results []Result
}

func newResultCollector() *resultCollector {
	c := &resultCollector{}
	c.mu.Init()
	return c
}

func (c *resultCollector) add(r Result) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
}

// Snapshot copies out whatever results have landed so far. It never
// blocks: if a worker holds the lock mid-append, it returns nil instead
// of any results.
func (c *resultCollector) Snapshot() []Result {
	if c.mu.TryLock() {
		out := append([]Result(nil), c.results...)
		c.mu.Unlock()
		return out
	}
	return nil
}

// RunSweep runs scenario n times concurrently (bounded by concurrency),
// each with a distinct seed derived from the base scenario's seed plus
// the run index so the runs are independent but individually
// reproducible, and folds the results into a Summary. Runs that exceed
// their safety bound are excluded from the means but kept in Results and
// folded into a *multierror.Error so the caller can report exactly which
// runs failed and why.
func RunSweep(ctx context.Context, base Scenario, n int, concurrency int, log *logrus.Entry) (Summary, error) {
	runID := uuid.New().String()
	collector := newResultCollector()
	done := waiter.Queue{}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			scenario := base
			scenario.Seed = base.Seed + int64(i)
			result := RunTransfer(scenario, log.WithField("run_id", runID).WithField("run_index", i))
			collector.add(result)

			lastRunRetransmissions.Set(float64(result.Retransmissions))
			lastRunElapsedSeconds.Set(result.ElapsedVirtual.Seconds())
			sweepRunsCompleted.Inc()

			mask := waiter.EventRunDone
			if !result.Success {
				mask |= waiter.EventRunFailed
			}
			done.Notify(mask)
			return nil
		})
	}
	_ = g.Wait()
	done.Notify(waiter.EventSweepDone)

	return summarize(runID, base.Name, collector.Snapshot())
}

func summarize(runID, name string, results []Result) (Summary, error) {
	summary := Summary{RunID: runID, Scenario: name, Runs: len(results), Results: results}

	var errs *multierror.Error
	var totalElapsed time.Duration
	var totalRetrans uint64
	var totalGoodput float64
	successes := 0

	for _, r := range results {
		if !r.Success {
			summary.Excluded++
			errs = multierror.Append(errs, r.Err)
			continue
		}
		successes++
		totalElapsed += r.ElapsedVirtual
		totalRetrans += r.Retransmissions
		if r.ElapsedVirtual > 0 {
			totalGoodput += float64(r.BytesSent) / r.ElapsedVirtual.Seconds()
		}
	}

	if successes > 0 {
		summary.MeanElapsedVirtual = totalElapsed / time.Duration(successes)
		summary.MeanRetransmissions = float64(totalRetrans) / float64(successes)
		summary.MeanGoodputBytesPerSec = totalGoodput / float64(successes)
	}

	var err error
	if errs != nil {
		err = errs.ErrorOrNil()
	}
	return summary, err
}
