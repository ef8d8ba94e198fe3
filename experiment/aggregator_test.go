package experiment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSweepAggregatesOnlySuccessfulRuns(t *testing.T) {
	base := Scenario{
		Name: "sweep-clean", Protocol: "gbn", Bytes: 4096, MSS: 1024, Window: 4,
		Timeout: Duration(100 * time.Millisecond), RTT: Duration(20 * time.Millisecond),
		Seed: 10, RunBound: Duration(5 * time.Second),
	}
	summary, err := RunSweep(context.Background(), base, 5, 2, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Runs)
	assert.Equal(t, 0, summary.Excluded)
	assert.NotEmpty(t, summary.RunID)
	assert.Greater(t, summary.MeanGoodputBytesPerSec, 0.0)
}

func TestRunSweepExcludesTimedOutRunsFromTheMeanButKeepsThem(t *testing.T) {
	base := Scenario{
		Name: "sweep-stuck", Protocol: "gbn", Bytes: 4096, MSS: 1024, Window: 4,
		Timeout: Duration(10 * time.Millisecond), RTT: Duration(20 * time.Millisecond),
		LossProb: 1.0, Seed: 20, RunBound: Duration(100 * time.Millisecond),
	}
	summary, err := RunSweep(context.Background(), base, 3, 3, testLogger())
	assert.Error(t, err)
	assert.Equal(t, 3, summary.Runs)
	assert.Equal(t, 3, summary.Excluded)
	assert.Len(t, summary.Results, 3)
	assert.Zero(t, summary.MeanElapsedVirtual, "an all-excluded sweep should report a zero mean, not garbage")
}
