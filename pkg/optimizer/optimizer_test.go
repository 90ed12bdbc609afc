package optimizer

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cora-labs/lendsim/pkg/study"
	"github.com/cora-labs/lendsim/pkg/types"
)

func testHistory() types.PriceSeries {
	n := 60 * types.StepsPerDay
	series := make(types.PriceSeries, n)
	for i := range series {
		series[i] = types.PricePoint{
			Time:  int64(i * types.StepSeconds),
			Price: 100 + 5*math.Sin(float64(i)/11),
		}
	}
	return series
}

func testBaseConfig() *study.Config {
	return &study.Config{
		Name:             "opt",
		HorizonDays:      10,
		InitialLiquidity: 10000,
		MaxLTV:           0.8,
		MaxUtilization:   0.9,
		DemandRatio:      0.5,
		VolatilityFactor: 1,
		ArrivalDist:      "uniform",
		DurationDist:     "uniform",
		SizeMin:          10,
		SizeMax:          1000,
		LTVMean:          0.5,
		LTVStd:           0.2,
		Model:            "trad",
		Seeds:            2,
		BaseSeed:         1,
	}
}

func newTestOptimizer(t *testing.T, cfg *Config) *Optimizer {
	t.Helper()
	runner := study.NewRunner(study.NewMemoryStore(), study.Options{Workers: 2})
	return New("test-session", cfg, runner, testHistory())
}

func TestOptimizerRandomSearch(t *testing.T) {
	opt := newTestOptimizer(t, &Config{
		Algorithm:     AlgorithmRandom,
		Objective:     ObjectivePnL,
		MaxEvaluation: 5,
		Matrix: []study.Selector{
			{Type: "rangeFloat", Label: "maxLtv", Path: "/maxLtv", Min: 0.3, Max: 0.8},
		},
	})

	report, err := opt.Run(context.Background(), testBaseConfig())
	require.NoError(t, err)

	require.NotNil(t, report.Best)
	assert.Equal(t, "test-session", report.Name)
	assert.Equal(t, map[string]string{"maxLtv": "/maxLtv"}, report.Parameters)
	assert.Len(t, report.Trials, 5)

	best, ok := report.Best.Parameters["maxLtv"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, best, 0.3)
	assert.LessOrEqual(t, best, 0.8)
}

func TestOptimizerDiscreteAndCategorical(t *testing.T) {
	opt := newTestOptimizer(t, &Config{
		Algorithm:     AlgorithmRandom,
		Objective:     ObjectiveReturn,
		MaxEvaluation: 4,
		Matrix: []study.Selector{
			{Type: "rangeFloat", Label: "util", Path: "/maxUtilization", Min: 0.5, Max: 0.9, Step: 0.2},
			{Type: "string", Label: "model", Path: "/model", Values: []string{"trad", "bsm"}},
		},
	})

	report, err := opt.Run(context.Background(), testBaseConfig())
	require.NoError(t, err)
	require.NotNil(t, report.Best)

	model, ok := report.Best.Parameters["model"].(string)
	require.True(t, ok)
	assert.Contains(t, []string{"trad", "bsm"}, model)
}

func TestOptimizerUnknownObjective(t *testing.T) {
	opt := newTestOptimizer(t, &Config{
		Algorithm:     AlgorithmRandom,
		Objective:     "drawdown",
		MaxEvaluation: 1,
		Matrix: []study.Selector{
			{Type: "rangeFloat", Path: "/maxLtv", Min: 0.3, Max: 0.8},
		},
	})
	_, err := opt.Run(context.Background(), testBaseConfig())
	assert.Error(t, err)
}

func TestOptimizerUnknownAlgorithm(t *testing.T) {
	opt := newTestOptimizer(t, &Config{
		Algorithm:     "genetic",
		Objective:     ObjectivePnL,
		MaxEvaluation: 1,
		Matrix: []study.Selector{
			{Type: "rangeFloat", Path: "/maxLtv", Min: 0.3, Max: 0.8},
		},
	})
	_, err := opt.Run(context.Background(), testBaseConfig())
	assert.Error(t, err)
}

func TestOptimizerEmptyMatrix(t *testing.T) {
	opt := newTestOptimizer(t, &Config{
		Algorithm:     AlgorithmRandom,
		Objective:     ObjectivePnL,
		MaxEvaluation: 1,
	})
	_, err := opt.Run(context.Background(), testBaseConfig())
	assert.Error(t, err)
}

func TestMetricFor(t *testing.T) {
	summary := study.Summary{MeanPnL: 10, StdPnL: 2, MeanReturn: 0.1, ReturnP05: -0.05}

	for objective, want := range map[string]float64{
		ObjectivePnL:        10,
		ObjectiveReturn:     0.1,
		ObjectiveSharpe:     5,
		ObjectiveTailReturn: -0.05,
	} {
		metric, err := metricFor(objective)
		require.NoError(t, err)
		assert.Equal(t, want, metric(summary), objective)
	}
}
