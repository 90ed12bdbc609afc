package study

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cora-labs/lendsim/pkg/types"
)

func testPriceHistory() types.PriceSeries {
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

func singleVariant(cfg *Config) []Variant {
	return []Variant{{Config: cfg, Params: map[string]string{}}}
}

func TestRunnerIdempotentCaching(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	runner := NewRunner(store, Options{Workers: 2})
	history := testPriceHistory()

	first, err := runner.Run(ctx, singleVariant(baseConfig()), history)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Executed)
	assert.Zero(t, first.CacheHits)
	assert.Zero(t, first.Failed)

	second, err := runner.Run(ctx, singleVariant(baseConfig()), history)
	require.NoError(t, err)
	assert.Zero(t, second.Executed)
	assert.Equal(t, 2, second.CacheHits)

	// cached results match the originals bit for bit
	require.Len(t, second.Units, len(first.Units))
	for i := range first.Units {
		assert.Equal(t, first.Units[i].Key, second.Units[i].Key)
		assert.Equal(t, *first.Units[i].Result, *second.Units[i].Result)
	}
	assert.Equal(t, first.Summaries[0].MeanPnL, second.Summaries[0].MeanPnL)
}

func TestRunnerForceRecomputes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	history := testPriceHistory()

	_, err := NewRunner(store, Options{Workers: 2}).Run(ctx, singleVariant(baseConfig()), history)
	require.NoError(t, err)

	forced, err := NewRunner(store, Options{Workers: 2, Force: true}).Run(ctx, singleVariant(baseConfig()), history)
	require.NoError(t, err)
	assert.Equal(t, 2, forced.Executed)
	assert.Zero(t, forced.CacheHits)
}

func TestRunnerHistoryInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	runner := NewRunner(store, Options{Workers: 2})

	_, err := runner.Run(ctx, singleVariant(baseConfig()), testPriceHistory())
	require.NoError(t, err)

	other := testPriceHistory()
	other[0].Price = 99
	report, err := runner.Run(ctx, singleVariant(baseConfig()), other)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Executed)
	assert.Zero(t, report.CacheHits)
}

func TestRunnerScarcityRaisesRejection(t *testing.T) {
	base := baseConfig()
	base.DemandRatio = 3
	base.Seeds = 3

	variants, err := Enumerate(base, []Selector{
		{Type: "rangeFloat", Label: "util", Path: "/maxUtilization", Min: 0.2, Max: 0.9, Step: 0.7},
	})
	require.NoError(t, err)
	require.Len(t, variants, 2)

	report, err := NewRunner(NewMemoryStore(), Options{Workers: 4}).
		Run(context.Background(), variants, testPriceHistory())
	require.NoError(t, err)
	require.Len(t, report.Summaries, 2)

	tight := report.Summaries[0]
	loose := report.Summaries[1]
	require.Equal(t, "0.2", tight.Params["util"])
	assert.GreaterOrEqual(t, tight.MeanRejectionRate, loose.MeanRejectionRate)
	assert.Greater(t, tight.MeanRejectionRate, 0.0)
}

func failingConfig() *Config {
	cfg := baseConfig()
	cfg.Model = "kelly"
	// the curve grid needs 60-day windows the 60-day history cannot
	// provide, so calibration fails at step zero
	cfg.ModelParams = map[string]float64{"max_expiration_days": 60, "interval_days": 60}
	return cfg
}

func TestRunnerContinueOnError(t *testing.T) {
	report, err := NewRunner(NewMemoryStore(), Options{Workers: 2, Policy: ContinueOnError}).
		Run(context.Background(), singleVariant(failingConfig()), testPriceHistory())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Failed)
	assert.Zero(t, report.Executed)
	for _, u := range report.Units {
		assert.NotEmpty(t, u.Error)
		assert.Nil(t, u.Result)
	}
	assert.Equal(t, 2, report.Summaries[0].Failed)
}

func TestRunnerAbortOnError(t *testing.T) {
	_, err := NewRunner(NewMemoryStore(), Options{Workers: 1, Policy: AbortOnError}).
		Run(context.Background(), singleVariant(failingConfig()), testPriceHistory())
	assert.Error(t, err)
}

func TestRunnerTamperedCacheEntryFailsUnit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	runner := NewRunner(store, Options{Workers: 1})
	history := testPriceHistory()

	cfg := baseConfig()
	cfg.Seeds = 1
	first, err := runner.Run(ctx, singleVariant(cfg), history)
	require.NoError(t, err)

	// corrupt the stored entry in place
	record, err := store.Get(ctx, first.Units[0].Key)
	require.NoError(t, err)
	record.Result.PnL += 1

	report, err := runner.Run(ctx, singleVariant(cfg), history)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Units[0].Error, "checksum")
}
