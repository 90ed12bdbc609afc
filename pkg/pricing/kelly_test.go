package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cora-labs/lendsim/pkg/types"
)

func TestCurveEvaluate(t *testing.T) {
	curve := Curve{A: 0.1, B: 1, C: 1, D: 0.01}

	fee, err := curve.Evaluate(0)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, fee, 1e-12)

	fee, err = curve.Evaluate(0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.1*0.5*math.Cosh(0.5)+0.01, fee, 1e-12)

	_, err = curve.Evaluate(-0.1)
	assert.True(t, IsDomainError(err))
	_, err = curve.Evaluate(1.1)
	assert.True(t, IsDomainError(err))
}

func TestSelectNextHighest(t *testing.T) {
	grid := []float64{0.2, 0.5, 0.8}

	assert.Equal(t, 0.2, selectNextHighest(grid, 0.1))
	assert.Equal(t, 0.5, selectNextHighest(grid, 0.5))
	assert.Equal(t, 0.8, selectNextHighest(grid, 0.51))

	// above the grid falls back to the most conservative point
	assert.Equal(t, 0.8, selectNextHighest(grid, 0.95))
}

func TestKellyGridSelection(t *testing.T) {
	model := NewKelly(365, nil, 30, 1)
	require.NoError(t, model.SetGrid(map[GridPoint]Curve{
		{LTV: 0.5, Days: 7}:  {A: 0.01, B: 1, C: 1},
		{LTV: 0.5, Days: 14}: {A: 0.02, B: 1, C: 1},
		{LTV: 0.8, Days: 7}:  {A: 0.05, B: 1, C: 1},
		{LTV: 0.8, Days: 14}: {A: 0.08, B: 1, C: 1},
	}))

	// 0.6 LTV / 10 days rounds up to the (0.8, 14) curve
	fee, err := model.Fee(Context{LTV: 0.6, Utilization: 0.5, TermDays: 10, Spot: 100})
	require.NoError(t, err)
	assert.InDelta(t, 0.08*0.5*math.Cosh(0.5), fee, 1e-12)

	// exact match uses its own curve
	fee, err = model.Fee(Context{LTV: 0.5, Utilization: 0.5, TermDays: 7, Spot: 100})
	require.NoError(t, err)
	assert.InDelta(t, 0.01*0.5*math.Cosh(0.5), fee, 1e-12)
}

func TestKellyNotCalibrated(t *testing.T) {
	model := NewKelly(365, nil, 30, 1)
	_, err := model.Fee(Context{LTV: 0.5, Utilization: 0.5, TermDays: 7, Spot: 100})
	assert.True(t, IsDomainError(err))
}

func TestKellyRejectsRaggedGrid(t *testing.T) {
	model := NewKelly(365, nil, 30, 1)
	err := model.SetGrid(map[GridPoint]Curve{
		{LTV: 0.5, Days: 7}: {},
		{LTV: 0.8, Days: 9}: {},
	})
	assert.Error(t, err)
}

func TestBuildCurveGrid(t *testing.T) {
	// a drifting, oscillating price so some windows breach high LTVs
	history := make(types.PriceSeries, 60*types.StepsPerDay)
	for i := range history {
		history[i] = types.PricePoint{
			Time:  int64(i * types.StepSeconds),
			Price: 100 * (1 + 0.3*math.Sin(float64(i)/50)),
		}
	}

	grid, err := BuildCurveGrid(history, []float64{0.5, 0.9}, 14, 7)
	require.NoError(t, err)
	require.Len(t, grid, 4)

	for point, curve := range grid {
		low, err := curve.Evaluate(0.1)
		require.NoError(t, err)
		high, err := curve.Evaluate(0.9)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, high, low, "curve at %+v must not decrease in utilization", point)
		assert.GreaterOrEqual(t, low, 0.0)
	}

	// riskier strikes carry larger expected losses, and therefore fees
	safe := grid[GridPoint{LTV: 0.5, Days: 14}]
	risky := grid[GridPoint{LTV: 0.9, Days: 14}]
	safeFee, _ := safe.Evaluate(0.5)
	riskyFee, _ := risky.Evaluate(0.5)
	assert.GreaterOrEqual(t, riskyFee, safeFee)
}

func TestBuildCurveGridShortHistory(t *testing.T) {
	_, err := BuildCurveGrid(flatSeries(10, 100), []float64{0.5}, 14, 7)
	assert.Error(t, err)
}
