package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoanStateTerminal(t *testing.T) {
	assert.False(t, LoanStatePending.Terminal())
	assert.False(t, LoanStateOpen.Terminal())
	assert.True(t, LoanStateRepaid.Terminal())
	assert.True(t, LoanStateExpired.Terminal())
	assert.True(t, LoanStateDefaulted.Terminal())
}

func TestLoanAccounting(t *testing.T) {
	loan := &Loan{
		OpenedAt:         10,
		Notional:         200,
		CollateralAmount: 4,
		InitialLTV:       0.5,
		Duration:         48,
		Premium:          6,
	}

	assert.InDelta(t, 206.0, loan.Debt(), 1e-12)
	assert.Equal(t, 58, loan.ExpiresAt())
	assert.InDelta(t, 0.5, loan.CurrentLTV(100), 1e-12)
	assert.InDelta(t, 1.0, loan.CurrentLTV(50), 1e-12)
	assert.Equal(t, 0.0, loan.CurrentLTV(0))
}

func TestPriceSeries(t *testing.T) {
	series := PriceSeries{
		{Time: 0, Price: 100},
		{Time: StepSeconds, Price: 110},
		{Time: 2 * StepSeconds, Price: 99},
	}

	assert.Equal(t, 99.0, series.Last().Price)
	assert.Equal(t, []float64{100, 110, 99}, series.Prices())
	assert.Len(t, series.LogReturns(), 2)
	assert.Equal(t, int64(2*StepSeconds), series.Span())

	tail := series.Tail(2)
	assert.Len(t, tail, 2)
	assert.Equal(t, 110.0, tail[0].Price)

	assert.Len(t, series.Tail(10), 3)
	assert.Equal(t, PricePoint{}, PriceSeries{}.Last())
}
