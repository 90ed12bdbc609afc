package pricing

import (
	"github.com/pkg/errors"

	"github.com/cora-labs/lendsim/pkg/types"
)

// Traditional is the utilization-curve model used by money-market
// style pools: a base rate plus a first slope up to the optimal
// utilization and a second, steeper slope beyond it. The annualized
// rate is scaled to the loan term.
type Traditional struct {
	OptimalUtilization float64
	BaseRate           float64
	RateSlope1         float64
	RateSlope2         float64
}

func NewTraditional(optimalUtilization, baseRate, rateSlope1, rateSlope2 float64) (*Traditional, error) {
	if optimalUtilization <= 0 || optimalUtilization > 1 {
		return nil, errors.Errorf("pricing: optimal utilization %f not in (0, 1]", optimalUtilization)
	}
	return &Traditional{
		OptimalUtilization: optimalUtilization,
		BaseRate:           baseRate,
		RateSlope1:         rateSlope1,
		RateSlope2:         rateSlope2,
	}, nil
}

func (m *Traditional) Name() string { return "trad" }

func (m *Traditional) Adaptive() bool { return false }

func (m *Traditional) UpdateParams(types.PriceSeries) error { return nil }

func (m *Traditional) Fee(ctx Context) (float64, error) {
	if err := ctx.validate(); err != nil {
		return 0, err
	}

	var annualized float64
	if ctx.Utilization < m.OptimalUtilization {
		annualized = m.BaseRate + ctx.Utilization/m.OptimalUtilization*m.RateSlope1
	} else {
		excess := (ctx.Utilization - m.OptimalUtilization) / nonZero(1.0-m.OptimalUtilization)
		annualized = m.BaseRate + m.RateSlope1 + m.RateSlope2*excess
	}

	return annualized * ctx.TermDays / types.DaysPerYear, nil
}
