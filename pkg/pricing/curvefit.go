package pricing

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sajari/regression"

	"github.com/cora-labs/lendsim/pkg/types"
)

// minFitWindows is the minimum number of rolling windows required to
// estimate a loss distribution for one grid point.
const minFitWindows = 8

// utilization levels the curve is fitted against. The top level stays
// below 1 so the Kelly loading term remains finite.
var fitUtilizations = func() []float64 {
	var us []float64
	for u := 0.0; u < 0.96; u += 0.05 {
		us = append(us, u)
	}
	return us
}()

// BuildCurveGrid fits one premium curve per (LTV, expiration) pair
// from the realized loss distribution of the price history.
//
// For each pair, rolling windows of the expiration length yield an
// expected per-notional shortfall; the curve is then fitted so that
// premiums cover that loss scaled by a Kelly loading that grows with
// utilization.
func BuildCurveGrid(history types.PriceSeries, ltvValues []float64, maxExpirationDays, intervalDays int) (map[GridPoint]Curve, error) {
	if len(ltvValues) == 0 {
		return nil, errors.New("no ltv values to calibrate")
	}
	if maxExpirationDays <= 0 {
		return nil, errors.Errorf("invalid max expiration %d days", maxExpirationDays)
	}
	if intervalDays <= 0 {
		intervalDays = 1
	}

	grid := make(map[GridPoint]Curve, len(ltvValues)*maxExpirationDays/intervalDays)
	for days := intervalDays; days <= maxExpirationDays; days += intervalDays {
		ratios, err := windowReturns(history, days*types.StepsPerDay)
		if err != nil {
			return nil, errors.Wrapf(err, "expiration %d days", days)
		}

		for _, ltv := range ltvValues {
			curve, err := fitCurve(expectedShortfall(ratios, ltv))
			if err != nil {
				return nil, errors.Wrapf(err, "grid point (%.2f, %d)", ltv, days)
			}
			grid[GridPoint{LTV: ltv, Days: float64(days)}] = curve
		}
	}
	return grid, nil
}

// windowReturns collects end-over-start price ratios for every rolling
// window of the given length.
func windowReturns(history types.PriceSeries, steps int) ([]float64, error) {
	prices := history.Prices()
	n := len(prices) - steps
	if n < minFitWindows {
		return nil, errors.Errorf("history too short: %d windows of %d steps, need %d",
			n, steps, minFitWindows)
	}

	ratios := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		ratios = append(ratios, prices[i+steps]/prices[i])
	}
	return ratios, nil
}

// expectedShortfall is the mean per-notional loss of a loan struck at
// the given LTV over the observed return windows. A window with
// end/start below the LTV leaves the lender short by the gap, in
// notional terms.
func expectedShortfall(ratios []float64, ltv float64) float64 {
	var sum float64
	for _, r := range ratios {
		if r < ltv {
			sum += (ltv - r) / ltv
		}
	}
	return sum / float64(len(ratios))
}

// fitCurve solves for the (a, d) pair of a*u*cosh(u) + d matching the
// loss-loaded premium targets. b and c stay pinned at 1 so the fit is
// ordinary least squares on the single basis u*cosh(u).
func fitCurve(expectedLoss float64) (Curve, error) {
	r := new(regression.Regression)
	r.SetObserved("premium")
	r.SetVar(0, "utilization basis")

	for _, u := range fitUtilizations {
		target := expectedLoss / (1 - u)
		r.Train(regression.DataPoint(target, []float64{u * math.Cosh(u)}))
	}
	if err := r.Run(); err != nil {
		return Curve{}, errors.Wrap(err, "regression failed")
	}

	return Curve{
		A: r.Coeff(1),
		B: 1,
		C: 1,
		D: math.Max(r.Coeff(0), 0),
	}, nil
}
