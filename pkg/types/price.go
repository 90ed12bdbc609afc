package types

import "math"

const (
	// StepsPerDay converts simulated steps to days for annualized pricing.
	StepsPerDay = 24

	DaysPerYear = 365.0

	// StepSeconds is the wall-clock length of one simulated step.
	StepSeconds = 3600
)

// PricePoint is one observation of the collateral asset price.
type PricePoint struct {
	Time  int64   `json:"time"`
	Price float64 `json:"price"`
}

// PriceSeries is an ordered sequence of price observations. The series
// is expected to be sampled at the simulation step resolution.
type PriceSeries []PricePoint

func (s PriceSeries) Last() PricePoint {
	if len(s) == 0 {
		return PricePoint{}
	}
	return s[len(s)-1]
}

func (s PriceSeries) Prices() []float64 {
	prices := make([]float64, len(s))
	for i, p := range s {
		prices[i] = p.Price
	}
	return prices
}

// LogReturns returns ln(p[i+1]/p[i]) for consecutive observations.
func (s PriceSeries) LogReturns() []float64 {
	if len(s) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(s)-1)
	for i := 1; i < len(s); i++ {
		returns = append(returns, math.Log(s[i].Price/s[i-1].Price))
	}
	return returns
}

// Tail returns the most recent n observations, or the whole series if
// it is shorter than n.
func (s PriceSeries) Tail(n int) PriceSeries {
	if len(s) <= n {
		out := make(PriceSeries, len(s))
		copy(out, s)
		return out
	}
	out := make(PriceSeries, n)
	copy(out, s[len(s)-n:])
	return out
}

// Span is the elapsed time between the first and last observation, in
// seconds.
func (s PriceSeries) Span() int64 {
	if len(s) < 2 {
		return 0
	}
	return s[len(s)-1].Time - s[0].Time
}
