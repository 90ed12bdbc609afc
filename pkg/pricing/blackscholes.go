package pricing

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/cora-labs/lendsim/pkg/types"
)

// nearZero replaces exact zeros before division; cheaper than special
// casing every term of the closed form.
const nearZero = 1e-10

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

func nonZero(v float64) float64 {
	if v == 0.0 {
		return nearZero
	}
	return v
}

func d1(s, r, q, k, tau, sigma float64) float64 {
	return (math.Log(s/k) + ((r-q)+sigma*sigma/2.0)*tau) / (sigma * math.Sqrt(tau))
}

// PutPremium prices a European put with the Black-Scholes closed form.
// s is the spot, k the strike, tau the time to expiration in years,
// sigma the annualized volatility, r the risk-free rate and q the
// carry yield of the underlying.
func PutPremium(s, k, tau, sigma, r, q float64) float64 {
	s = nonZero(s)
	k = nonZero(k)
	sigma = nonZero(sigma)
	tau = nonZero(tau)

	dPlus := d1(s, r, q, k, tau, sigma)
	dMinus := dPlus - sigma*math.Sqrt(tau)

	strikeTerm := k * math.Exp(-r*tau) * stdNormal.CDF(-dMinus)
	priceTerm := s * math.Exp(-q*tau) * stdNormal.CDF(-dPlus)
	return strikeTerm - priceTerm
}

// BlackScholes prices a loan as a put on the collateral struck at the
// requested LTV on a unit spot: the premium is exactly the cost of the
// pool's downside. Volatility is recalibrated from a trailing window
// of realized returns and scaled by the study's volatility factor.
type BlackScholes struct {
	LookbackDays     int
	VolatilityFactor float64
	RiskFreeRate     float64

	volatility float64
}

func NewBlackScholes(lookbackDays int, volatilityFactor, riskFreeRate float64) *BlackScholes {
	return &BlackScholes{
		LookbackDays:     lookbackDays,
		VolatilityFactor: volatilityFactor,
		RiskFreeRate:     riskFreeRate,
	}
}

func (m *BlackScholes) Name() string { return "bsm" }

func (m *BlackScholes) Adaptive() bool { return true }

// UpdateParams recomputes the annualized realized volatility from the
// trailing lookback window.
func (m *BlackScholes) UpdateParams(history types.PriceSeries) error {
	window := history.Tail(m.LookbackDays * types.StepsPerDay)
	returns := window.LogReturns()
	if len(returns) < 1 {
		return errors.New("pricing: volatility window must contain at least two prices")
	}

	var sumSquares float64
	for _, r := range returns {
		sumSquares += r * r
	}

	years := float64(window.Span()) / (types.DaysPerYear * 86400.0)
	if years <= 0 {
		return errors.New("pricing: volatility window spans no time")
	}
	periodsPerYear := float64(len(returns)) / years

	m.volatility = math.Sqrt(periodsPerYear/float64(len(returns))*sumSquares) * m.VolatilityFactor
	log.Debugf("bsm recalibrated: vol=%.4f over %d returns", m.volatility, len(returns))
	return nil
}

func (m *BlackScholes) Fee(ctx Context) (float64, error) {
	if err := ctx.validate(); err != nil {
		return 0, err
	}
	tau := ctx.TermDays / types.DaysPerYear
	return PutPremium(1.0, ctx.LTV, tau, m.volatility, m.RiskFreeRate, 0.0), nil
}
