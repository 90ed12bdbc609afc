package pathgen

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/cora-labs/lendsim/pkg/types"
)

// PathGenerator continues a historical price series with a geometric
// Brownian process. Drift and volatility are estimated from the log
// returns of the seed series; the volatility is scaled by a study-level
// factor. Two generators built over the same seed source and history
// produce identical sequences.
type PathGenerator struct {
	normal distuv.Normal

	price float64
	drift float64
	sigma float64

	step    int
	horizon int
	start   int64
}

// NewPathGenerator estimates the process parameters from history and
// primes the generator at the last observed price. The rng is shared
// with the caller: the call order against it is part of the run's
// deterministic contract.
func NewPathGenerator(rng *rand.Rand, history types.PriceSeries, horizon int, volatilityFactor float64, zeroDrift bool) (*PathGenerator, error) {
	if len(history) < 2 {
		return nil, errors.New("pathgen: price history must contain at least two observations")
	}
	if horizon <= 0 {
		return nil, errors.Errorf("pathgen: horizon must be positive, got %d", horizon)
	}
	if volatilityFactor < 0 {
		return nil, errors.Errorf("pathgen: volatility factor must be non-negative, got %f", volatilityFactor)
	}

	returns := history.LogReturns()
	mu := 0.0
	if !zeroDrift {
		mu = stat.Mean(returns, nil)
	}
	sigma := math.Sqrt(stat.Variance(returns, nil)) * volatilityFactor

	return &PathGenerator{
		normal:  distuv.Normal{Mu: 0, Sigma: 1, Src: rng},
		price:   history.Last().Price,
		drift:   mu - sigma*sigma/2.0,
		sigma:   sigma,
		horizon: horizon,
		start:   history.Last().Time,
	}, nil
}

// Next advances the path one step and returns the new price. Calling
// past the horizon keeps extending the same process; the run driver is
// responsible for stopping.
func (g *PathGenerator) Next() float64 {
	eps := g.normal.Rand()
	g.price *= math.Exp(g.drift + eps*g.sigma)
	g.step++
	return g.price
}

// Price returns the current price without advancing the path.
func (g *PathGenerator) Price() float64 {
	return g.price
}

// Point returns the current price tagged with its simulated timestamp.
func (g *PathGenerator) Point() types.PricePoint {
	return types.PricePoint{
		Time:  g.start + int64(g.step)*types.StepSeconds,
		Price: g.price,
	}
}

func (g *PathGenerator) Step() int {
	return g.step
}
