package simulation

import (
	"github.com/pkg/errors"

	"github.com/cora-labs/lendsim/pkg/pathgen"
	"github.com/cora-labs/lendsim/pkg/types"
)

// RunConfig fully determines one simulation run. Together with the
// seed it must reproduce a run bit for bit, so every field that
// affects a random draw or a ledger mutation lives here.
type RunConfig struct {
	Seed uint64 `json:"seed"`

	// HorizonDays is the simulated run length.
	HorizonDays int `json:"horizonDays"`

	// History seeds the path generator and the adaptive fee models.
	History types.PriceSeries `json:"-"`

	InitialLiquidity float64 `json:"initialLiquidity"`
	MaxLTV           float64 `json:"maxLtv"`
	MaxUtilization   float64 `json:"maxUtilization"`

	// DemandRatio scales borrower demand against the pool size.
	DemandRatio float64 `json:"demandRatio"`

	VolatilityFactor float64 `json:"volatilityFactor"`
	ZeroDrift        bool    `json:"zeroDrift"`

	// ArrivalDist and DurationDist are pathgen distribution tags.
	ArrivalDist  string `json:"arrivalDist"`
	DurationDist string `json:"durationDist"`

	// SizeMin and SizeMax bound the lognormal loan-size draw.
	SizeMin float64 `json:"sizeMin"`
	SizeMax float64 `json:"sizeMax"`

	// LTVMean and LTVStd shape the truncated normal LTV draw.
	LTVMean float64 `json:"ltvMean"`
	LTVStd  float64 `json:"ltvStd"`

	Model       string             `json:"model"`
	ModelParams map[string]float64 `json:"modelParams,omitempty"`

	// UpdateEveryDays is the recalibration cadence for adaptive
	// models; zero disables mid-run updates.
	UpdateEveryDays int `json:"updateEveryDays"`

	// EarlyRepayProb is the per-step probability that an eligible
	// borrower closes early; EarlyRepayMargin is the collateral
	// cushion, over the debt, required for eligibility.
	EarlyRepayProb   float64 `json:"earlyRepayProb"`
	EarlyRepayMargin float64 `json:"earlyRepayMargin"`
}

// Horizon is the run length in steps.
func (c *RunConfig) Horizon() int {
	return c.HorizonDays * types.StepsPerDay
}

func (c *RunConfig) Validate() error {
	if c.HorizonDays <= 0 {
		return errors.Errorf("simulation: horizon %d days must be positive", c.HorizonDays)
	}
	if len(c.History) < 2 {
		return errors.New("simulation: price history must contain at least two observations")
	}
	if c.InitialLiquidity <= 0 {
		return errors.Errorf("simulation: initial liquidity %f must be positive", c.InitialLiquidity)
	}
	if c.MaxLTV <= 0 || c.MaxLTV >= 1 {
		return errors.Errorf("simulation: max ltv %f not in (0, 1)", c.MaxLTV)
	}
	if c.MaxUtilization <= 0 || c.MaxUtilization > 1 {
		return errors.Errorf("simulation: max utilization %f not in (0, 1]", c.MaxUtilization)
	}
	if c.DemandRatio < 0 {
		return errors.Errorf("simulation: demand ratio %f must be non-negative", c.DemandRatio)
	}
	if c.SizeMin <= 0 || c.SizeMax <= c.SizeMin {
		return errors.Errorf("simulation: size bounds [%f, %f] invalid", c.SizeMin, c.SizeMax)
	}
	if c.LTVMean <= 0 || c.LTVMean >= 1 {
		return errors.Errorf("simulation: ltv mean %f not in (0, 1)", c.LTVMean)
	}
	if c.LTVStd <= 0 {
		return errors.Errorf("simulation: ltv std %f must be positive", c.LTVStd)
	}
	if c.EarlyRepayProb < 0 || c.EarlyRepayProb > 1 {
		return errors.Errorf("simulation: early repay probability %f not in [0, 1]", c.EarlyRepayProb)
	}
	if c.Model == "" {
		return errors.New("simulation: fee model is required")
	}
	for _, tag := range []string{c.ArrivalDist, c.DurationDist} {
		switch tag {
		case pathgen.DistUniform, pathgen.DistTriangular, pathgen.DistParabolic:
		default:
			return errors.Errorf("simulation: unknown distribution tag %q", tag)
		}
	}
	return nil
}
