package pricing

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/cora-labs/lendsim/pkg/types"
)

// GridPoint keys a calibrated curve by the strike (LTV) and the
// expiration in days it was fitted for.
type GridPoint struct {
	LTV  float64 `json:"ltv"`
	Days float64 `json:"days"`
}

// Curve is a Kelly-criterion premium curve over pool utilization:
// a*u*cosh(b*u^c) + d.
type Curve struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
	D float64 `json:"d"`
}

func (c Curve) Evaluate(utilization float64) (float64, error) {
	if utilization < 0 || utilization > 1 {
		return 0, errors.Wrapf(ErrDomain, "utilization %f not in [0, 1]", utilization)
	}
	return c.A*utilization*math.Cosh(c.B*math.Pow(utilization, c.C)) + c.D, nil
}

// Kelly prices from a grid of fitted premium curves. A request is
// matched to the most conservative grid point at or above its LTV and
// term; requests above the grid take the maximum.
type Kelly struct {
	LookbackDays      int
	LTVValues         []float64
	MaxExpirationDays int
	IntervalDays      int

	grid map[GridPoint]Curve
	ltvs []float64
	days []float64
}

func NewKelly(lookbackDays int, ltvValues []float64, maxExpirationDays, intervalDays int) *Kelly {
	if intervalDays <= 0 {
		intervalDays = 1
	}
	return &Kelly{
		LookbackDays:      lookbackDays,
		LTVValues:         ltvValues,
		MaxExpirationDays: maxExpirationDays,
		IntervalDays:      intervalDays,
	}
}

func (m *Kelly) Name() string { return "kelly" }

func (m *Kelly) Adaptive() bool { return true }

// SetGrid installs a calibrated curve grid, replacing any previous
// calibration.
func (m *Kelly) SetGrid(grid map[GridPoint]Curve) error {
	ltvSet := map[float64]struct{}{}
	daySet := map[float64]struct{}{}
	for point := range grid {
		ltvSet[point.LTV] = struct{}{}
		daySet[point.Days] = struct{}{}
	}
	if len(grid) != len(ltvSet)*len(daySet) {
		return errors.Errorf("pricing: kelly grid is not rectangular: %d curves for %d ltvs x %d expirations",
			len(grid), len(ltvSet), len(daySet))
	}

	m.grid = grid
	m.ltvs = sortedKeys(ltvSet)
	m.days = sortedKeys(daySet)
	return nil
}

// UpdateParams refits the curve grid from the trailing price window.
func (m *Kelly) UpdateParams(history types.PriceSeries) error {
	window := history.Tail(m.LookbackDays * types.StepsPerDay)
	grid, err := BuildCurveGrid(window, m.LTVValues, m.MaxExpirationDays, m.IntervalDays)
	if err != nil {
		return errors.Wrap(err, "pricing: kelly calibration failed")
	}
	return m.SetGrid(grid)
}

func (m *Kelly) Fee(ctx Context) (float64, error) {
	if err := ctx.validate(); err != nil {
		return 0, err
	}
	if len(m.grid) == 0 {
		return 0, errors.Wrap(ErrDomain, "kelly model is not calibrated")
	}

	point := GridPoint{
		LTV:  selectNextHighest(m.ltvs, ctx.LTV),
		Days: selectNextHighest(m.days, ctx.TermDays),
	}
	curve, ok := m.grid[point]
	if !ok {
		return 0, errors.Wrapf(ErrDomain, "no curve for grid point (%.2f, %.0f)", point.LTV, point.Days)
	}
	return curve.Evaluate(ctx.Utilization)
}

// selectNextHighest returns the smallest grid value at or above v, or
// the maximum when v is above the grid.
func selectNextHighest(sorted []float64, v float64) float64 {
	idx := sort.SearchFloat64s(sorted, v)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func sortedKeys(set map[float64]struct{}) []float64 {
	keys := make([]float64, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	return keys
}
