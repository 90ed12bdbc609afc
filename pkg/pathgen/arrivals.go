package pathgen

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"

	"github.com/cora-labs/lendsim/pkg/types"
)

// maxArrivals bounds the draw loop against degenerate size
// distributions.
const maxArrivals = 1 << 20

// ArrivalConfig describes the borrower demand profile for one run.
type ArrivalConfig struct {
	// Horizon is the run length in steps; arrivals and durations are
	// drawn as fractions of it.
	Horizon int

	// InitialLiquidity is the pool size the demand budget is measured
	// against.
	InitialLiquidity float64

	// DemandRatio is the borrower-demand budget: requests are drawn
	// until the sum of (size/liquidity)*(duration/horizon) would
	// exceed it.
	DemandRatio float64

	// MaxLTV caps requested LTVs just below the pool policy so that
	// demand concentrates inside the admissible range.
	MaxLTV float64

	StartDist    Distribution
	DurationDist Distribution
	SizeDist     Distribution
	LTVDist      Distribution
}

func (c *ArrivalConfig) validate() error {
	if c.Horizon <= 0 {
		return errors.Errorf("pathgen: horizon must be positive, got %d", c.Horizon)
	}
	if c.InitialLiquidity <= 0 {
		return errors.Errorf("pathgen: initial liquidity must be positive, got %f", c.InitialLiquidity)
	}
	if c.DemandRatio < 0 {
		return errors.Errorf("pathgen: demand ratio must be non-negative, got %f", c.DemandRatio)
	}
	if c.StartDist == nil || c.DurationDist == nil || c.SizeDist == nil || c.LTVDist == nil {
		return errors.New("pathgen: arrival config requires all four distributions")
	}
	return nil
}

// ArrivalGenerator yields the loan requests of one run in arrival-time
// order. The whole schedule is drawn up front against the demand
// budget, so the rng consumption is independent of how the pool
// responds to each request. A generator is single pass; rebuild it to
// restart.
type ArrivalGenerator struct {
	queue []types.LoanRequest
	next  int
}

func NewArrivalGenerator(rng *rand.Rand, cfg ArrivalConfig) (*ArrivalGenerator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	horizon := float64(cfg.Horizon)
	var (
		queue      []types.LoanRequest
		demandUsed float64
	)
	for len(queue) < maxArrivals {
		size := cfg.SizeDist.Sample()

		startFactor := cfg.StartDist.Sample()
		start := int(math.Floor(startFactor * horizon))
		if start >= cfg.Horizon {
			start = cfg.Horizon - 1
		}
		if start < 0 {
			start = 0
		}

		// A duration never outlives the run and is at least one step.
		maxDuration := horizon - float64(start)
		durationFactor := cfg.DurationDist.Sample()
		duration := int(math.Round(durationFactor*(maxDuration-2.0) + 1.0))
		if duration < 1 {
			duration = 1
		}

		marginal := (size / cfg.InitialLiquidity) * (float64(duration) / horizon)
		if demandUsed+marginal > cfg.DemandRatio {
			break
		}
		demandUsed += marginal

		ltv := cfg.LTVDist.Sample()
		if ltv > cfg.MaxLTV-1e-9 {
			ltv = cfg.MaxLTV - 1e-9
		}

		queue = append(queue, types.LoanRequest{
			ArriveAt: start,
			Notional: size,
			LTV:      ltv,
			Duration: duration,
		})
	}

	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].ArriveAt < queue[j].ArriveAt
	})

	return &ArrivalGenerator{queue: queue}, nil
}

// Next returns the next scheduled request, or false when the sequence
// is exhausted.
func (g *ArrivalGenerator) Next() (types.LoanRequest, bool) {
	if g.next >= len(g.queue) {
		return types.LoanRequest{}, false
	}
	req := g.queue[g.next]
	g.next++
	return req, true
}

// Peek returns the arrival step of the next request without consuming
// it.
func (g *ArrivalGenerator) Peek() (int, bool) {
	if g.next >= len(g.queue) {
		return 0, false
	}
	return g.queue[g.next].ArriveAt, true
}

// Len is the total number of scheduled requests.
func (g *ArrivalGenerator) Len() int {
	return len(g.queue)
}
