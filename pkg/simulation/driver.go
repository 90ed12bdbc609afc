package simulation

import (
	"context"
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"

	"github.com/cora-labs/lendsim/pkg/pathgen"
	"github.com/cora-labs/lendsim/pkg/pool"
	"github.com/cora-labs/lendsim/pkg/pricing"
	"github.com/cora-labs/lendsim/pkg/types"
)

var log = logrus.WithField("component", "simulation")

type State int

const (
	StateInitialized State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "INITIALIZED"
	case StateRunning:
		return "RUNNING"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// RunFailure is the unrecoverable abort of a run: the step it happened
// at and the triggering cause. Committed steps are never rolled back.
type RunFailure struct {
	Step  int
	Cause error
}

func (e *RunFailure) Error() string {
	return fmt.Sprintf("run failed at step %d: %s", e.Step, e.Cause)
}

func (e *RunFailure) Unwrap() error { return e.Cause }

// Driver executes one simulation run end to end. A driver is single
// use: construct, Run once, read the result.
type Driver struct {
	cfg   RunConfig
	model pricing.FeeModel
	state State
}

func NewDriver(cfg RunConfig) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := pricing.New(cfg.Model, cfg.ModelParams)
	if err != nil {
		return nil, err
	}
	return &Driver{cfg: cfg, model: model}, nil
}

// NewDriverWithModel bypasses the registry for callers that bring
// their own fee model. The config's Model field is only used for
// labeling in that case.
func NewDriverWithModel(cfg RunConfig, model pricing.FeeModel) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Driver{cfg: cfg, model: model}, nil
}

func (d *Driver) State() State { return d.state }

// Run drives the per-step loop over the whole horizon and returns the
// run summary. Cancellation of ctx aborts between steps.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	if d.state != StateInitialized {
		return nil, errors.Errorf("simulation: driver already %s", d.state)
	}
	d.state = StateRunning

	result, err := d.run(ctx)
	if err != nil {
		d.state = StateFailed
		return nil, err
	}
	d.state = StateCompleted
	return result, nil
}

func (d *Driver) run(ctx context.Context) (*Result, error) {
	cfg := d.cfg
	horizon := cfg.Horizon()
	rng := rand.New(rand.NewSource(cfg.Seed))

	// Draw order against the rng is fixed: the full arrival schedule
	// first, then one normal variate per price step, with early-exit
	// coin flips interleaved. Changing this order changes every seeded
	// result.
	arrivals, err := d.buildArrivals(rng)
	if err != nil {
		return nil, &RunFailure{Step: 0, Cause: err}
	}

	path, err := pathgen.NewPathGenerator(rng, cfg.History, horizon, cfg.VolatilityFactor, cfg.ZeroDrift)
	if err != nil {
		return nil, &RunFailure{Step: 0, Cause: err}
	}

	ledger, err := pool.NewPool(cfg.InitialLiquidity, cfg.MaxLTV, cfg.MaxUtilization)
	if err != nil {
		return nil, &RunFailure{Step: 0, Cause: err}
	}

	history := make(types.PriceSeries, len(cfg.History), len(cfg.History)+horizon)
	copy(history, cfg.History)

	if d.model.Adaptive() {
		if err := d.model.UpdateParams(history); err != nil {
			return nil, &RunFailure{Step: 0, Cause: errors.Wrap(err, "initial calibration")}
		}
	}
	updateEvery := cfg.UpdateEveryDays * types.StepsPerDay

	var (
		price           float64
		premiumsEarned  float64
		maxUtilization  float64
		sumUtilization  float64
		maxOpenLoans    int
		collectPremiums = func(loans []*types.Loan) {
			for _, loan := range loans {
				premiumsEarned += loan.Premium
			}
		}
	)

	log.Debugf("run started: seed=%d model=%s horizon=%d arrivals=%d",
		cfg.Seed, d.model.Name(), horizon, arrivals.Len())

	for step := 0; step < horizon; step++ {
		if err := ctx.Err(); err != nil {
			return nil, &RunFailure{Step: step, Cause: err}
		}

		price = path.Next()
		history = append(history, path.Point())

		ledger.LiquidateUnderwater(step, price)
		repaid, _ := ledger.ResolveExpirations(step, price)
		collectPremiums(repaid)

		if d.model.Adaptive() && updateEvery > 0 && step > 0 && step%updateEvery == 0 {
			if err := d.model.UpdateParams(history); err != nil {
				return nil, &RunFailure{Step: step, Cause: errors.Wrap(err, "recalibration")}
			}
		}

		for {
			arriveAt, ok := arrivals.Peek()
			if !ok || arriveAt > step {
				break
			}
			req, _ := arrivals.Next()
			d.admit(ledger, req, step, price)
		}

		repaid = ledger.ApplyEarlyRepayments(step, price, cfg.EarlyRepayMargin, cfg.EarlyRepayProb, rng.Float64)
		collectPremiums(repaid)

		if u := ledger.Utilization(); u > maxUtilization {
			maxUtilization = u
		}
		sumUtilization += ledger.Utilization()
		if n := len(ledger.OpenLoans()); n > maxOpenLoans {
			maxOpenLoans = n
		}

		if err := ledger.CheckConservation(); err != nil {
			return nil, &RunFailure{Step: step, Cause: err}
		}
	}

	// Settle whatever is still open at the horizon. Arrival durations
	// never outlive the run, so this drains the pool.
	ledger.LiquidateUnderwater(horizon, price)
	repaid, _ := ledger.ResolveExpirations(horizon, price)
	collectPremiums(repaid)
	if err := ledger.CheckConservation(); err != nil {
		return nil, &RunFailure{Step: horizon, Cause: err}
	}

	counters := ledger.Counters()
	result := &Result{
		Seed:            cfg.Seed,
		Model:           d.model.Name(),
		Steps:           horizon,
		FinalPrice:      price,
		FinalTotal:      ledger.Total(),
		FinalAvailable:  ledger.Available(),
		PnL:             ledger.PnL(),
		Return:          ledger.PnL() / cfg.InitialLiquidity,
		PremiumsEarned:  premiumsEarned,
		MaxUtilization:  maxUtilization,
		MeanUtilization: sumUtilization / float64(horizon),
		MaxOpenLoans:    maxOpenLoans,
		Counters:        counters,
	}
	if counters.Proposed > 0 {
		result.RejectionRate = float64(counters.Rejected()) / float64(counters.Proposed)
	}
	if counters.Opened > 0 {
		result.DefaultRate = float64(counters.Defaulted) / float64(counters.Opened)
	}

	log.Debugf("run completed: seed=%d pnl=%.2f opened=%d rejected=%d defaulted=%d",
		cfg.Seed, result.PnL, counters.Opened, counters.Rejected(), counters.Defaulted)
	return result, nil
}

// admit prices one arrival and opens the loan if both the admission
// rules and the fee model accept it. Pricing failures reject the
// request without aborting the run.
func (d *Driver) admit(ledger *pool.Pool, req types.LoanRequest, step int, price float64) {
	if ledger.Propose(req) != pool.RejectNone {
		return
	}

	fee, err := d.model.Fee(pricing.Context{
		LTV:         req.LTV,
		Utilization: ledger.Utilization(),
		TermDays:    float64(req.Duration) / types.StepsPerDay,
		Spot:        price,
	})
	if err != nil {
		if !pricing.IsDomainError(err) {
			log.WithError(err).Warnf("fee model %s failed at step %d", d.model.Name(), step)
		}
		ledger.RejectPricing()
		return
	}

	if _, err := ledger.Open(req, step, price, fee*req.Notional); err != nil {
		log.WithError(err).Warnf("loan open failed at step %d", step)
		ledger.RejectPricing()
	}
}

func (d *Driver) buildArrivals(rng *rand.Rand) (*pathgen.ArrivalGenerator, error) {
	cfg := d.cfg

	startDist, err := pathgen.NewFactorDist(rng, cfg.ArrivalDist, true)
	if err != nil {
		return nil, err
	}
	durationDist, err := pathgen.NewFactorDist(rng, cfg.DurationDist, false)
	if err != nil {
		return nil, err
	}

	logMin, logMax := math.Log10(cfg.SizeMin), math.Log10(cfg.SizeMax)
	sizeDist := pathgen.NewTruncatedLogNormal(rng,
		cfg.SizeMin, cfg.SizeMax,
		(logMin+logMax)/2, (logMax-logMin)/4, 10)

	ltvDist := pathgen.NewTruncatedNormal(rng, 0.01, cfg.MaxLTV, cfg.LTVMean, cfg.LTVStd)

	return pathgen.NewArrivalGenerator(rng, pathgen.ArrivalConfig{
		Horizon:          cfg.Horizon(),
		InitialLiquidity: cfg.InitialLiquidity,
		DemandRatio:      cfg.DemandRatio,
		MaxLTV:           cfg.MaxLTV,
		StartDist:        startDist,
		DurationDist:     durationDist,
		SizeDist:         sizeDist,
		LTVDist:          ltvDist,
	})
}
