package study

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/cora-labs/lendsim/pkg/simulation"
	"github.com/cora-labs/lendsim/pkg/types"
)

var log = logrus.WithField("component", "study")

// ErrorPolicy controls how the runner reacts to a failed run.
type ErrorPolicy int

const (
	// ContinueOnError records the failure and keeps sweeping.
	ContinueOnError ErrorPolicy = iota

	// AbortOnError cancels the remaining units on the first failure.
	AbortOnError
)

type Options struct {
	// Workers caps the number of concurrent runs; zero means one per
	// CPU.
	Workers int

	// Force recomputes every unit even on a cache hit.
	Force bool

	Policy ErrorPolicy

	// Progress draws a terminal progress bar over the unit count.
	Progress bool
}

// UnitResult is the outcome of one (variant, seed) unit.
type UnitResult struct {
	Study  string            `json:"study"`
	Params map[string]string `json:"params,omitempty"`
	Seed   uint64            `json:"seed"`
	Key    Key               `json:"key"`
	Cached bool              `json:"cached"`

	Result *simulation.Result `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// Summary aggregates the successful seeds of one variant.
type Summary struct {
	Study  string            `json:"study"`
	Params map[string]string `json:"params,omitempty"`

	Runs      int `json:"runs"`
	Failed    int `json:"failed"`
	CacheHits int `json:"cacheHits"`

	MeanPnL float64 `json:"meanPnl"`
	StdPnL  float64 `json:"stdPnl"`

	MeanReturn float64 `json:"meanReturn"`
	ReturnP05  float64 `json:"returnP05"`
	ReturnP50  float64 `json:"returnP50"`
	ReturnP95  float64 `json:"returnP95"`

	MeanMaxUtilization float64 `json:"meanMaxUtilization"`
	MeanRejectionRate  float64 `json:"meanRejectionRate"`
	MeanDefaultRate    float64 `json:"meanDefaultRate"`
}

// Report is the full outcome of one study invocation.
type Report struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"startedAt"`
	Elapsed   time.Duration `json:"elapsed"`

	Units     []UnitResult `json:"units"`
	Summaries []Summary    `json:"summaries"`

	Executed  int `json:"executed"`
	CacheHits int `json:"cacheHits"`
	Failed    int `json:"failed"`
}

// Runner sweeps a study grid over its seed ensemble, consulting the
// result cache before executing each unit.
type Runner struct {
	store Store
	opts  Options
}

func NewRunner(store Store, opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Runner{store: store, opts: opts}
}

type unit struct {
	variant int
	config  *Config
	params  map[string]string
	seed    uint64
	key     Key
}

// Run executes every (variant, seed) unit and aggregates per-variant
// summaries over the successful runs. Unit results are ordered by
// (variant, seed) regardless of completion order.
func (r *Runner) Run(ctx context.Context, variants []Variant, history types.PriceSeries) (*Report, error) {
	if len(variants) == 0 {
		return nil, errors.New("study: nothing to run")
	}

	digest := HistoryDigest(history)
	var units []unit
	for vi, variant := range variants {
		for _, seed := range variant.Config.SeedRange() {
			key, err := CacheKey(variant.Config, seed, digest)
			if err != nil {
				return nil, err
			}
			units = append(units, unit{
				variant: vi,
				config:  variant.Config,
				params:  variant.Params,
				seed:    seed,
				key:     key,
			})
		}
	}

	report := &Report{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Units:     make([]UnitResult, len(units)),
	}
	log.Infof("study %s: %d variants, %d units, %d workers",
		report.ID, len(variants), len(units), r.opts.Workers)

	var bar *pb.ProgressBar
	if r.opts.Progress {
		bar = pb.StartNew(len(units))
		defer bar.Finish()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i := range units {
		i := i
		g.Go(func() error {
			if bar != nil {
				defer bar.Increment()
			}
			out, err := r.runUnit(gctx, units[i], history)
			report.Units[i] = out
			if err != nil && r.opts.Policy == AbortOnError {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, out := range report.Units {
		switch {
		case out.Error != "":
			report.Failed++
		case out.Cached:
			report.CacheHits++
		default:
			report.Executed++
		}
	}
	report.Summaries = summarize(variants, units, report.Units)
	report.Elapsed = time.Since(report.StartedAt)
	return report, nil
}

func (r *Runner) runUnit(ctx context.Context, u unit, history types.PriceSeries) (UnitResult, error) {
	out := UnitResult{
		Study:  u.config.Name,
		Params: u.params,
		Seed:   u.seed,
		Key:    u.key,
	}

	if !r.opts.Force {
		record, err := r.store.Get(ctx, u.key)
		switch {
		case err == nil:
			metricsCacheHits.Inc()
			out.Cached = true
			out.Result = &record.Result
			return out, nil
		case errors.Is(err, ErrCacheTampered):
			// never recompute over a tampered entry silently
			metricsRunsFailed.Inc()
			out.Error = err.Error()
			log.WithError(err).Errorf("unit seed=%d hit a tampered cache entry", u.seed)
			return out, err
		case !errors.Is(err, ErrCacheMiss):
			log.WithError(err).Warnf("cache lookup failed for seed=%d, executing", u.seed)
		}
	}
	metricsCacheMisses.Inc()

	driver, err := simulation.NewDriver(u.config.RunConfig(u.seed, history))
	if err != nil {
		metricsRunsFailed.Inc()
		out.Error = err.Error()
		return out, err
	}

	result, err := driver.Run(ctx)
	if err != nil {
		metricsRunsFailed.Inc()
		out.Error = err.Error()
		log.WithError(err).Errorf("unit seed=%d failed", u.seed)
		return out, err
	}
	metricsRunsCompleted.Inc()
	out.Result = result

	if err := r.store.Set(ctx, NewRecord(u.key, *result)); err != nil {
		// the result is still good; losing the cache write only costs
		// a recomputation later
		log.WithError(err).Warnf("cache write failed for seed=%d", u.seed)
	}
	return out, nil
}

func summarize(variants []Variant, units []unit, outs []UnitResult) []Summary {
	summaries := make([]Summary, len(variants))
	for vi, variant := range variants {
		summaries[vi] = Summary{
			Study:  variant.Config.Name,
			Params: variant.Params,
		}
	}

	grouped := make([][]*simulation.Result, len(variants))
	for i, u := range units {
		s := &summaries[u.variant]
		s.Runs++
		switch {
		case outs[i].Error != "":
			s.Failed++
			continue
		case outs[i].Cached:
			s.CacheHits++
		}
		grouped[u.variant] = append(grouped[u.variant], outs[i].Result)
	}

	for vi := range summaries {
		results := grouped[vi]
		if len(results) == 0 {
			continue
		}

		var pnls, returns, maxUtil, rejection, defaults []float64
		for _, result := range results {
			pnls = append(pnls, result.PnL)
			returns = append(returns, result.Return)
			maxUtil = append(maxUtil, result.MaxUtilization)
			rejection = append(rejection, result.RejectionRate)
			defaults = append(defaults, result.DefaultRate)
		}
		sort.Float64s(returns)

		s := &summaries[vi]
		s.MeanPnL = stat.Mean(pnls, nil)
		if len(pnls) > 1 {
			s.StdPnL = stat.StdDev(pnls, nil)
		}
		s.MeanReturn = stat.Mean(returns, nil)
		s.ReturnP05 = stat.Quantile(0.05, stat.Empirical, returns, nil)
		s.ReturnP50 = stat.Quantile(0.50, stat.Empirical, returns, nil)
		s.ReturnP95 = stat.Quantile(0.95, stat.Empirical, returns, nil)
		s.MeanMaxUtilization = stat.Mean(maxUtil, nil)
		s.MeanRejectionRate = stat.Mean(rejection, nil)
		s.MeanDefaultRate = stat.Mean(defaults, nil)
	}
	return summaries
}
