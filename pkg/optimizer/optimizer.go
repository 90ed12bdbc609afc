package optimizer

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"sync"

	"github.com/c-bata/goptuna"
	goptunaCMAES "github.com/c-bata/goptuna/cmaes"
	goptunaSOBOL "github.com/c-bata/goptuna/sobol"
	goptunaTPE "github.com/c-bata/goptuna/tpe"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/cora-labs/lendsim/pkg/study"
	"github.com/cora-labs/lendsim/pkg/types"
)

var log = logrus.WithField("component", "optimizer")

const (
	// AlgorithmTPE is tree-structured Parzen estimator search.
	AlgorithmTPE = "tpe"
	// AlgorithmCMAES is covariance matrix adaptation evolution strategy.
	AlgorithmCMAES = "cmaes"
	// AlgorithmSOBOL is quasi-monte-carlo sampling on a Sobol sequence.
	AlgorithmSOBOL = "sobol"
	// AlgorithmRandom is plain random search.
	AlgorithmRandom = "random"
)

const (
	// ObjectivePnL maximizes the mean pool profit across seeds.
	ObjectivePnL = "pnl"
	// ObjectiveReturn maximizes the mean normalized return.
	ObjectiveReturn = "return"
	// ObjectiveSharpe maximizes mean profit per unit of its spread.
	ObjectiveSharpe = "sharpe"
	// ObjectiveTailReturn maximizes the 5th percentile return, the
	// value-at-risk view of the ensemble.
	ObjectiveTailReturn = "tail"
)

// MetricValueFunc extracts the scalar being maximized from a variant
// summary.
type MetricValueFunc func(summary study.Summary) float64

func metricFor(objective string) (MetricValueFunc, error) {
	switch strings.ToLower(objective) {
	case "", "default", ObjectivePnL:
		return func(s study.Summary) float64 { return s.MeanPnL }, nil
	case ObjectiveReturn:
		return func(s study.Summary) float64 { return s.MeanReturn }, nil
	case ObjectiveSharpe:
		return func(s study.Summary) float64 {
			if s.StdPnL == 0 {
				return s.MeanPnL
			}
			return s.MeanPnL / s.StdPnL
		}, nil
	case ObjectiveTailReturn:
		return func(s study.Summary) float64 { return s.ReturnP05 }, nil
	}
	return nil, errors.Errorf("optimizer: unknown objective %q", objective)
}

type Config struct {
	Algorithm     string           `json:"algorithm" yaml:"algorithm"`
	Objective     string           `json:"objectiveBy" yaml:"objectiveBy"`
	MaxEvaluation int              `json:"maxEvaluation" yaml:"maxEvaluation"`
	Workers       int              `json:"workers" yaml:"workers"`
	Matrix        []study.Selector `json:"matrix" yaml:"matrix"`
}

type TrialResult struct {
	Value      float64                `json:"value"`
	Parameters map[string]interface{} `json:"parameters"`
	ID         *int                   `json:"id,omitempty"`
	State      string                 `json:"state,omitempty"`
}

type Report struct {
	Name       string            `json:"studyName"`
	Objective  string            `json:"objective"`
	Parameters map[string]string `json:"domains"`
	Best       *TrialResult      `json:"best"`
	Trials     []*TrialResult    `json:"trials,omitempty"`
}

// Optimizer searches a study's parameter space for the configuration
// that maximizes the chosen objective. Each trial runs the full seed
// ensemble of the candidate configuration through the study runner, so
// the cache makes repeated visits to a region cheap.
type Optimizer struct {
	SessionName string
	Config      *Config

	runner  *study.Runner
	history types.PriceSeries

	// goptuna/tpe suggestion is not safe under concurrent trials.
	paramSuggestionLock sync.Mutex
}

func New(sessionName string, cfg *Config, runner *study.Runner, history types.PriceSeries) *Optimizer {
	return &Optimizer{
		SessionName: sessionName,
		Config:      cfg,
		runner:      runner,
		history:     history,
	}
}

func (o *Optimizer) buildStudy() (*goptuna.Study, error) {
	opts := []goptuna.StudyOption{
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMaximize),
		goptuna.StudyOptionLogger(nil),
	}

	var sampler goptuna.Sampler
	var relativeSampler goptuna.RelativeSampler
	switch strings.ToLower(o.Config.Algorithm) {
	case "", "default", AlgorithmTPE:
		sampler = goptunaTPE.NewSampler()
	case AlgorithmRandom:
		sampler = goptuna.NewRandomSampler()
	case AlgorithmCMAES:
		relativeSampler = goptunaCMAES.NewSampler(goptunaCMAES.SamplerOptionNStartupTrials(5))
	case AlgorithmSOBOL:
		relativeSampler = goptunaSOBOL.NewSampler()
	default:
		return nil, errors.Errorf("optimizer: unknown algorithm %q", o.Config.Algorithm)
	}
	if sampler != nil {
		opts = append(opts, goptuna.StudyOptionSampler(sampler))
	} else {
		opts = append(opts, goptuna.StudyOptionRelativeSampler(relativeSampler))
	}

	return goptuna.CreateStudy(o.SessionName, opts...)
}

func (o *Optimizer) buildObjective(ctx context.Context, base *study.Config, domains []paramDomain, metric MetricValueFunc) (goptuna.FuncObjective, error) {
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, errors.Wrap(err, "optimizer: encoding base config")
	}

	return func(trial goptuna.Trial) (float64, error) {
		trialJSON, err := func(doc []byte) ([]byte, error) {
			o.paramSuggestionLock.Lock()
			defer o.paramSuggestionLock.Unlock()

			for _, domain := range domains {
				patch, err := domain.buildPatch(&trial)
				if err != nil {
					return nil, err
				}
				if doc, err = patch.Apply(doc); err != nil {
					return nil, err
				}
			}
			return doc, nil
		}(baseJSON)
		if err != nil {
			return 0, err
		}

		var cfg study.Config
		if err := json.Unmarshal(trialJSON, &cfg); err != nil {
			return 0, errors.Wrap(err, "optimizer: decoding trial config")
		}
		if err := cfg.Validate(); err != nil {
			return 0, err
		}

		report, err := o.runner.Run(ctx, []study.Variant{{Config: &cfg}}, o.history)
		if err != nil {
			return 0, err
		}
		summary := report.Summaries[0]
		if summary.Runs == summary.Failed {
			return 0, errors.Errorf("optimizer: all %d runs of the trial failed", summary.Runs)
		}
		return metric(summary), nil
	}, nil
}

// Run evaluates up to MaxEvaluation trials and reports the best
// parameter set found.
func (o *Optimizer) Run(ctx context.Context, base *study.Config) (*Report, error) {
	metric, err := metricFor(o.Config.Objective)
	if err != nil {
		return nil, err
	}
	labelPaths, domains := buildParamDomains(o.Config.Matrix)
	if len(domains) == 0 {
		return nil, errors.New("optimizer: matrix has no searchable dimensions")
	}

	objective, err := o.buildObjective(ctx, base, domains, metric)
	if err != nil {
		return nil, err
	}

	gstudy, err := o.buildStudy()
	if err != nil {
		return nil, err
	}

	maxEvaluation := o.Config.MaxEvaluation
	if maxEvaluation <= 0 {
		maxEvaluation = 100
	}
	workers := o.Config.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > maxEvaluation {
		workers = maxEvaluation
	}
	perWorker := maxEvaluation / workers
	if maxEvaluation%workers > 0 {
		perWorker++
	}

	eg, egCtx := errgroup.WithContext(ctx)
	gstudy.WithContext(egCtx)
	remaining := maxEvaluation
	for i := 0; i < workers; i++ {
		evaluations := perWorker
		if evaluations > remaining {
			evaluations = remaining
		}
		remaining -= evaluations
		eg.Go(func() error {
			return gstudy.Optimize(objective, evaluations)
		})
	}
	if err := eg.Wait(); err != nil && !errors.Is(ctx.Err(), context.Canceled) {
		return nil, err
	}

	return o.buildReport(gstudy, labelPaths)
}

func (o *Optimizer) buildReport(gstudy *goptuna.Study, labelPaths map[string]string) (*Report, error) {
	bestValue, err := gstudy.GetBestValue()
	if err != nil {
		return nil, errors.Wrap(err, "optimizer: no completed trial")
	}
	bestParams, err := gstudy.GetBestParams()
	if err != nil {
		return nil, errors.Wrap(err, "optimizer: no completed trial")
	}

	report := &Report{
		Name:       o.SessionName,
		Objective:  o.Config.Objective,
		Parameters: labelPaths,
		Best: &TrialResult{
			Value:      bestValue,
			Parameters: bestParams,
		},
	}

	trials, err := gstudy.GetTrials()
	if err != nil {
		return report, nil
	}
	for _, trial := range trials {
		id := trial.ID
		value := trial.Value
		if math.IsNaN(value) {
			value = 0
		}
		report.Trials = append(report.Trials, &TrialResult{
			ID:         &id,
			Value:      value,
			Parameters: trial.Params,
			State:      trialStateName(trial.State),
		})
	}
	return report, nil
}

func trialStateName(state goptuna.TrialState) string {
	switch state {
	case goptuna.TrialStateComplete:
		return "complete"
	case goptuna.TrialStateFail:
		return "fail"
	case goptuna.TrialStateRunning:
		return "running"
	case goptuna.TrialStatePruned:
		return "pruned"
	}
	return "unknown"
}
