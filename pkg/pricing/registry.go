package pricing

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// ParamSpec describes one tunable parameter of a registered fee model.
type ParamSpec struct {
	Name        string
	Default     float64
	Description string
}

// Constructor builds a fee model from a fully merged parameter map.
type Constructor func(params map[string]float64) (FeeModel, error)

type registration struct {
	params []ParamSpec
	ctor   Constructor
}

var (
	registryMu sync.Mutex
	registry   = map[string]registration{}
)

// Register makes a fee model constructor available under the given id.
// It panics on duplicate ids so wiring mistakes surface at startup.
func Register(id string, params []ParamSpec, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[id]; exists {
		panic("pricing: duplicate fee model id " + id)
	}
	registry[id] = registration{params: params, ctor: ctor}
}

// New instantiates a registered fee model. Overrides replace the
// registered defaults; an override for a parameter the model does not
// declare is an error.
func New(id string, overrides map[string]float64) (FeeModel, error) {
	registryMu.Lock()
	reg, ok := registry[id]
	registryMu.Unlock()
	if !ok {
		return nil, errors.Errorf("pricing: unknown fee model %q, available: %v", id, Names())
	}

	params, err := mergeParams(id, reg.params, overrides)
	if err != nil {
		return nil, err
	}
	return reg.ctor(params)
}

// Params returns the parameter schema of a registered model.
func Params(id string) ([]ParamSpec, error) {
	registryMu.Lock()
	defer registryMu.Unlock()

	reg, ok := registry[id]
	if !ok {
		return nil, errors.Errorf("pricing: unknown fee model %q", id)
	}
	out := make([]ParamSpec, len(reg.params))
	copy(out, reg.params)
	return out, nil
}

// Names lists all registered fee model ids.
func Names() []string {
	registryMu.Lock()
	defer registryMu.Unlock()

	names := make([]string, 0, len(registry))
	for id := range registry {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}

func mergeParams(id string, specs []ParamSpec, overrides map[string]float64) (map[string]float64, error) {
	params := make(map[string]float64, len(specs))
	for _, spec := range specs {
		params[spec.Name] = spec.Default
	}
	for name, value := range overrides {
		if _, ok := params[name]; !ok {
			return nil, errors.Errorf("pricing: model %q has no parameter %q", id, name)
		}
		params[name] = value
	}
	return params, nil
}

var defaultKellyLTVs = func() []float64 {
	var ltvs []float64
	for v := 0.05; v < 0.951; v += 0.05 {
		ltvs = append(ltvs, v)
	}
	return ltvs
}()

var bsmParams = []ParamSpec{
	{Name: "lookback_days", Default: 365, Description: "realized volatility window"},
	{Name: "volatility_factor", Default: 1, Description: "scale applied to realized volatility"},
	{Name: "risk_free_rate", Default: 0, Description: "annualized risk free rate"},
}

var tradParams = []ParamSpec{
	{Name: "optimal_utilization", Default: 1.0, Description: "utilization kink of the rate curve"},
	{Name: "base_rate", Default: 0.01, Description: "annualized rate at zero utilization"},
	{Name: "rate_slope_1", Default: 0.005, Description: "annualized slope below the kink"},
	{Name: "rate_slope_2", Default: 0.75, Description: "annualized slope above the kink"},
}

var kellyParams = []ParamSpec{
	{Name: "lookback_days", Default: 365, Description: "loss distribution window"},
	{Name: "max_expiration_days", Default: 30, Description: "longest expiration on the curve grid"},
	{Name: "interval_days", Default: 1, Description: "expiration spacing of the curve grid"},
}

func newBSM(params map[string]float64) (FeeModel, error) {
	return &BlackScholes{
		LookbackDays:     int(params["lookback_days"]),
		VolatilityFactor: params["volatility_factor"],
		RiskFreeRate:     params["risk_free_rate"],
	}, nil
}

func newTrad(params map[string]float64) (FeeModel, error) {
	return NewTraditional(
		params["optimal_utilization"],
		params["base_rate"],
		params["rate_slope_1"],
		params["rate_slope_2"],
	)
}

func newKelly(params map[string]float64) (FeeModel, error) {
	return NewKelly(
		int(params["lookback_days"]),
		defaultKellyLTVs,
		int(params["max_expiration_days"]),
		int(params["interval_days"]),
	), nil
}

func hybridCtor(id string, newPrimary Constructor, blend bool) Constructor {
	return func(params map[string]float64) (FeeModel, error) {
		primary, err := newPrimary(params)
		if err != nil {
			return nil, err
		}
		trad, err := newTrad(params)
		if err != nil {
			return nil, err
		}
		if blend {
			return NewBlend(id, trad, primary), nil
		}
		return NewSum(id, primary, trad), nil
	}
}

func init() {
	Register("bsm", bsmParams, newBSM)
	Register("trad", tradParams, newTrad)
	Register("kelly", kellyParams, newKelly)

	bsmTrad := append(append([]ParamSpec{}, bsmParams...), tradParams...)
	kellyTrad := append(append([]ParamSpec{}, kellyParams...), tradParams...)

	Register("bsmtradsum", bsmTrad, hybridCtor("bsmtradsum", newBSM, false))
	Register("bsmtradcombo", bsmTrad, hybridCtor("bsmtradcombo", newBSM, true))
	Register("kellytradsum", kellyTrad, hybridCtor("kellytradsum", newKelly, false))
	Register("kellytradcombo", kellyTrad, hybridCtor("kellytradcombo", newKelly, true))
}
