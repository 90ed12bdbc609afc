package study

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cora-labs/lendsim/pkg/simulation"
	"github.com/cora-labs/lendsim/pkg/types"
)

// Config is one study configuration: everything that, together with a
// seed, pins down a reproducible run ensemble. Treat values as
// immutable once a study starts; the grid enumerator always works on
// patched copies, never in place.
type Config struct {
	Name string `json:"name" yaml:"name"`

	HorizonDays int `json:"horizonDays" yaml:"horizonDays"`

	InitialLiquidity float64 `json:"initialLiquidity" yaml:"initialLiquidity"`
	MaxLTV           float64 `json:"maxLtv" yaml:"maxLtv"`
	MaxUtilization   float64 `json:"maxUtilization" yaml:"maxUtilization"`
	DemandRatio      float64 `json:"demandRatio" yaml:"demandRatio"`

	VolatilityFactor float64 `json:"volatilityFactor" yaml:"volatilityFactor"`
	ZeroDrift        bool    `json:"zeroDrift" yaml:"zeroDrift"`

	ArrivalDist  string `json:"arrivalDist" yaml:"arrivalDist"`
	DurationDist string `json:"durationDist" yaml:"durationDist"`

	SizeMin float64 `json:"sizeMin" yaml:"sizeMin"`
	SizeMax float64 `json:"sizeMax" yaml:"sizeMax"`
	LTVMean float64 `json:"ltvMean" yaml:"ltvMean"`
	LTVStd  float64 `json:"ltvStd" yaml:"ltvStd"`

	Model       string             `json:"model" yaml:"model"`
	ModelParams map[string]float64 `json:"modelParams,omitempty" yaml:"modelParams,omitempty"`

	UpdateEveryDays int `json:"updateEveryDays" yaml:"updateEveryDays"`

	EarlyRepayProb   float64 `json:"earlyRepayProb" yaml:"earlyRepayProb"`
	EarlyRepayMargin float64 `json:"earlyRepayMargin" yaml:"earlyRepayMargin"`

	// Seeds is the ensemble size; runs use BaseSeed .. BaseSeed+Seeds-1.
	Seeds    int    `json:"seeds" yaml:"seeds"`
	BaseSeed uint64 `json:"baseSeed" yaml:"baseSeed"`
}

func (c *Config) Validate() error {
	if c.Seeds <= 0 {
		return errors.Errorf("study: seeds %d must be positive", c.Seeds)
	}
	rc := c.RunConfig(c.BaseSeed, types.PriceSeries{{}, {}})
	if err := rc.Validate(); err != nil {
		return errors.Wrap(err, "study: invalid base config")
	}
	return nil
}

// RunConfig projects this study configuration onto one seeded run.
func (c *Config) RunConfig(seed uint64, history types.PriceSeries) simulation.RunConfig {
	return simulation.RunConfig{
		Seed:             seed,
		HorizonDays:      c.HorizonDays,
		History:          history,
		InitialLiquidity: c.InitialLiquidity,
		MaxLTV:           c.MaxLTV,
		MaxUtilization:   c.MaxUtilization,
		DemandRatio:      c.DemandRatio,
		VolatilityFactor: c.VolatilityFactor,
		ZeroDrift:        c.ZeroDrift,
		ArrivalDist:      c.ArrivalDist,
		DurationDist:     c.DurationDist,
		SizeMin:          c.SizeMin,
		SizeMax:          c.SizeMax,
		LTVMean:          c.LTVMean,
		LTVStd:           c.LTVStd,
		Model:            c.Model,
		ModelParams:      c.ModelParams,
		UpdateEveryDays:  c.UpdateEveryDays,
		EarlyRepayProb:   c.EarlyRepayProb,
		EarlyRepayMargin: c.EarlyRepayMargin,
	}
}

// SeedRange lists the seeds of the ensemble.
func (c *Config) SeedRange() []uint64 {
	seeds := make([]uint64, c.Seeds)
	for i := range seeds {
		seeds[i] = c.BaseSeed + uint64(i)
	}
	return seeds
}

// File is a study definition on disk: the base configuration plus an
// optional selector matrix for parameter sweeps.
type File struct {
	Study  Config     `json:"study" yaml:"study"`
	Matrix []Selector `json:"matrix,omitempty" yaml:"matrix,omitempty"`
}

func LoadFile(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "study: reading config")
	}

	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrap(err, "study: parsing config")
	}

	applyDefaults(&f.Study)
	if err := f.Study.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func applyDefaults(c *Config) {
	if c.Name == "" {
		c.Name = "study"
	}
	if c.Seeds == 0 {
		c.Seeds = 1
	}
	if c.ArrivalDist == "" {
		c.ArrivalDist = "uniform"
	}
	if c.DurationDist == "" {
		c.DurationDist = "uniform"
	}
	if c.VolatilityFactor == 0 {
		c.VolatilityFactor = 1
	}
	if c.SizeMin == 0 && c.SizeMax == 0 {
		c.SizeMin, c.SizeMax = 10, 100000
	}
	if c.LTVMean == 0 {
		c.LTVMean = 0.5
	}
	if c.LTVStd == 0 {
		c.LTVStd = 0.2
	}
	if c.MaxUtilization == 0 {
		c.MaxUtilization = 1
	}
}
