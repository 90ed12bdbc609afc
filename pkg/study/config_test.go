package study

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cora-labs/lendsim/pkg/types"
)

const testStudyYAML = `
study:
  name: ltv-sweep
  horizonDays: 30
  initialLiquidity: 100000
  maxLtv: 0.8
  demandRatio: 1.5
  model: bsm
  modelParams:
    lookback_days: 90
  seeds: 5
  baseSeed: 1000
matrix:
  - type: rangeFloat
    label: ltv
    path: /maxLtv
    min: 0.5
    max: 0.8
    step: 0.1
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "study.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testStudyYAML), 0o644))

	file, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "ltv-sweep", file.Study.Name)
	assert.Equal(t, 30, file.Study.HorizonDays)
	assert.Equal(t, "bsm", file.Study.Model)
	assert.Equal(t, 90.0, file.Study.ModelParams["lookback_days"])
	assert.Equal(t, 5, file.Study.Seeds)
	assert.Equal(t, uint64(1000), file.Study.BaseSeed)

	// unspecified fields pick up defaults
	assert.Equal(t, "uniform", file.Study.ArrivalDist)
	assert.Equal(t, 1.0, file.Study.VolatilityFactor)
	assert.Equal(t, 1.0, file.Study.MaxUtilization)
	assert.Equal(t, 0.5, file.Study.LTVMean)

	require.Len(t, file.Matrix, 1)
	assert.Equal(t, "ltv", file.Matrix[0].Label)
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "study.yaml")
	require.NoError(t, os.WriteFile(path, []byte("study:\n  horizonDays: -1\n"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSeedRange(t *testing.T) {
	cfg := &Config{Seeds: 3, BaseSeed: 100}
	assert.Equal(t, []uint64{100, 101, 102}, cfg.SeedRange())
}

func TestRunConfigProjection(t *testing.T) {
	cfg := baseConfig()
	history := types.PriceSeries{{Time: 0, Price: 1}, {Time: 3600, Price: 2}}

	rc := cfg.RunConfig(42, history)
	assert.Equal(t, uint64(42), rc.Seed)
	assert.Equal(t, cfg.HorizonDays, rc.HorizonDays)
	assert.Equal(t, cfg.MaxLTV, rc.MaxLTV)
	assert.Equal(t, cfg.Model, rc.Model)
	assert.Equal(t, history, rc.History)
}
