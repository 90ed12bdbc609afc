package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryBuiltins(t *testing.T) {
	names := Names()
	for _, id := range []string{
		"bsm", "trad", "kelly",
		"bsmtradsum", "bsmtradcombo",
		"kellytradsum", "kellytradcombo",
	} {
		assert.Contains(t, names, id)

		model, err := New(id, nil)
		require.NoError(t, err, "constructing %s with defaults", id)
		assert.Equal(t, id, model.Name())
	}
}

func TestRegistryOverrides(t *testing.T) {
	model, err := New("bsm", map[string]float64{"volatility_factor": 2.5})
	require.NoError(t, err)

	bsm, ok := model.(*BlackScholes)
	require.True(t, ok)
	assert.Equal(t, 2.5, bsm.VolatilityFactor)
	assert.Equal(t, 365, bsm.LookbackDays)
}

func TestRegistryUnknownModel(t *testing.T) {
	_, err := New("martingale", nil)
	assert.Error(t, err)
}

func TestRegistryUnknownParam(t *testing.T) {
	_, err := New("trad", map[string]float64{"nope": 1})
	assert.Error(t, err)
}

func TestRegistryParams(t *testing.T) {
	specs, err := Params("trad")
	require.NoError(t, err)

	defaults := map[string]float64{}
	for _, spec := range specs {
		defaults[spec.Name] = spec.Default
	}
	assert.Equal(t, 0.01, defaults["base_rate"])
	assert.Equal(t, 1.0, defaults["optimal_utilization"])
}

func TestRegistryHybridParams(t *testing.T) {
	// hybrids accept the union of their children's parameters
	model, err := New("bsmtradsum", map[string]float64{
		"volatility_factor": 1.5,
		"base_rate":         0.02,
	})
	require.NoError(t, err)
	assert.True(t, model.Adaptive())
}
