package pathgen

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func sampleMany(d Distribution, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = d.Sample()
	}
	return out
}

func TestUniformBounds(t *testing.T) {
	d := NewUniform(rand.New(rand.NewSource(1)), 2, 5)
	for _, v := range sampleMany(d, 2000) {
		assert.GreaterOrEqual(t, v, 2.0)
		assert.Less(t, v, 5.0)
	}
}

func TestTriangularSkew(t *testing.T) {
	d := NewTriangular(rand.New(rand.NewSource(1)), 0, 1)
	var sum float64
	for _, v := range sampleMany(d, 5000) {
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, 1.0)
		sum += v
	}
	// mode at the upper bound pulls the mean above one half
	assert.Greater(t, sum/5000, 0.6)
}

func TestParabolicSkew(t *testing.T) {
	d := NewParabolic(rand.New(rand.NewSource(1)), 0, 1)
	var sum float64
	for _, v := range sampleMany(d, 5000) {
		sum += v
	}
	// cube root transform concentrates mass even harder at the top
	assert.Greater(t, sum/5000, 0.7)
}

func TestReversedBoundsFlipSkew(t *testing.T) {
	d := NewTriangular(rand.New(rand.NewSource(1)), 1, 0)
	var sum float64
	for _, v := range sampleMany(d, 5000) {
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, 1.0)
		sum += v
	}
	assert.Less(t, sum/5000, 0.4)
}

func TestTruncatedNormal(t *testing.T) {
	d := NewTruncatedNormal(rand.New(rand.NewSource(1)), 5, 15, 10, 3)
	var sum float64
	for _, v := range sampleMany(d, 5000) {
		require.GreaterOrEqual(t, v, 5.0)
		require.LessOrEqual(t, v, 15.0)
		sum += v
	}
	assert.InDelta(t, 10.0, sum/5000, 0.2)
}

func TestTruncatedLogNormal(t *testing.T) {
	// sizes between 10^2 and 10^5 centered at 10^3.5
	d := NewTruncatedLogNormal(rand.New(rand.NewSource(1)), 100, 100000, 3.5, 1, 10)
	for _, v := range sampleMany(d, 5000) {
		require.GreaterOrEqual(t, v, 100.0)
		require.LessOrEqual(t, v, 100000.0)
	}
}

func TestNewFactorDist(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for _, tag := range []string{DistUniform, DistTriangular, DistParabolic} {
		d, err := NewFactorDist(rng, tag, false)
		require.NoError(t, err)
		for _, v := range sampleMany(d, 200) {
			assert.False(t, math.IsNaN(v))
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}

	_, err := NewFactorDist(rng, "cauchy", false)
	assert.Error(t, err)
}
