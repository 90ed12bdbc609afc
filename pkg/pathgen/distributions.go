package pathgen

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Distribution draws one sample per call from a shared random source.
type Distribution interface {
	Sample() float64
}

// Distribution tags accepted in study configurations for the
// loan-start and loan-duration factor draws.
const (
	DistUniform    = "uniform"
	DistTriangular = "triangular"
	DistParabolic  = "parabolic"
)

// Uniform samples uniformly between Lower and Upper.
type Uniform struct {
	Lower, Upper float64
	rng          *rand.Rand
}

func NewUniform(rng *rand.Rand, lower, upper float64) *Uniform {
	return &Uniform{Lower: lower, Upper: upper, rng: rng}
}

func (d *Uniform) Sample() float64 {
	return d.Lower + (d.Upper-d.Lower)*d.rng.Float64()
}

// Triangular samples a triangle density with its mode at Upper.
// Swapping the bounds flips the mode to the other end.
type Triangular struct {
	Lower, Upper float64
	rng          *rand.Rand
}

func NewTriangular(rng *rand.Rand, lower, upper float64) *Triangular {
	return &Triangular{Lower: lower, Upper: upper, rng: rng}
}

func (d *Triangular) Sample() float64 {
	return d.Lower + (d.Upper-d.Lower)*math.Sqrt(d.rng.Float64())
}

// Parabolic samples a power-law density (k = 3) peaked at Upper, the
// "peaked" arrival profile. Swapping the bounds flips the peak.
type Parabolic struct {
	Lower, Upper float64
	rng          *rand.Rand
}

func NewParabolic(rng *rand.Rand, lower, upper float64) *Parabolic {
	return &Parabolic{Lower: lower, Upper: upper, rng: rng}
}

func (d *Parabolic) Sample() float64 {
	return d.Lower + (d.Upper-d.Lower)*math.Cbrt(d.rng.Float64())
}

// TruncatedNormal samples a normal distribution restricted to
// [Lower, Upper] by inverse-transform over the truncated CDF.
type TruncatedNormal struct {
	Lower, Upper float64
	Mean, Std    float64

	rng *rand.Rand
	fa  float64
	fb  float64
}

func NewTruncatedNormal(rng *rand.Rand, lower, upper, mean, std float64) *TruncatedNormal {
	std1 := distuv.Normal{Mu: 0, Sigma: 1}
	a := (lower - mean) / std
	b := (upper - mean) / std
	return &TruncatedNormal{
		Lower: lower, Upper: upper,
		Mean: mean, Std: std,
		rng: rng,
		fa:  std1.CDF(a),
		fb:  std1.CDF(b),
	}
}

func (d *TruncatedNormal) Sample() float64 {
	std1 := distuv.Normal{Mu: 0, Sigma: 1}
	u := d.fa + (d.fb-d.fa)*d.rng.Float64()
	return d.Mean + d.Std*std1.Quantile(u)
}

// TruncatedLogNormal samples Base**X where X is a truncated normal in
// the log domain. Used for loan sizes, which span several orders of
// magnitude.
type TruncatedLogNormal struct {
	Lower, Upper float64
	Mean, Std    float64
	Base         float64

	inner *TruncatedNormal
}

func NewTruncatedLogNormal(rng *rand.Rand, lower, upper, mean, std, base float64) *TruncatedLogNormal {
	logBase := math.Log(base)
	a := mean - std*10.0
	if lower != 0 {
		a = math.Log(lower) / logBase
	}
	b := mean + std*10.0
	if upper != 0 {
		b = math.Log(upper) / logBase
	}
	return &TruncatedLogNormal{
		Lower: lower, Upper: upper,
		Mean: mean, Std: std, Base: base,
		inner: NewTruncatedNormal(rng, a, b, mean, std),
	}
}

func (d *TruncatedLogNormal) Sample() float64 {
	return math.Pow(d.Base, d.inner.Sample())
}

// NewFactorDist builds a [0, 1] factor distribution from its
// configuration tag. Arrival-time factors use the reversed bounds for
// the peaked profiles so that demand concentrates early in the run;
// duration factors peak at the long end.
func NewFactorDist(rng *rand.Rand, tag string, reversed bool) (Distribution, error) {
	lower, upper := 0.0, 1.0
	if reversed {
		lower, upper = 1.0, 0.0
	}
	switch tag {
	case DistUniform:
		return NewUniform(rng, 0.0, 1.0), nil
	case DistTriangular:
		return NewTriangular(rng, lower, upper), nil
	case DistParabolic:
		return NewParabolic(rng, lower, upper), nil
	}
	return nil, errors.Errorf("pathgen: unknown distribution tag %q", tag)
}
