package pricing

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cora-labs/lendsim/pkg/types"
)

var log = logrus.WithField("component", "pricing")

// ErrDomain marks a request the model cannot price: the request is
// rejected and the run continues.
var ErrDomain = errors.New("request outside fee model domain")

// IsDomainError reports whether err is a pricing domain failure.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrDomain)
}

// Context carries everything a fee model may price against. Models
// must treat it as read only.
type Context struct {
	// LTV is the requested loan-to-value ratio at origination.
	LTV float64

	// Utilization is the pool utilization before admitting the
	// request.
	Utilization float64

	// TermDays is the requested loan duration in days.
	TermDays float64

	// Spot is the current collateral price.
	Spot float64
}

func (c Context) validate() error {
	if c.LTV <= 0 || c.LTV >= 1 {
		return errors.Wrapf(ErrDomain, "ltv %f not in (0, 1)", c.LTV)
	}
	if c.TermDays <= 0 {
		return errors.Wrapf(ErrDomain, "term %f days not positive", c.TermDays)
	}
	if c.Utilization < 0 || c.Utilization > 1 {
		return errors.Wrapf(ErrDomain, "utilization %f not in [0, 1]", c.Utilization)
	}
	return nil
}

// FeeModel prices loan requests. Fee is a pure function of the context
// and the model's current parameters; it must not mutate any shared
// state. Adaptive models recalibrate from a trailing price window when
// UpdateParams is invoked; static models treat it as a no-op.
type FeeModel interface {
	Name() string

	// Fee returns the premium as a rate on notional.
	Fee(ctx Context) (float64, error)

	UpdateParams(history types.PriceSeries) error

	// Adaptive reports whether UpdateParams does anything, so the run
	// driver can skip the window bookkeeping for static models.
	Adaptive() bool
}
