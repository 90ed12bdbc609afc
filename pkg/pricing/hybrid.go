package pricing

import (
	"github.com/pkg/errors"

	"github.com/cora-labs/lendsim/pkg/types"
)

// Sum charges the combined premium of several underlying models.
type Sum struct {
	ID     string
	Models []FeeModel
}

func NewSum(id string, models ...FeeModel) *Sum {
	return &Sum{ID: id, Models: models}
}

func (m *Sum) Name() string { return m.ID }

func (m *Sum) Adaptive() bool {
	for _, sub := range m.Models {
		if sub.Adaptive() {
			return true
		}
	}
	return false
}

func (m *Sum) UpdateParams(history types.PriceSeries) error {
	for _, sub := range m.Models {
		if err := sub.UpdateParams(history); err != nil {
			return errors.Wrapf(err, "updating %s", sub.Name())
		}
	}
	return nil
}

func (m *Sum) Fee(ctx Context) (float64, error) {
	var total float64
	for _, sub := range m.Models {
		fee, err := sub.Fee(ctx)
		if err != nil {
			return 0, errors.Wrapf(err, "pricing with %s", sub.Name())
		}
		total += fee
	}
	return total, nil
}

// Blend takes the primary model's premium unless the baseline quotes
// higher, in which case it averages the two. The baseline acts as a
// moderating floor without ever fully overriding the primary quote.
type Blend struct {
	ID       string
	Baseline FeeModel
	Primary  FeeModel
}

func NewBlend(id string, baseline, primary FeeModel) *Blend {
	return &Blend{ID: id, Baseline: baseline, Primary: primary}
}

func (m *Blend) Name() string { return m.ID }

func (m *Blend) Adaptive() bool {
	return m.Baseline.Adaptive() || m.Primary.Adaptive()
}

func (m *Blend) UpdateParams(history types.PriceSeries) error {
	if err := m.Baseline.UpdateParams(history); err != nil {
		return errors.Wrapf(err, "updating %s", m.Baseline.Name())
	}
	if err := m.Primary.UpdateParams(history); err != nil {
		return errors.Wrapf(err, "updating %s", m.Primary.Name())
	}
	return nil
}

func (m *Blend) Fee(ctx Context) (float64, error) {
	baseFee, err := m.Baseline.Fee(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "pricing with %s", m.Baseline.Name())
	}
	primaryFee, err := m.Primary.Fee(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "pricing with %s", m.Primary.Name())
	}

	if baseFee > primaryFee {
		return (baseFee + primaryFee) / 2, nil
	}
	return primaryFee, nil
}
