package simulation

import "github.com/cora-labs/lendsim/pkg/pool"

// Result is the per-seed summary emitted by a completed run. Every
// field is a deterministic function of the run config and seed; the
// study cache hashes over the serialized form.
type Result struct {
	Seed  uint64 `json:"seed"`
	Model string `json:"model"`
	Steps int    `json:"steps"`

	FinalPrice     float64 `json:"finalPrice"`
	FinalTotal     float64 `json:"finalTotal"`
	FinalAvailable float64 `json:"finalAvailable"`

	// PnL is the realized profit of the pool; Return is the same
	// normalized by the initial liquidity.
	PnL    float64 `json:"pnl"`
	Return float64 `json:"return"`

	PremiumsEarned float64 `json:"premiumsEarned"`

	MaxUtilization  float64 `json:"maxUtilization"`
	MeanUtilization float64 `json:"meanUtilization"`
	MaxOpenLoans    int     `json:"maxOpenLoans"`

	Counters pool.Counters `json:"counters"`

	// RejectionRate is rejected over proposed; zero when no request
	// arrived.
	RejectionRate float64 `json:"rejectionRate"`

	// DefaultRate is defaulted over opened; zero when no loan opened.
	DefaultRate float64 `json:"defaultRate"`
}
