package pool

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cora-labs/lendsim/pkg/types"
)

var log = logrus.WithField("component", "pool")

// conservationEpsilon bounds the float drift tolerated between the
// ledger totals and the sum of open notionals.
const conservationEpsilon = 1e-6

// RejectReason says why a loan request was not admitted.
type RejectReason int

const (
	RejectNone RejectReason = iota

	// RejectLTV: requested LTV strictly above the pool maximum.
	RejectLTV

	// RejectUtilization: admitting the loan would push utilization
	// strictly above the pool maximum.
	RejectUtilization

	// RejectLiquidity: notional exceeds available liquidity.
	RejectLiquidity

	// RejectPricing: the fee model could not price the request.
	RejectPricing
)

func (r RejectReason) String() string {
	switch r {
	case RejectNone:
		return "none"
	case RejectLTV:
		return "ltv"
	case RejectUtilization:
		return "utilization"
	case RejectLiquidity:
		return "liquidity"
	case RejectPricing:
		return "pricing"
	}
	return "unknown"
}

// Counters accumulate request and settlement outcomes over a run.
type Counters struct {
	Proposed  uint64 `json:"proposed"`
	Opened    uint64 `json:"opened"`
	Repaid    uint64 `json:"repaid"`
	Expired   uint64 `json:"expired"`
	Defaulted uint64 `json:"defaulted"`

	RejectedLTV         uint64 `json:"rejectedLTV"`
	RejectedUtilization uint64 `json:"rejectedUtilization"`
	RejectedLiquidity   uint64 `json:"rejectedLiquidity"`
	RejectedPricing     uint64 `json:"rejectedPricing"`
}

func (c Counters) Rejected() uint64 {
	return c.RejectedLTV + c.RejectedUtilization + c.RejectedLiquidity + c.RejectedPricing
}

// Pool is the lending pool ledger. Lent capital leaves the available
// balance when a loan opens and returns through one of the settlement
// paths; the pool total only moves by realized premiums and realized
// losses, so available + sum(open notionals) must always equal total.
type Pool struct {
	MaxLTV         float64
	MaxUtilization float64

	initial   float64
	total     float64
	available float64

	open   []*types.Loan
	nextID uint64

	counters Counters
}

func NewPool(initialLiquidity, maxLTV, maxUtilization float64) (*Pool, error) {
	if initialLiquidity <= 0 {
		return nil, errors.Errorf("pool: initial liquidity %f must be positive", initialLiquidity)
	}
	if maxLTV <= 0 || maxLTV >= 1 {
		return nil, errors.Errorf("pool: max ltv %f not in (0, 1)", maxLTV)
	}
	if maxUtilization <= 0 || maxUtilization > 1 {
		return nil, errors.Errorf("pool: max utilization %f not in (0, 1]", maxUtilization)
	}
	return &Pool{
		MaxLTV:         maxLTV,
		MaxUtilization: maxUtilization,
		initial:        initialLiquidity,
		total:          initialLiquidity,
		available:      initialLiquidity,
	}, nil
}

func (p *Pool) Total() float64     { return p.total }
func (p *Pool) Available() float64 { return p.available }
func (p *Pool) Initial() float64   { return p.initial }

// PnL is the realized profit of the pool since inception.
func (p *Pool) PnL() float64 { return p.total - p.initial }

func (p *Pool) Utilization() float64 {
	if p.total <= 0 {
		return 1
	}
	return (p.total - p.available) / p.total
}

func (p *Pool) OpenLoans() []*types.Loan { return p.open }

func (p *Pool) Counters() Counters { return p.counters }

// Check runs the admission rules against a request without mutating
// the ledger. Bounds are inclusive: a request exactly at the maximum
// LTV or exactly filling the utilization cap is admitted.
func (p *Pool) Check(req types.LoanRequest) RejectReason {
	if req.LTV > p.MaxLTV {
		return RejectLTV
	}
	if req.Notional > p.available {
		return RejectLiquidity
	}
	if p.total > 0 {
		after := (p.total - p.available + req.Notional) / p.total
		if after > p.MaxUtilization {
			return RejectUtilization
		}
	}
	return RejectNone
}

// Propose records the request and applies the admission rules. On
// rejection the ledger is untouched.
func (p *Pool) Propose(req types.LoanRequest) RejectReason {
	p.counters.Proposed++
	reason := p.Check(req)
	switch reason {
	case RejectLTV:
		p.counters.RejectedLTV++
	case RejectUtilization:
		p.counters.RejectedUtilization++
	case RejectLiquidity:
		p.counters.RejectedLiquidity++
	}
	return reason
}

// RejectPricing records a request that passed admission but could not
// be priced by the fee model.
func (p *Pool) RejectPricing() {
	p.counters.RejectedPricing++
}

// Open lends the notional against collateral sized so that the loan
// opens exactly at the requested LTV. The premium is owed at
// settlement, not collected upfront.
func (p *Pool) Open(req types.LoanRequest, now int, price, premium float64) (*types.Loan, error) {
	if price <= 0 {
		return nil, errors.Errorf("pool: cannot open loan at price %f", price)
	}
	if req.Notional > p.available {
		return nil, errors.Errorf("pool: notional %f exceeds available %f", req.Notional, p.available)
	}

	p.nextID++
	loan := &types.Loan{
		ID:               p.nextID,
		OpenedAt:         now,
		Notional:         req.Notional,
		CollateralAmount: req.Notional / (req.LTV * price),
		CollateralValue:  req.Notional / req.LTV,
		InitialLTV:       req.LTV,
		Duration:         req.Duration,
		Premium:          premium,
		State:            types.LoanStateOpen,
	}

	p.available -= req.Notional
	p.open = append(p.open, loan)
	p.counters.Opened++

	log.Debugf("loan %d opened: notional=%.2f ltv=%.2f premium=%.4f", loan.ID, loan.Notional, loan.InitialLTV, loan.Premium)
	return loan, nil
}

// LiquidateUnderwater seizes collateral from open loans whose
// collateral no longer covers the debt at the current price. The
// lender realizes the shortfall immediately.
func (p *Pool) LiquidateUnderwater(now int, price float64) []*types.Loan {
	var defaulted []*types.Loan
	p.open = filterLoans(p.open, func(loan *types.Loan) bool {
		value := loan.CollateralAmount * price
		if value >= loan.Debt() {
			return true
		}
		p.settle(loan, types.LoanStateDefaulted, now, price, value)
		p.counters.Defaulted++
		defaulted = append(defaulted, loan)
		return false
	})
	return defaulted
}

// ResolveExpirations settles every loan due at or before now. A
// borrower whose collateral is worth more than the debt repays and
// takes the collateral back; otherwise the loan expires and the pool
// keeps the collateral.
func (p *Pool) ResolveExpirations(now int, price float64) (repaid, expired []*types.Loan) {
	p.open = filterLoans(p.open, func(loan *types.Loan) bool {
		if loan.ExpiresAt() > now {
			return true
		}
		value := loan.CollateralAmount * price
		if value > loan.Debt() {
			p.settle(loan, types.LoanStateRepaid, now, price, loan.Debt())
			p.counters.Repaid++
			repaid = append(repaid, loan)
		} else {
			p.settle(loan, types.LoanStateExpired, now, price, value)
			p.counters.Expired++
			expired = append(expired, loan)
		}
		return false
	})
	return repaid, expired
}

// ApplyEarlyRepayments settles loans whose borrowers choose to close
// before expiry: the collateral must be worth at least the debt plus
// the margin, and each eligible borrower repays with probability
// repayProb per step. draw must yield uniform [0, 1) variates.
func (p *Pool) ApplyEarlyRepayments(now int, price, repayMargin, repayProb float64, draw func() float64) []*types.Loan {
	if repayProb <= 0 {
		return nil
	}

	var repaid []*types.Loan
	p.open = filterLoans(p.open, func(loan *types.Loan) bool {
		value := loan.CollateralAmount * price
		if value < loan.Debt()*(1+repayMargin) {
			return true
		}
		if draw() >= repayProb {
			return true
		}
		p.settle(loan, types.LoanStateRepaid, now, price, loan.Debt())
		p.counters.Repaid++
		repaid = append(repaid, loan)
		return false
	})
	return repaid
}

// settle closes the loan and moves proceeds back to the ledger. For a
// repayment proceeds are the full debt; for a default or expiration
// they are the seized collateral value.
func (p *Pool) settle(loan *types.Loan, state types.LoanState, now int, price, proceeds float64) {
	loan.State = state
	loan.ClosedAt = now
	loan.Settlement = proceeds
	loan.CollateralValue = loan.CollateralAmount * price

	p.available += proceeds
	p.total += proceeds - loan.Notional
}

// CheckConservation verifies that the ledger balances: every unit of
// the pool total is either available or lent out.
func (p *Pool) CheckConservation() error {
	var lent float64
	for _, loan := range p.open {
		lent += loan.Notional
	}
	drift := math.Abs(p.available + lent - p.total)
	if drift > conservationEpsilon {
		return errors.Errorf("pool: conservation violated: available=%.9f + lent=%.9f != total=%.9f (drift %.3e)",
			p.available, lent, p.total, drift)
	}
	return nil
}

func filterLoans(loans []*types.Loan, keep func(*types.Loan) bool) []*types.Loan {
	out := loans[:0]
	for _, loan := range loans {
		if keep(loan) {
			out = append(out, loan)
		}
	}
	// drop trailing pointers so settled loans can be collected
	for i := len(out); i < len(loans); i++ {
		loans[i] = nil
	}
	return out
}
