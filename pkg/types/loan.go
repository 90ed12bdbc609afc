package types

import "fmt"

type LoanState int

const (
	LoanStatePending LoanState = iota
	LoanStateOpen
	LoanStateRepaid
	LoanStateExpired
	LoanStateDefaulted
)

func (s LoanState) String() string {
	switch s {
	case LoanStatePending:
		return "PENDING"
	case LoanStateOpen:
		return "OPEN"
	case LoanStateRepaid:
		return "REPAID"
	case LoanStateExpired:
		return "EXPIRED"
	case LoanStateDefaulted:
		return "DEFAULTED"
	}
	return fmt.Sprintf("LoanState(%d)", int(s))
}

// Terminal reports whether no further transition can leave this state.
func (s LoanState) Terminal() bool {
	switch s {
	case LoanStateRepaid, LoanStateExpired, LoanStateDefaulted:
		return true
	}
	return false
}

// Loan is a single loan originated by a lending pool. Amounts are
// denominated in the pool's quote asset; the collateral amount is in
// units of the collateral asset.
type Loan struct {
	ID uint64 `json:"id"`

	// OpenedAt is the simulated step at which the loan was admitted.
	OpenedAt int `json:"openedAt"`

	Notional         float64 `json:"notional"`
	CollateralAmount float64 `json:"collateralAmount"`

	// CollateralValue is the quote value of the collateral at origination.
	CollateralValue float64 `json:"collateralValue"`

	InitialLTV float64 `json:"initialLtv"`

	// Duration is the number of steps until expiration.
	Duration int `json:"duration"`

	// Premium is the absolute fee charged for the loan (rate x notional),
	// collected on repayment.
	Premium float64 `json:"premium"`

	State LoanState `json:"state"`

	// ClosedAt and Settlement are set once the loan reaches a terminal
	// state. Settlement is the quote value that came back to the pool.
	ClosedAt   int     `json:"closedAt"`
	Settlement float64 `json:"settlement"`
}

// Debt is what the borrower owes to close the loan.
func (l *Loan) Debt() float64 {
	return l.Notional + l.Premium
}

func (l *Loan) ExpiresAt() int {
	return l.OpenedAt + l.Duration
}

// CurrentLTV is the loan-to-value ratio at the given collateral price.
func (l *Loan) CurrentLTV(price float64) float64 {
	value := l.CollateralAmount * price
	if value == 0.0 {
		return 0.0
	}
	return l.Notional / value
}

// LoanRequest is a borrower arrival drawn by the path generator, not
// yet admitted by any pool.
type LoanRequest struct {
	ArriveAt int     `json:"arriveAt"`
	Notional float64 `json:"notional"`
	LTV      float64 `json:"ltv"`
	Duration int     `json:"duration"`
}
