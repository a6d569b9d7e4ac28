package lending

import (
	"math/big"
)

// LoanStatus enumerates the lifecycle stages of a loan.
type LoanStatus uint8

const (
	LoanStatusActive LoanStatus = iota + 1
	LoanStatusCalled
	LoanStatusClosed
)

func (s LoanStatus) String() string {
	switch s {
	case LoanStatusActive:
		return "active"
	case LoanStatusCalled:
		return "called"
	case LoanStatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Loan is the persisted record of a single credit line. Current debt is never
// stored; only the snapshot taken when the loan is called is frozen.
type Loan struct {
	ID       uint64
	Market   string
	Borrower [20]byte
	Status   LoanStatus
	// CollateralAmount is held in the lending module account until close.
	CollateralAmount *big.Int
	// BorrowAmount is the outstanding issuance, reduced by partial repayments.
	BorrowAmount *big.Int
	// BorrowMultiplier is the credit multiplier observed at borrow time.
	BorrowMultiplier *big.Int
	OpenTime         uint64
	LastPartialRepay uint64
	Caller           [20]byte
	CallTime         uint64
	CallDebt         *big.Int
	CloseTime        uint64
}

// Clone returns a deep copy of the loan.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	clone.CollateralAmount = cloneBig(l.CollateralAmount)
	clone.BorrowAmount = cloneBig(l.BorrowAmount)
	clone.BorrowMultiplier = cloneBig(l.BorrowMultiplier)
	clone.CallDebt = cloneBig(l.CallDebt)
	return &clone
}

// PartialRepayDeadline is the last second at which a partial repayment keeps
// the loan out of the callable state. Zero means no deadline.
func (l *Loan) PartialRepayDeadline(params *MarketParams) uint64 {
	if l == nil || params == nil || params.MaxDelayBetweenPartialRepay == 0 {
		return 0
	}
	return l.LastPartialRepay + params.MaxDelayBetweenPartialRepay
}

// Market couples a market's parameters with its live issuance.
type Market struct {
	Params MarketParams
	// Issuance is the sum of BorrowAmount over the market's open loans.
	Issuance *big.Int
	// OpenLoans counts loans that are not yet closed.
	OpenLoans uint64
}

// Clone returns a deep copy of the market.
func (m *Market) Clone() *Market {
	if m == nil {
		return nil
	}
	return &Market{Params: m.Params.Clone(), Issuance: cloneBig(m.Issuance), OpenLoans: m.OpenLoans}
}

// RepayResult summarises a full or partial repayment.
type RepayResult struct {
	Loan      *Loan
	Paid      *big.Int
	Principal *big.Int
	Interest  *big.Int
}

// Resolution is reported by the auction engine once a called loan is settled.
// A forgiven auction carries a zero CreditFromBidder and no collateral for the
// bidder.
type Resolution struct {
	LoanID               uint64
	Bidder               [20]byte
	CollateralToBidder   *big.Int
	CollateralToBorrower *big.Int
	CreditFromBidder     *big.Int
	Forgiven             bool
}

// Settlement is the outcome of a resolved auction.
type Settlement struct {
	Loan *Loan
	// PnL is CreditFromBidder minus the principal, negative on a shortfall.
	PnL *big.Int
	// CreditBurned is the amount of credit destroyed by the lending module.
	CreditBurned *big.Int
	// Interest is the credit forwarded to the loss accountant as profit.
	Interest *big.Int
}
