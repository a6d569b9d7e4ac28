package events

import (
	"math/big"

	"creditguild/core/types"
)

const (
	// TypeLoanOpened is emitted when a borrow succeeds.
	TypeLoanOpened = "lending.loan_opened"
	// TypeLoanPartialRepaid is emitted for every partial repayment.
	TypeLoanPartialRepaid = "lending.loan_partial_repaid"
	// TypeLoanCalled is emitted when a loan is called and sent to auction.
	TypeLoanCalled = "lending.loan_called"
	// TypeLoanClosed is emitted once a loan reaches its terminal state.
	TypeLoanClosed = "lending.loan_closed"
	// TypeMarketParamUpdated is emitted by governor setters.
	TypeMarketParamUpdated = "lending.market_param_updated"

	// CloseReasonRepay marks a loan closed by full repayment.
	CloseReasonRepay = "repay"
	// CloseReasonAuction marks a loan closed by a winning bid.
	CloseReasonAuction = "auction"
	// CloseReasonForgive marks a loan written off without a bid.
	CloseReasonForgive = "forgive"
)

type LoanOpened struct {
	LoanID     uint64
	Market     string
	Borrower   [20]byte
	Principal  *big.Int
	Collateral *big.Int
	Timestamp  uint64
}

func (LoanOpened) EventType() string { return TypeLoanOpened }

func (e LoanOpened) Event() *types.Event {
	return &types.Event{
		Type: TypeLoanOpened,
		Attributes: map[string]string{
			"loan":       loanID(e.LoanID),
			"market":     e.Market,
			"borrower":   address(e.Borrower),
			"principal":  amount(e.Principal),
			"collateral": amount(e.Collateral),
			"timestamp":  timestamp(e.Timestamp),
		},
	}
}

type LoanPartialRepaid struct {
	LoanID    uint64
	Market    string
	Repayer   [20]byte
	Amount    *big.Int
	Principal *big.Int
	Interest  *big.Int
	Timestamp uint64
}

func (LoanPartialRepaid) EventType() string { return TypeLoanPartialRepaid }

func (e LoanPartialRepaid) Event() *types.Event {
	return &types.Event{
		Type: TypeLoanPartialRepaid,
		Attributes: map[string]string{
			"loan":      loanID(e.LoanID),
			"market":    e.Market,
			"repayer":   address(e.Repayer),
			"amount":    amount(e.Amount),
			"principal": amount(e.Principal),
			"interest":  amount(e.Interest),
			"timestamp": timestamp(e.Timestamp),
		},
	}
}

type LoanCalled struct {
	LoanID    uint64
	Market    string
	Caller    [20]byte
	CallDebt  *big.Int
	Timestamp uint64
}

func (LoanCalled) EventType() string { return TypeLoanCalled }

func (e LoanCalled) Event() *types.Event {
	return &types.Event{
		Type: TypeLoanCalled,
		Attributes: map[string]string{
			"loan":      loanID(e.LoanID),
			"market":    e.Market,
			"caller":    address(e.Caller),
			"callDebt":  amount(e.CallDebt),
			"timestamp": timestamp(e.Timestamp),
		},
	}
}

type LoanClosed struct {
	LoanID    uint64
	Market    string
	Reason    string
	DebtPaid  *big.Int
	PnL       *big.Int
	Timestamp uint64
}

func (LoanClosed) EventType() string { return TypeLoanClosed }

func (e LoanClosed) Event() *types.Event {
	return &types.Event{
		Type: TypeLoanClosed,
		Attributes: map[string]string{
			"loan":      loanID(e.LoanID),
			"market":    e.Market,
			"reason":    e.Reason,
			"debtPaid":  amount(e.DebtPaid),
			"pnl":       amount(e.PnL),
			"timestamp": timestamp(e.Timestamp),
		},
	}
}

type MarketParamUpdated struct {
	Market string
	Param  string
	Value  string
}

func (MarketParamUpdated) EventType() string { return TypeMarketParamUpdated }

func (e MarketParamUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketParamUpdated,
		Attributes: map[string]string{
			"market": e.Market,
			"param":  e.Param,
			"value":  e.Value,
		},
	}
}
