package lending

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"creditguild/core/events"
	"creditguild/native/common"
	"creditguild/native/profit"
)

var (
	errNilState         = common.NewError(common.ErrInvalidState, "lending engine: state not configured")
	errNilCollaborators = common.NewError(common.ErrInvalidState, "lending engine: collaborators not configured")

	ErrInvalidParams        = common.NewError(common.ErrConfigInvalid, "lending engine: invalid market parameters")
	ErrMarketNotFound       = common.NewError(common.ErrInvalidState, "lending engine: market not found")
	ErrMarketExists         = common.NewError(common.ErrInvalidState, "lending engine: market already exists")
	ErrMarketInactive       = common.NewError(common.ErrAdmissionDenied, "lending engine: market inactive")
	ErrLoanNotFound         = common.NewError(common.ErrInvalidState, "lending engine: loan not found")
	ErrLoanNotActive        = common.NewError(common.ErrInvalidState, "lending engine: loan not active")
	ErrLoanNotCalled        = common.NewError(common.ErrInvalidState, "lending engine: loan not called")
	ErrInvalidAmount        = common.NewError(common.ErrAdmissionDenied, "lending engine: amount must be positive")
	ErrBorrowTooSmall       = common.NewError(common.ErrAdmissionDenied, "lending engine: borrow below minimum")
	ErrUndercollateralized  = common.NewError(common.ErrAdmissionDenied, "lending engine: not enough collateral")
	ErrDebtCeilingReached   = common.NewError(common.ErrAdmissionDenied, "lending engine: debt ceiling reached")
	ErrHardCapReached       = common.NewError(common.ErrAdmissionDenied, "lending engine: hard cap reached")
	ErrDelayExceeded        = common.NewError(common.ErrScheduleViolation, "lending engine: partial repay delay exceeded")
	ErrPartialRepayTooSmall = common.NewError(common.ErrAdmissionDenied, "lending engine: partial repayment too small")
	ErrPartialRepayFullDebt = common.NewError(common.ErrAdmissionDenied, "lending engine: amount covers the full debt, use repay")
	ErrNotCallable          = common.NewError(common.ErrScheduleViolation, "lending engine: loan not callable")
	ErrMultiplierZero       = common.NewError(common.ErrInvalidState, "lending engine: credit multiplier is zero")
	ErrInvalidResolution    = common.NewError(common.ErrInvalidState, "lending engine: resolution does not match loan")
)

const moduleName = "lending"

const (
	marketIndexKey   = "lending/markets"
	loanSequenceKey  = "lending/loan-seq"
	totalIssuanceKey = "lending/total-issuance"
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// Bank moves credit and collateral between accounts.
type Bank interface {
	Mint(denom string, to [20]byte, amount *big.Int) error
	Burn(denom string, from [20]byte, amount *big.Int) error
	Transfer(denom string, from, to [20]byte, amount *big.Int) error
}

// Limiter is the issuance rate limiter charged on borrow and refilled on
// repayment.
type Limiter interface {
	Deplete(caller common.Caller, authority string, amount *big.Int, now uint64) error
	Replenish(caller common.Caller, authority string, amount *big.Int, now uint64) error
}

// Accountant exposes the credit multiplier and receives realized PnL.
type Accountant interface {
	Multiplier() (*big.Int, error)
	NotifyPnL(caller common.Caller, market string, amount *big.Int) (*profit.PnLOutcome, error)
	Custody() [20]byte
}

// AuctionStarter opens the liquidation of a called loan.
type AuctionStarter interface {
	StartAuction(caller common.Caller, loanID uint64, market string, callDebt, collateral *big.Int, now uint64) error
}

// Engine is the loan ledger. It owns loan records and drives every loan
// through Active, Called and Closed.
type Engine struct {
	state         engineState
	policy        common.Policy
	emitter       events.Emitter
	pauses        common.PauseView
	bank          Bank
	limiter       Limiter
	accountant    Accountant
	auctions      AuctionStarter
	gauges        GaugeView
	moduleAddress [20]byte
	creditDenom   string
}

// NewEngine constructs a loan ledger whose collateral custody is moduleAddr.
func NewEngine(moduleAddr [20]byte, creditDenom string, policy common.Policy) *Engine {
	if policy == nil {
		policy = common.DefaultPolicy()
	}
	return &Engine{
		policy:        policy,
		emitter:       events.NoopEmitter{},
		moduleAddress: moduleAddr,
		creditDenom:   strings.ToLower(strings.TrimSpace(creditDenom)),
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) {
	if e == nil {
		return
	}
	e.state = state
}

func (e *Engine) SetPauses(p common.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetBank(bank Bank) {
	if e == nil {
		return
	}
	e.bank = bank
}

func (e *Engine) SetLimiter(limiter Limiter) {
	if e == nil {
		return
	}
	e.limiter = limiter
}

func (e *Engine) SetAccountant(accountant Accountant) {
	if e == nil {
		return
	}
	e.accountant = accountant
}

func (e *Engine) SetAuctions(auctions AuctionStarter) {
	if e == nil {
		return
	}
	e.auctions = auctions
}

func (e *Engine) SetGauges(gauges GaugeView) {
	if e == nil {
		return
	}
	e.gauges = gauges
}

// ModuleAddress returns the collateral custody account.
func (e *Engine) ModuleAddress() [20]byte { return e.moduleAddress }

func (e *Engine) moduleCaller() common.Caller {
	return common.ModuleCaller(e.moduleAddress, common.RoleLendingModule)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.bank == nil || e.limiter == nil || e.accountant == nil || e.auctions == nil || e.gauges == nil {
		return errNilCollaborators
	}
	return nil
}

func marketKey(name string) []byte {
	return []byte("lending/market/" + name)
}

func loanKey(id uint64) []byte {
	return []byte("lending/loan/" + strconv.FormatUint(id, 10))
}

func borrowerIndexKey(addr [20]byte) []byte {
	return []byte("lending/borrower/" + hex.EncodeToString(addr[:]))
}

func normalizeMarket(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (e *Engine) loadAmount(key string) (*big.Int, error) {
	value := new(big.Int)
	ok, err := e.state.KVGet([]byte(key), value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (e *Engine) loadMarket(name string) (*Market, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var market Market
	ok, err := e.state.KVGet(marketKey(name), &market)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, name)
	}
	market.Params = market.Params.Clone()
	market.Issuance = cloneBig(market.Issuance)
	return &market, nil
}

func (e *Engine) storeMarket(market *Market) error {
	return e.state.KVPut(marketKey(market.Params.Name), market)
}

func (e *Engine) loadLoan(id uint64) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var loan Loan
	ok, err := e.state.KVGet(loanKey(id), &loan)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrLoanNotFound, id)
	}
	return loan.Clone(), nil
}

func (e *Engine) storeLoan(loan *Loan) error {
	return e.state.KVPut(loanKey(loan.ID), loan)
}

func (e *Engine) nextLoanID() (uint64, error) {
	var seq uint64
	if _, err := e.state.KVGet([]byte(loanSequenceKey), &seq); err != nil {
		return 0, err
	}
	seq++
	if err := e.state.KVPut([]byte(loanSequenceKey), seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (e *Engine) adjustIssuance(market *Market, delta *big.Int) error {
	total, err := e.loadAmount(totalIssuanceKey)
	if err != nil {
		return err
	}
	total.Add(total, delta)
	market.Issuance.Add(market.Issuance, delta)
	if total.Sign() < 0 || market.Issuance.Sign() < 0 {
		return fmt.Errorf("lending engine: issuance underflow in %s", market.Params.Name)
	}
	if err := e.state.KVPut([]byte(totalIssuanceKey), total); err != nil {
		return err
	}
	return e.storeMarket(market)
}

func (e *Engine) multiplier() (*big.Int, error) {
	mult, err := e.accountant.Multiplier()
	if err != nil {
		return nil, err
	}
	if mult.Sign() == 0 {
		return nil, ErrMultiplierZero
	}
	return mult, nil
}

// CreateMarket registers a market. It is called at genesis; later parameter
// changes go through the governor setters.
func (e *Engine) CreateMarket(params MarketParams) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	params.Normalize()
	if err := params.Validate(); err != nil {
		return err
	}
	exists, err := e.state.KVGet(marketKey(params.Name), nil)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrMarketExists, params.Name)
	}
	if err := e.storeMarket(&Market{Params: params.Clone(), Issuance: big.NewInt(0)}); err != nil {
		return err
	}
	return e.state.KVAppend([]byte(marketIndexKey), []byte(params.Name))
}

// Market returns a copy of the named market.
func (e *Engine) Market(name string) (*Market, error) {
	return e.loadMarket(normalizeMarket(name))
}

// Markets lists every registered market in creation order.
func (e *Engine) Markets() ([]*Market, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var names [][]byte
	if err := e.state.KVGetList([]byte(marketIndexKey), &names); err != nil {
		return nil, err
	}
	out := make([]*Market, 0, len(names))
	for _, name := range names {
		market, err := e.loadMarket(string(name))
		if err != nil {
			return nil, err
		}
		out = append(out, market)
	}
	return out, nil
}

// Loan returns a copy of the loan record.
func (e *Engine) Loan(id uint64) (*Loan, error) {
	return e.loadLoan(id)
}

// LoansOf returns the ids of every loan opened by borrower.
func (e *Engine) LoansOf(borrower [20]byte) ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var raw [][]byte
	if err := e.state.KVGetList(borrowerIndexKey(borrower), &raw); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 8 {
			continue
		}
		ids = append(ids, binary.BigEndian.Uint64(entry))
	}
	return ids, nil
}

// TotalIssuance is the outstanding borrowed amount across all markets.
func (e *Engine) TotalIssuance() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadAmount(totalIssuanceKey)
}

// LoanDebt returns the live debt of a loan in credit units.
func (e *Engine) LoanDebt(id uint64, now uint64) (*big.Int, error) {
	loan, err := e.loadLoan(id)
	if err != nil {
		return nil, err
	}
	if loan.Status != LoanStatusActive {
		return loanDebt(loan, nil, nil, now), nil
	}
	market, err := e.loadMarket(loan.Market)
	if err != nil {
		return nil, err
	}
	if e.accountant == nil {
		return nil, errNilCollaborators
	}
	mult, err := e.multiplier()
	if err != nil {
		return nil, err
	}
	return loanDebt(loan, &market.Params, mult, now), nil
}

func partialRepayDelayPassed(loan *Loan, params *MarketParams, now uint64) bool {
	if loan.Status != LoanStatusActive {
		return false
	}
	deadline := loan.PartialRepayDeadline(params)
	if deadline == 0 {
		return false
	}
	return now > deadline
}

// PartialRepayDelayPassed reports whether the loan missed its partial repayment
// deadline and may be called.
func (e *Engine) PartialRepayDelayPassed(id uint64, now uint64) (bool, error) {
	loan, err := e.loadLoan(id)
	if err != nil {
		return false, err
	}
	market, err := e.loadMarket(loan.Market)
	if err != nil {
		return false, err
	}
	return partialRepayDelayPassed(loan, &market.Params, now), nil
}

// DebtCeiling returns the maximum issuance the market may reach after adding
// extra, given current gauge weights.
func (e *Engine) DebtCeiling(name string, extra *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.gauges == nil {
		return nil, errNilCollaborators
	}
	market, err := e.loadMarket(normalizeMarket(name))
	if err != nil {
		return nil, err
	}
	return e.debtCeiling(market, extra)
}

func (e *Engine) debtCeiling(market *Market, extra *big.Int) (*big.Int, error) {
	weight, err := e.gauges.Weight(market.Params.Name)
	if err != nil {
		return nil, err
	}
	totalWeight, err := e.gauges.TotalWeight()
	if err != nil {
		return nil, err
	}
	total, err := e.loadAmount(totalIssuanceKey)
	if err != nil {
		return nil, err
	}
	return debtCeiling(total, extra, weight, totalWeight, market.Params.GaugeWeightTolerance), nil
}

// checkDebtCeiling enforces the gauge derived ceiling. While nothing has been
// issued yet any market with weight may open the first loan.
func (e *Engine) checkDebtCeiling(market *Market, principal *big.Int) error {
	total, err := e.loadAmount(totalIssuanceKey)
	if err != nil {
		return err
	}
	if total.Sign() == 0 {
		weight, err := e.gauges.Weight(market.Params.Name)
		if err != nil {
			return err
		}
		if weight.Sign() == 0 {
			return ErrDebtCeilingReached
		}
		return nil
	}
	ceiling, err := e.debtCeiling(market, principal)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(market.Issuance, principal)
	if next.Cmp(ceiling) > 0 {
		return fmt.Errorf("%w: issuance %s exceeds ceiling %s", ErrDebtCeilingReached, next, ceiling)
	}
	return nil
}

// Borrow opens a loan: collateral moves into module custody and principal is
// minted to the caller.
func (e *Engine) Borrow(caller common.Caller, marketName string, principal, collateral *big.Int, now uint64) (*Loan, error) {
	if err := e.policy.Authorize(common.OpBorrow, caller); err != nil {
		return nil, err
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.ready(); err != nil {
		return nil, err
	}
	if principal == nil || principal.Sign() <= 0 || collateral == nil || collateral.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	market, err := e.loadMarket(normalizeMarket(marketName))
	if err != nil {
		return nil, err
	}
	params := &market.Params
	active, err := e.gauges.IsActive(params.Name)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, fmt.Errorf("%w: %s", ErrMarketInactive, params.Name)
	}
	if principal.Cmp(params.MinBorrow) < 0 {
		return nil, fmt.Errorf("%w: %s < %s", ErrBorrowTooSmall, principal, params.MinBorrow)
	}
	mult, err := e.multiplier()
	if err != nil {
		return nil, err
	}
	maxBorrow := mulDiv(collateral, params.MaxDebtPerCollateral, mult)
	if principal.Cmp(maxBorrow) > 0 {
		return nil, fmt.Errorf("%w: %s > %s", ErrUndercollateralized, principal, maxBorrow)
	}
	if err := e.checkDebtCeiling(market, principal); err != nil {
		return nil, err
	}
	if new(big.Int).Add(market.Issuance, principal).Cmp(params.HardCap) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrHardCapReached, params.HardCap)
	}
	if err := e.limiter.Deplete(e.moduleCaller(), params.Authority, principal, now); err != nil {
		return nil, err
	}

	id, err := e.nextLoanID()
	if err != nil {
		return nil, err
	}
	loan := &Loan{
		ID:               id,
		Market:           params.Name,
		Borrower:         caller.Address,
		Status:           LoanStatusActive,
		CollateralAmount: new(big.Int).Set(collateral),
		BorrowAmount:     new(big.Int).Set(principal),
		BorrowMultiplier: new(big.Int).Set(mult),
		OpenTime:         now,
		LastPartialRepay: now,
		CallDebt:         big.NewInt(0),
	}
	if err := e.bank.Transfer(params.CollateralDenom, caller.Address, e.moduleAddress, collateral); err != nil {
		return nil, err
	}
	if err := e.bank.Mint(e.creditDenom, caller.Address, principal); err != nil {
		return nil, err
	}
	market.OpenLoans++
	if err := e.adjustIssuance(market, principal); err != nil {
		return nil, err
	}
	if err := e.storeLoan(loan); err != nil {
		return nil, err
	}
	var idBytes [8]byte
	binary.BigEndian.PutUint64(idBytes[:], id)
	if err := e.state.KVAppend(borrowerIndexKey(caller.Address), idBytes[:]); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.LoanOpened{
		LoanID:     id,
		Market:     params.Name,
		Borrower:   caller.Address,
		Principal:  cloneBig(principal),
		Collateral: cloneBig(collateral),
		Timestamp:  now,
	})
	return loan.Clone(), nil
}

// settleRepayment pulls amount from payer, burns the principal part and
// forwards the interest part to the accountant as profit.
func (e *Engine) settleRepayment(payer [20]byte, market *Market, amount, principal, interest *big.Int, now uint64) error {
	if amount.Sign() > 0 {
		if err := e.bank.Transfer(e.creditDenom, payer, e.moduleAddress, amount); err != nil {
			return err
		}
	}
	if principal.Sign() > 0 {
		if err := e.bank.Burn(e.creditDenom, e.moduleAddress, principal); err != nil {
			return err
		}
		if err := e.limiter.Replenish(e.moduleCaller(), market.Params.Authority, principal, now); err != nil {
			return err
		}
	}
	if interest.Sign() > 0 {
		if err := e.bank.Transfer(e.creditDenom, e.moduleAddress, e.accountant.Custody(), interest); err != nil {
			return err
		}
		if _, err := e.accountant.NotifyPnL(e.moduleCaller(), market.Params.Name, interest); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) activeLoan(id uint64) (*Loan, *Market, error) {
	loan, err := e.loadLoan(id)
	if err != nil {
		return nil, nil, err
	}
	if loan.Status != LoanStatusActive {
		return nil, nil, fmt.Errorf("%w: loan %d is %s", ErrLoanNotActive, id, loan.Status)
	}
	market, err := e.loadMarket(loan.Market)
	if err != nil {
		return nil, nil, err
	}
	return loan, market, nil
}

// Repay closes an active loan. Anyone may repay; collateral always returns to
// the borrower.
func (e *Engine) Repay(caller common.Caller, id uint64, now uint64) (*RepayResult, error) {
	if err := e.policy.Authorize(common.OpRepay, caller); err != nil {
		return nil, err
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.ready(); err != nil {
		return nil, err
	}
	loan, market, err := e.activeLoan(id)
	if err != nil {
		return nil, err
	}
	mult, err := e.multiplier()
	if err != nil {
		return nil, err
	}
	debt := loanDebt(loan, &market.Params, mult, now)
	principal := loanPrincipal(loan, mult)
	interest := new(big.Int).Sub(debt, principal)

	if err := e.settleRepayment(caller.Address, market, debt, principal, interest, now); err != nil {
		return nil, err
	}
	market.OpenLoans--
	if err := e.adjustIssuance(market, new(big.Int).Neg(loan.BorrowAmount)); err != nil {
		return nil, err
	}
	loan.Status = LoanStatusClosed
	loan.CloseTime = now
	if err := e.bank.Transfer(market.Params.CollateralDenom, e.moduleAddress, loan.Borrower, loan.CollateralAmount); err != nil {
		return nil, err
	}
	if err := e.storeLoan(loan); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.LoanClosed{
		LoanID:    id,
		Market:    loan.Market,
		Reason:    events.CloseReasonRepay,
		DebtPaid:  cloneBig(debt),
		PnL:       cloneBig(interest),
		Timestamp: now,
	})
	return &RepayResult{Loan: loan.Clone(), Paid: debt, Principal: principal, Interest: interest}, nil
}

// PartialRepay reduces an active loan's debt. The repayment must happen before
// the partial repay deadline and cover at least the market's minimum share of
// the debt.
func (e *Engine) PartialRepay(caller common.Caller, id uint64, amount *big.Int, now uint64) (*RepayResult, error) {
	if err := e.policy.Authorize(common.OpPartialRepay, caller); err != nil {
		return nil, err
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.ready(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	loan, market, err := e.activeLoan(id)
	if err != nil {
		return nil, err
	}
	params := &market.Params
	if partialRepayDelayPassed(loan, params, now) {
		return nil, fmt.Errorf("%w: deadline %d", ErrDelayExceeded, loan.PartialRepayDeadline(params))
	}
	mult, err := e.multiplier()
	if err != nil {
		return nil, err
	}
	debt := loanDebt(loan, params, mult, now)
	if amount.Cmp(debt) >= 0 {
		return nil, ErrPartialRepayFullDebt
	}
	// amount / debt >= minPartialRepayPercent
	lhs := new(big.Int).Mul(amount, wad)
	rhs := new(big.Int).Mul(debt, params.MinPartialRepayPercent)
	if lhs.Cmp(rhs) < 0 {
		return nil, fmt.Errorf("%w: below %s of %s", ErrPartialRepayTooSmall, params.MinPartialRepayPercent, debt)
	}
	percentRepaid := wadDiv(amount, debt)
	principal := loanPrincipal(loan, mult)
	principalRepaid := wadMul(principal, percentRepaid)
	interestRepaid := new(big.Int).Sub(amount, principalRepaid)
	issuanceDecrease := wadMul(loan.BorrowAmount, percentRepaid)
	if principalRepaid.Sign() == 0 || issuanceDecrease.Sign() == 0 {
		return nil, ErrPartialRepayTooSmall
	}

	if err := e.settleRepayment(caller.Address, market, amount, principalRepaid, interestRepaid, now); err != nil {
		return nil, err
	}
	if err := e.adjustIssuance(market, new(big.Int).Neg(issuanceDecrease)); err != nil {
		return nil, err
	}
	loan.BorrowAmount.Sub(loan.BorrowAmount, issuanceDecrease)
	loan.LastPartialRepay = now
	if err := e.storeLoan(loan); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.LoanPartialRepaid{
		LoanID:    id,
		Market:    loan.Market,
		Repayer:   caller.Address,
		Amount:    cloneBig(amount),
		Principal: cloneBig(principalRepaid),
		Interest:  cloneBig(interestRepaid),
		Timestamp: now,
	})
	return &RepayResult{Loan: loan.Clone(), Paid: cloneBig(amount), Principal: principalRepaid, Interest: interestRepaid}, nil
}

// Call freezes the loan's debt and sends it to auction. A loan is callable once
// its market is inactive or its partial repay deadline has passed.
func (e *Engine) Call(caller common.Caller, id uint64, now uint64) (*Loan, error) {
	if err := e.policy.Authorize(common.OpCall, caller); err != nil {
		return nil, err
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.ready(); err != nil {
		return nil, err
	}
	loan, market, err := e.activeLoan(id)
	if err != nil {
		return nil, err
	}
	active, err := e.gauges.IsActive(loan.Market)
	if err != nil {
		return nil, err
	}
	if active && !partialRepayDelayPassed(loan, &market.Params, now) {
		return nil, fmt.Errorf("%w: loan %d", ErrNotCallable, id)
	}
	mult, err := e.multiplier()
	if err != nil {
		return nil, err
	}
	loan.CallDebt = loanDebt(loan, &market.Params, mult, now)
	loan.Status = LoanStatusCalled
	loan.CallTime = now
	loan.Caller = caller.Address
	if err := e.storeLoan(loan); err != nil {
		return nil, err
	}
	if err := e.auctions.StartAuction(e.moduleCaller(), id, loan.Market, loan.CallDebt, loan.CollateralAmount, now); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.LoanCalled{
		LoanID:    id,
		Market:    loan.Market,
		Caller:    caller.Address,
		CallDebt:  cloneBig(loan.CallDebt),
		Timestamp: now,
	})
	return loan.Clone(), nil
}

// OnAuctionResolved closes a called loan with the auction's outcome. The
// shortfall is callDebt minus the credit recovered. A positive shortfall is
// reported to the accountant as a loss and every recovered unit is burned;
// otherwise credit above the principal is interest and goes out as profit. The
// limiter is replenished by the recovered principal portion only.
func (e *Engine) OnAuctionResolved(caller common.Caller, res Resolution, now uint64) (*Settlement, error) {
	if err := e.policy.Authorize(common.OpResolveAuction, caller); err != nil {
		return nil, err
	}
	if err := e.ready(); err != nil {
		return nil, err
	}
	loan, err := e.loadLoan(res.LoanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != LoanStatusCalled {
		return nil, fmt.Errorf("%w: loan %d is %s", ErrLoanNotCalled, loan.ID, loan.Status)
	}
	toBidder := cloneBig(res.CollateralToBidder)
	toBorrower := cloneBig(res.CollateralToBorrower)
	creditIn := cloneBig(res.CreditFromBidder)
	if toBidder.Sign() < 0 || toBorrower.Sign() < 0 || creditIn.Sign() < 0 {
		return nil, ErrInvalidResolution
	}
	if new(big.Int).Add(toBidder, toBorrower).Cmp(loan.CollateralAmount) != 0 {
		return nil, fmt.Errorf("%w: collateral split %s + %s != %s", ErrInvalidResolution, toBidder, toBorrower, loan.CollateralAmount)
	}
	market, err := e.loadMarket(loan.Market)
	if err != nil {
		return nil, err
	}
	mult, err := e.multiplier()
	if err != nil {
		return nil, err
	}

	principal := loanPrincipal(loan, mult)
	recovered := creditIn
	if recovered.Cmp(principal) > 0 {
		recovered = principal
	}
	shortfall := new(big.Int).Sub(loan.CallDebt, creditIn)
	burned := recovered
	interest := big.NewInt(0)
	var pnl *big.Int
	if shortfall.Sign() > 0 {
		if toBorrower.Sign() > 0 && !res.Forgiven {
			return nil, fmt.Errorf("%w: borrower cannot keep collateral on a shortfall", ErrInvalidResolution)
		}
		burned = creditIn
		pnl = new(big.Int).Neg(shortfall)
	} else {
		interest = new(big.Int).Sub(creditIn, recovered)
		pnl = cloneBig(interest)
	}

	if creditIn.Sign() > 0 {
		if err := e.bank.Transfer(e.creditDenom, res.Bidder, e.moduleAddress, creditIn); err != nil {
			return nil, err
		}
	}
	if burned.Sign() > 0 {
		if err := e.bank.Burn(e.creditDenom, e.moduleAddress, burned); err != nil {
			return nil, err
		}
	}
	if recovered.Sign() > 0 {
		if err := e.limiter.Replenish(e.moduleCaller(), market.Params.Authority, recovered, now); err != nil {
			return nil, err
		}
	}
	if interest.Sign() > 0 {
		if err := e.bank.Transfer(e.creditDenom, e.moduleAddress, e.accountant.Custody(), interest); err != nil {
			return nil, err
		}
	}
	market.OpenLoans--
	if err := e.adjustIssuance(market, new(big.Int).Neg(loan.BorrowAmount)); err != nil {
		return nil, err
	}
	loan.Status = LoanStatusClosed
	loan.CloseTime = now
	if err := e.storeLoan(loan); err != nil {
		return nil, err
	}
	if pnl.Sign() != 0 {
		if _, err := e.accountant.NotifyPnL(e.moduleCaller(), loan.Market, pnl); err != nil {
			return nil, err
		}
	}
	if toBidder.Sign() > 0 {
		if err := e.bank.Transfer(market.Params.CollateralDenom, e.moduleAddress, res.Bidder, toBidder); err != nil {
			return nil, err
		}
	}
	if toBorrower.Sign() > 0 {
		if err := e.bank.Transfer(market.Params.CollateralDenom, e.moduleAddress, loan.Borrower, toBorrower); err != nil {
			return nil, err
		}
	}
	reason := events.CloseReasonAuction
	if res.Forgiven {
		reason = events.CloseReasonForgive
	}
	e.emitter.Emit(events.LoanClosed{
		LoanID:    loan.ID,
		Market:    loan.Market,
		Reason:    reason,
		DebtPaid:  cloneBig(creditIn),
		PnL:       cloneBig(pnl),
		Timestamp: now,
	})
	return &Settlement{Loan: loan.Clone(), PnL: pnl, CreditBurned: cloneBig(burned), Interest: interest}, nil
}

func (e *Engine) updateMarket(caller common.Caller, name, param string, apply func(*MarketParams) error) error {
	if err := e.policy.Authorize(common.OpSetMarketParam, caller); err != nil {
		return err
	}
	market, err := e.loadMarket(normalizeMarket(name))
	if err != nil {
		return err
	}
	if err := apply(&market.Params); err != nil {
		return err
	}
	if err := e.storeMarket(market); err != nil {
		return err
	}
	var value string
	switch param {
	case "hardCap":
		value = market.Params.HardCap.String()
	case "minBorrow":
		value = market.Params.MinBorrow.String()
	case "gaugeWeightTolerance":
		value = market.Params.GaugeWeightTolerance.String()
	}
	e.emitter.Emit(events.MarketParamUpdated{Market: market.Params.Name, Param: param, Value: value})
	return nil
}

// SetHardCap changes the market's absolute issuance cap.
func (e *Engine) SetHardCap(caller common.Caller, market string, hardCap *big.Int) error {
	return e.updateMarket(caller, market, "hardCap", func(p *MarketParams) error {
		if err := validateHardCap(hardCap); err != nil {
			return err
		}
		p.HardCap = new(big.Int).Set(hardCap)
		return nil
	})
}

// SetMinBorrow changes the smallest principal a borrow may request.
func (e *Engine) SetMinBorrow(caller common.Caller, market string, minBorrow *big.Int) error {
	return e.updateMarket(caller, market, "minBorrow", func(p *MarketParams) error {
		if err := validateMinBorrow(minBorrow); err != nil {
			return err
		}
		p.MinBorrow = new(big.Int).Set(minBorrow)
		return nil
	})
}

// SetGaugeWeightTolerance changes how far issuance may run ahead of the
// market's gauge share.
func (e *Engine) SetGaugeWeightTolerance(caller common.Caller, market string, tolerance *big.Int) error {
	return e.updateMarket(caller, market, "gaugeWeightTolerance", func(p *MarketParams) error {
		if err := validateTolerance(tolerance); err != nil {
			return err
		}
		p.GaugeWeightTolerance = new(big.Int).Set(tolerance)
		return nil
	})
}
