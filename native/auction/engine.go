package auction

import (
	"fmt"
	"math/big"
	"strconv"

	"creditguild/core/events"
	"creditguild/native/common"
	"creditguild/native/lending"
)

var (
	errNilState            = common.NewError(common.ErrInvalidState, "auction engine: state not configured")
	errNilSettler          = common.NewError(common.ErrInvalidState, "auction engine: loan ledger not configured")
	ErrAuctionAlreadyOpen  = common.NewError(common.ErrInvalidState, "auction engine: auction already open")
	ErrAuctionNotFound     = common.NewError(common.ErrInvalidState, "auction engine: no open auction")
	ErrBidAfterDecay       = common.NewError(common.ErrScheduleViolation, "auction engine: credit asked is zero, use forgive")
	ErrForgiveBeforeDecay  = common.NewError(common.ErrScheduleViolation, "auction engine: auction still asks for credit")
	ErrInvalidParams       = common.NewError(common.ErrConfigInvalid, "auction engine: require 0 < midpoint < duration <= max")
	ErrInvalidAuctionInput = common.NewError(common.ErrInvalidState, "auction engine: call debt and collateral must be positive")
)

const moduleName = "auction"

const (
	paramsKey     = "auction/params"
	inProgressKey = "auction/in-progress"
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// LoanSettler is the loan ledger callback invoked when an auction resolves.
type LoanSettler interface {
	OnAuctionResolved(caller common.Caller, res lending.Resolution, now uint64) (*lending.Settlement, error)
}

// BidResult describes a winning bid.
type BidResult struct {
	CollateralOut *big.Int
	CreditIn      *big.Int
	Settlement    *lending.Settlement
}

// Engine runs at most one Dutch auction per called loan.
type Engine struct {
	state         engineState
	policy        common.Policy
	emitter       events.Emitter
	pauses        common.PauseView
	settler       LoanSettler
	moduleAddress [20]byte
}

// NewEngine constructs the auction house.
func NewEngine(moduleAddr [20]byte, policy common.Policy) *Engine {
	if policy == nil {
		policy = common.DefaultPolicy()
	}
	return &Engine{policy: policy, emitter: events.NoopEmitter{}, moduleAddress: moduleAddr}
}

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

func (e *Engine) SetSettler(settler LoanSettler) {
	if e == nil {
		return
	}
	e.settler = settler
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

func auctionKey(loanID uint64) []byte {
	return []byte("auction/open/" + strconv.FormatUint(loanID, 10))
}

// InitParams stores the genesis schedule.
func (e *Engine) InitParams(p Params) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := p.Validate(); err != nil {
		return err
	}
	return e.state.KVPut([]byte(paramsKey), p)
}

// Params returns the schedule applied to new auctions.
func (e *Engine) Params() (Params, error) {
	if e == nil || e.state == nil {
		return Params{}, errNilState
	}
	var p Params
	ok, err := e.state.KVGet([]byte(paramsKey), &p)
	if err != nil {
		return Params{}, err
	}
	if !ok {
		return Params{}, fmt.Errorf("%w: schedule not configured", ErrInvalidParams)
	}
	return p, nil
}

// SetAuctionParams replaces the schedule for auctions started afterwards.
func (e *Engine) SetAuctionParams(caller common.Caller, p Params) error {
	if err := e.policy.Authorize(common.OpSetAuctionParams, caller); err != nil {
		return err
	}
	if err := e.InitParams(p); err != nil {
		return err
	}
	e.emitter.Emit(events.AuctionParamsUpdated{MidPoint: p.MidPoint, Duration: p.Duration})
	return nil
}

func (e *Engine) inProgress() (uint64, error) {
	var count uint64
	if _, err := e.state.KVGet([]byte(inProgressKey), &count); err != nil {
		return 0, err
	}
	return count, nil
}

// AuctionsInProgress counts open auctions.
func (e *Engine) AuctionsInProgress() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.inProgress()
}

// Auction returns the open auction of a loan.
func (e *Engine) Auction(loanID uint64) (*Auction, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var a Auction
	ok, err := e.state.KVGet(auctionKey(loanID), &a)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: loan %d", ErrAuctionNotFound, loanID)
	}
	return a.Clone(), nil
}

// GetBidDetail quotes the auction at time now without mutating anything.
func (e *Engine) GetBidDetail(loanID uint64, now uint64) (collateralOut, creditIn *big.Int, err error) {
	a, err := e.Auction(loanID)
	if err != nil {
		return nil, nil, err
	}
	collateralOut, creditIn = a.Quote(now)
	return collateralOut, creditIn, nil
}

// StartAuction opens the auction of a freshly called loan.
func (e *Engine) StartAuction(caller common.Caller, loanID uint64, market string, callDebt, collateral *big.Int, now uint64) error {
	if err := e.policy.Authorize(common.OpStartAuction, caller); err != nil {
		return err
	}
	if e == nil || e.state == nil {
		return errNilState
	}
	if callDebt == nil || callDebt.Sign() <= 0 || collateral == nil || collateral.Sign() <= 0 {
		return ErrInvalidAuctionInput
	}
	exists, err := e.state.KVGet(auctionKey(loanID), nil)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: loan %d", ErrAuctionAlreadyOpen, loanID)
	}
	params, err := e.Params()
	if err != nil {
		return err
	}
	a := &Auction{
		LoanID:           loanID,
		Market:           market,
		StartTime:        now,
		CallDebt:         new(big.Int).Set(callDebt),
		CollateralAmount: new(big.Int).Set(collateral),
		MidPoint:         params.MidPoint,
		Duration:         params.Duration,
	}
	if err := e.state.KVPut(auctionKey(loanID), a); err != nil {
		return err
	}
	count, err := e.inProgress()
	if err != nil {
		return err
	}
	if err := e.state.KVPut([]byte(inProgressKey), count+1); err != nil {
		return err
	}
	e.emitter.Emit(events.AuctionStarted{
		LoanID:     loanID,
		Market:     market,
		CallDebt:   cloneBig(callDebt),
		Collateral: cloneBig(collateral),
		Timestamp:  now,
	})
	return nil
}

func (e *Engine) close(loanID uint64) error {
	if err := e.state.KVDelete(auctionKey(loanID)); err != nil {
		return err
	}
	count, err := e.inProgress()
	if err != nil {
		return err
	}
	if count > 0 {
		count--
	}
	return e.state.KVPut([]byte(inProgressKey), count)
}

func (e *Engine) moduleCaller() common.Caller {
	return common.ModuleCaller(e.moduleAddress, common.RoleAuctionModule)
}

func (e *Engine) openForResolution(op common.Operation, caller common.Caller, loanID uint64) (*Auction, error) {
	if err := e.policy.Authorize(op, caller); err != nil {
		return nil, err
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.settler == nil {
		return nil, errNilSettler
	}
	return e.Auction(loanID)
}

// Bid settles the auction at the current price. The caller pays the credit
// asked and receives the collateral offered; any collateral left goes back to
// the borrower. A bid is refused once the credit asked has decayed to zero.
func (e *Engine) Bid(caller common.Caller, loanID uint64, now uint64) (*BidResult, error) {
	a, err := e.openForResolution(common.OpBid, caller, loanID)
	if err != nil {
		return nil, err
	}
	collateralOut, creditIn := a.Quote(now)
	if creditIn.Sign() == 0 {
		return nil, fmt.Errorf("%w: loan %d", ErrBidAfterDecay, loanID)
	}
	settlement, err := e.settler.OnAuctionResolved(e.moduleCaller(), lending.Resolution{
		LoanID:               loanID,
		Bidder:               caller.Address,
		CollateralToBidder:   collateralOut,
		CollateralToBorrower: new(big.Int).Sub(a.CollateralAmount, collateralOut),
		CreditFromBidder:     creditIn,
	}, now)
	if err != nil {
		return nil, err
	}
	if err := e.close(loanID); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.AuctionBid{
		LoanID:        loanID,
		Bidder:        caller.Address,
		CollateralOut: cloneBig(collateralOut),
		CreditIn:      cloneBig(creditIn),
		Timestamp:     now,
	})
	return &BidResult{CollateralOut: collateralOut, CreditIn: creditIn, Settlement: settlement}, nil
}

// Forgive writes the loan off once nobody bid before the credit asked reached
// zero. The collateral is released to the borrower and the whole call debt is
// reported as a loss.
func (e *Engine) Forgive(caller common.Caller, loanID uint64, now uint64) (*lending.Settlement, error) {
	a, err := e.openForResolution(common.OpForgive, caller, loanID)
	if err != nil {
		return nil, err
	}
	if _, creditIn := a.Quote(now); creditIn.Sign() != 0 {
		return nil, fmt.Errorf("%w: loan %d asks %s", ErrForgiveBeforeDecay, loanID, creditIn)
	}
	settlement, err := e.settler.OnAuctionResolved(e.moduleCaller(), lending.Resolution{
		LoanID:               loanID,
		CollateralToBidder:   big.NewInt(0),
		CollateralToBorrower: cloneBig(a.CollateralAmount),
		CreditFromBidder:     big.NewInt(0),
		Forgiven:             true,
	}, now)
	if err != nil {
		return nil, err
	}
	if err := e.close(loanID); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.AuctionForgiven{LoanID: loanID, Timestamp: now})
	return settlement, nil
}
