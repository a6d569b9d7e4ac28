package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"creditguild/core/events"
	"creditguild/core/state"
	"creditguild/crypto"
	"creditguild/native/auction"
	"creditguild/native/common"
	"creditguild/native/lending"
	"creditguild/native/profit"
	"creditguild/native/ratelimit"
	"creditguild/observability"
	"creditguild/state/bank"
	"creditguild/storage"
)

var (
	ErrNotInitialised     = common.NewError(common.ErrInvalidState, "protocol: genesis not applied")
	ErrAlreadyInitialised = common.NewError(common.ErrInvalidState, "protocol: genesis already applied")
	ErrUnknownModule      = common.NewError(common.ErrConfigInvalid, "protocol: unknown module")
)

const (
	creditDenomKey = "protocol/credit-denom"

	ModuleLending = "lending"
	ModuleAuction = "auction"
	ModuleProfit  = "profit"
)

// Modules lists the names accepted by SetPaused.
var Modules = []string{ModuleLending, ModuleAuction, ModuleProfit}

// Protocol is the single writer in front of every engine. Each entry point
// runs inside one state transaction: it commits when the operation succeeds
// and is discarded otherwise, so a failure never leaves partial writes.
type Protocol struct {
	mu          sync.Mutex
	state       *state.Manager
	policy      common.Policy
	logger      *slog.Logger
	metrics     *observability.ProtocolMetrics
	feed        *events.Ring
	sink        events.Emitter
	creditDenom string

	lendingAddr [20]byte
	auctionAddr [20]byte
	profitAddr  [20]byte
}

// NewProtocol opens the protocol on db. Genesis must be applied before the
// first entry point on a fresh database.
func NewProtocol(db storage.Database, logger *slog.Logger) *Protocol {
	if logger == nil {
		logger = slog.Default()
	}
	return &Protocol{
		state:       state.NewManager(db),
		policy:      common.DefaultPolicy(),
		logger:      logger.With(slog.String("component", "protocol")),
		metrics:     observability.Protocol(),
		feed:        events.NewRing(0),
		sink:        events.NoopEmitter{},
		lendingAddr: crypto.ModuleAddress(ModuleLending),
		auctionAddr: crypto.ModuleAddress(ModuleAuction),
		profitAddr:  crypto.ModuleAddress(ModuleProfit),
	}
}

// SetEmitter adds a downstream sink for committed events.
func (p *Protocol) SetEmitter(emitter events.Emitter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if emitter == nil {
		p.sink = events.NoopEmitter{}
		return
	}
	p.sink = emitter
}

// LendingAddress is the account that holds collateral and in-flight credit.
func (p *Protocol) LendingAddress() [20]byte { return p.lendingAddr }

// ProfitAddress is the account that holds surplus buffers and guild rewards.
func (p *Protocol) ProfitAddress() [20]byte { return p.profitAddr }

// EventsSince returns committed events with a sequence above after.
func (p *Protocol) EventsSince(after uint64) []events.Record {
	return p.feed.Since(after)
}

type engines struct {
	txn     *state.Txn
	buf     *events.Buffer
	pauses  *common.StatePauses
	bank    *bank.Ledger
	limiter *ratelimit.Engine
	profit  *profit.Engine
	gauges  *lending.StaticGauges
	lending *lending.Engine
	auction *auction.Engine
}

func (p *Protocol) newEngines(txn *state.Txn, creditDenom string) *engines {
	buf := &events.Buffer{}
	pauses := common.NewStatePauses(txn)

	ledger := bank.New(txn)
	ledger.SetEmitter(buf)

	limiter := ratelimit.NewEngine(p.policy)
	limiter.SetState(txn)
	limiter.SetEmitter(buf)

	accountant := profit.NewEngine(p.profitAddr, creditDenom, p.policy)
	accountant.SetState(txn)
	accountant.SetBank(ledger)
	accountant.SetPauses(pauses)
	accountant.SetEmitter(buf)

	gauges := lending.NewStaticGauges(txn, p.policy)
	gauges.SetEmitter(buf)

	loans := lending.NewEngine(p.lendingAddr, creditDenom, p.policy)
	loans.SetState(txn)
	loans.SetPauses(pauses)
	loans.SetEmitter(buf)
	loans.SetBank(ledger)
	loans.SetLimiter(limiter)
	loans.SetAccountant(accountant)
	loans.SetGauges(gauges)

	auctions := auction.NewEngine(p.auctionAddr, p.policy)
	auctions.SetState(txn)
	auctions.SetPauses(pauses)
	auctions.SetEmitter(buf)
	auctions.SetSettler(loans)
	loans.SetAuctions(auctions)

	return &engines{
		txn:     txn,
		buf:     buf,
		pauses:  pauses,
		bank:    ledger,
		limiter: limiter,
		profit:  accountant,
		gauges:  gauges,
		lending: loans,
		auction: auctions,
	}
}

// loadCreditDenom must be called with p.mu held.
func (p *Protocol) loadCreditDenom(txn *state.Txn) (string, error) {
	if p.creditDenom != "" {
		return p.creditDenom, nil
	}
	var denom string
	ok, err := txn.KVGet([]byte(creditDenomKey), &denom)
	if err != nil {
		return "", err
	}
	if !ok || denom == "" {
		return "", ErrNotInitialised
	}
	p.creditDenom = denom
	return denom, nil
}

// callerFor resolves the roles held by addr.
func callerFor(txn *state.Txn, addr [20]byte) common.Caller {
	caller := common.Caller{Address: addr}
	for _, role := range common.GrantableRoles {
		if txn.HasRole(string(role), addr[:]) {
			caller.Roles = append(caller.Roles, role)
		}
	}
	return caller
}

// execute runs fn in a fresh transaction and commits on success.
func (p *Protocol) execute(op string, attrs []any, fn func(*engines) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	started := time.Now()
	txn := p.state.Begin()
	defer txn.Discard()

	err := func() error {
		denom, err := p.loadCreditDenom(txn)
		if err != nil {
			return err
		}
		eng := p.newEngines(txn, denom)
		if err := fn(eng); err != nil {
			return err
		}
		inProgress, err := eng.auction.AuctionsInProgress()
		if err != nil {
			return err
		}
		if err := txn.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		p.metrics.SetAuctionsInProgress(int(inProgress))
		p.publish(eng.buf)
		return nil
	}()

	outcome := common.ClassName(err)
	p.metrics.ObserveOperation(op, outcome, time.Since(started))
	logAttrs := append([]any{slog.String("op", op), slog.String("outcome", outcome)}, attrs...)
	if err != nil {
		p.logger.Debug("operation rejected", append(logAttrs, slog.Any("error", err))...)
		return err
	}
	p.logger.Debug("operation committed", logAttrs...)
	return nil
}

// view runs fn against a transaction that is always discarded.
func (p *Protocol) view(fn func(*engines) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	txn := p.state.Begin()
	defer txn.Discard()
	denom, err := p.loadCreditDenom(txn)
	if err != nil {
		return err
	}
	return fn(p.newEngines(txn, denom))
}

func (p *Protocol) publish(buf *events.Buffer) {
	for _, evt := range buf.Events() {
		observability.Events().Record(evt.Event())
	}
	buf.Flush(events.Multi{p.feed, p.sink})
}

func marketAttr(market string) slog.Attr {
	return slog.String("market", strings.ToLower(strings.TrimSpace(market)))
}

func loanAttr(id uint64) slog.Attr {
	return slog.Uint64("loan", id)
}

// Borrow opens a loan for from.
func (p *Protocol) Borrow(from [20]byte, market string, principal, collateral *big.Int, now uint64) (*lending.Loan, error) {
	var loan *lending.Loan
	err := p.execute("borrow", []any{marketAttr(market)}, func(e *engines) error {
		var err error
		loan, err = e.lending.Borrow(callerFor(e.txn, from), market, principal, collateral, now)
		if err != nil {
			return err
		}
		p.publishRateLimit(e, loan.Market, now)
		return nil
	})
	return loan, err
}

func (p *Protocol) publishRateLimit(e *engines, market string, now uint64) {
	m, err := e.lending.Market(market)
	if err != nil {
		return
	}
	if level, err := e.limiter.CurrentLevel(m.Params.Authority, now); err == nil {
		p.metrics.SetRateLimitLevel(m.Params.Authority, level)
	}
}

// Repay fully repays an active loan on behalf of from.
func (p *Protocol) Repay(from [20]byte, loanID uint64, now uint64) (*lending.RepayResult, error) {
	var result *lending.RepayResult
	err := p.execute("repay", []any{loanAttr(loanID)}, func(e *engines) error {
		var err error
		result, err = e.lending.Repay(callerFor(e.txn, from), loanID, now)
		if err == nil {
			p.publishRateLimit(e, result.Loan.Market, now)
		}
		return err
	})
	return result, err
}

// PartialRepay repays part of an active loan.
func (p *Protocol) PartialRepay(from [20]byte, loanID uint64, amount *big.Int, now uint64) (*lending.RepayResult, error) {
	var result *lending.RepayResult
	err := p.execute("partial_repay", []any{loanAttr(loanID)}, func(e *engines) error {
		var err error
		result, err = e.lending.PartialRepay(callerFor(e.txn, from), loanID, amount, now)
		return err
	})
	return result, err
}

// Call freezes a callable loan and opens its auction.
func (p *Protocol) Call(from [20]byte, loanID uint64, now uint64) (*lending.Loan, error) {
	var loan *lending.Loan
	err := p.execute("call", []any{loanAttr(loanID)}, func(e *engines) error {
		var err error
		loan, err = e.lending.Call(callerFor(e.txn, from), loanID, now)
		return err
	})
	return loan, err
}

// Bid takes the current auction quote for loanID.
func (p *Protocol) Bid(from [20]byte, loanID uint64, now uint64) (*auction.BidResult, error) {
	var result *auction.BidResult
	err := p.execute("bid", []any{loanAttr(loanID)}, func(e *engines) error {
		var err error
		result, err = e.auction.Bid(callerFor(e.txn, from), loanID, now)
		return err
	})
	return result, err
}

// Forgive closes an auction that drew no bid before full decay.
func (p *Protocol) Forgive(from [20]byte, loanID uint64, now uint64) (*lending.Settlement, error) {
	var settlement *lending.Settlement
	err := p.execute("forgive", []any{loanAttr(loanID)}, func(e *engines) error {
		var err error
		settlement, err = e.auction.Forgive(callerFor(e.txn, from), loanID, now)
		return err
	})
	return settlement, err
}

// Donate moves credit from from into a surplus buffer. An empty market is the
// global buffer.
func (p *Protocol) Donate(from [20]byte, market string, amount *big.Int) (*big.Int, error) {
	var level *big.Int
	err := p.execute("donate", []any{marketAttr(market)}, func(e *engines) error {
		var err error
		level, err = e.profit.Donate(callerFor(e.txn, from), market, amount)
		return err
	})
	return level, err
}

// WithdrawSurplus takes credit out of a surplus buffer.
func (p *Protocol) WithdrawSurplus(from [20]byte, market string, to [20]byte, amount *big.Int) (*big.Int, error) {
	var level *big.Int
	err := p.execute("withdraw_surplus", []any{marketAttr(market)}, func(e *engines) error {
		var err error
		level, err = e.profit.Withdraw(callerFor(e.txn, from), market, to, amount)
		return err
	})
	return level, err
}

// ClaimGuildRewards pays the accrued guild share of a market to to.
func (p *Protocol) ClaimGuildRewards(from [20]byte, market string, to [20]byte) (*big.Int, error) {
	var paid *big.Int
	err := p.execute("claim_guild_rewards", []any{marketAttr(market)}, func(e *engines) error {
		var err error
		paid, err = e.profit.ClaimGuildRewards(callerFor(e.txn, from), market, to)
		return err
	})
	return paid, err
}

// Transfer moves a balance between accounts.
func (p *Protocol) Transfer(from, to [20]byte, denom string, amount *big.Int) error {
	return p.execute("transfer", nil, func(e *engines) error {
		if err := p.policy.Authorize(common.OpTransfer, callerFor(e.txn, from)); err != nil {
			return err
		}
		if from == p.lendingAddr || from == p.profitAddr || from == p.auctionAddr {
			return fmt.Errorf("%w: module accounts cannot transfer", common.ErrUnauthorized)
		}
		return e.bank.Transfer(denom, from, to, amount)
	})
}

// SetRateLimitPerSecond changes an authority's refill rate.
func (p *Protocol) SetRateLimitPerSecond(from [20]byte, authority string, rate *big.Int, now uint64) error {
	return p.execute("set_rate_limit", []any{slog.String("authority", authority)}, func(e *engines) error {
		return e.limiter.SetRateLimitPerSecond(callerFor(e.txn, from), authority, rate, now)
	})
}

// SetBufferCap changes an authority's buffer capacity.
func (p *Protocol) SetBufferCap(from [20]byte, authority string, capacity *big.Int, now uint64) error {
	return p.execute("set_buffer_cap", []any{slog.String("authority", authority)}, func(e *engines) error {
		return e.limiter.SetBufferCap(callerFor(e.txn, from), authority, capacity, now)
	})
}

// SetHardCap changes a market's hard cap.
func (p *Protocol) SetHardCap(from [20]byte, market string, hardCap *big.Int) error {
	return p.execute("set_hard_cap", []any{marketAttr(market)}, func(e *engines) error {
		return e.lending.SetHardCap(callerFor(e.txn, from), market, hardCap)
	})
}

// SetMinBorrow changes a market's minimum borrow.
func (p *Protocol) SetMinBorrow(from [20]byte, market string, minBorrow *big.Int) error {
	return p.execute("set_min_borrow", []any{marketAttr(market)}, func(e *engines) error {
		return e.lending.SetMinBorrow(callerFor(e.txn, from), market, minBorrow)
	})
}

// SetGaugeWeightTolerance changes a market's debt ceiling tolerance.
func (p *Protocol) SetGaugeWeightTolerance(from [20]byte, market string, tolerance *big.Int) error {
	return p.execute("set_gauge_weight_tolerance", []any{marketAttr(market)}, func(e *engines) error {
		return e.lending.SetGaugeWeightTolerance(callerFor(e.txn, from), market, tolerance)
	})
}

// SetGauge updates a market's gauge weight and activity.
func (p *Protocol) SetGauge(from [20]byte, market string, weight *big.Int, active bool) error {
	return p.execute("set_gauge", []any{marketAttr(market)}, func(e *engines) error {
		if _, err := e.lending.Market(market); err != nil {
			return err
		}
		return e.gauges.SetGauge(callerFor(e.txn, from), market, weight, active)
	})
}

// SetAuctionParams changes the schedule of auctions started afterwards.
func (p *Protocol) SetAuctionParams(from [20]byte, params auction.Params) error {
	return p.execute("set_auction_params", nil, func(e *engines) error {
		return e.auction.SetAuctionParams(callerFor(e.txn, from), params)
	})
}

// SetProfitSharing replaces the profit split.
func (p *Protocol) SetProfitSharing(from [20]byte, cfg profit.SharingConfig) error {
	return p.execute("set_profit_sharing", nil, func(e *engines) error {
		return e.profit.SetProfitSharing(callerFor(e.txn, from), cfg)
	})
}

// GrantRole assigns role to addr.
func (p *Protocol) GrantRole(from [20]byte, role string, addr [20]byte) error {
	return p.execute("grant_role", []any{slog.String("role", role)}, func(e *engines) error {
		parsed, err := p.authorizeRoleChange(e, from, role)
		if err != nil {
			return err
		}
		return e.txn.SetRole(string(parsed), addr[:])
	})
}

// RevokeRole removes role from addr.
func (p *Protocol) RevokeRole(from [20]byte, role string, addr [20]byte) error {
	return p.execute("revoke_role", []any{slog.String("role", role)}, func(e *engines) error {
		parsed, err := p.authorizeRoleChange(e, from, role)
		if err != nil {
			return err
		}
		return e.txn.RevokeRole(string(parsed), addr[:])
	})
}

func (p *Protocol) authorizeRoleChange(e *engines, from [20]byte, role string) (common.Role, error) {
	if err := p.policy.Authorize(common.OpGrantRole, callerFor(e.txn, from)); err != nil {
		return "", err
	}
	return common.ParseRole(role)
}

// SetPaused pauses or resumes the user entry points of a module.
func (p *Protocol) SetPaused(from [20]byte, module string, paused bool) error {
	module = strings.ToLower(strings.TrimSpace(module))
	return p.execute("pause", []any{slog.String("module", module), slog.Bool("paused", paused)}, func(e *engines) error {
		if err := p.policy.Authorize(common.OpPause, callerFor(e.txn, from)); err != nil {
			return err
		}
		if !knownModule(module) {
			return fmt.Errorf("%w: %q", ErrUnknownModule, module)
		}
		return e.pauses.SetPaused(module, paused)
	})
}

func knownModule(module string) bool {
	for _, m := range Modules {
		if m == module {
			return true
		}
	}
	return false
}

// IsInitialised reports whether genesis has been applied.
func (p *Protocol) IsInitialised() bool {
	err := p.view(func(*engines) error { return nil })
	return !errors.Is(err, ErrNotInitialised)
}
