package profit

import (
	"fmt"
	"math/big"
	"strings"

	"creditguild/core/events"
	"creditguild/native/common"
)

var (
	errNilState         = common.NewError(common.ErrInvalidState, "profit engine: state not configured")
	errNilBank          = common.NewError(common.ErrInvalidState, "profit engine: bank not configured")
	ErrInvalidAmount    = common.NewError(common.ErrAdmissionDenied, "profit engine: amount must be positive")
	ErrBufferTooSmall   = common.NewError(common.ErrAdmissionDenied, "profit engine: amount exceeds surplus buffer")
	ErrNoGuildRewards   = common.NewError(common.ErrInvalidState, "profit engine: no guild rewards accrued")
	ErrInvalidSplit     = common.NewError(common.ErrConfigInvalid, "profit engine: splits must be non-negative and sum to 1e18")
	ErrMissingRecipient = common.NewError(common.ErrConfigInvalid, "profit engine: other split requires a recipient")
	ErrAlreadyInit      = common.NewError(common.ErrInvalidState, "profit engine: already initialised")
)

const moduleName = "profit"

const (
	multiplierKey   = "profit/multiplier"
	sharingKey      = "profit/sharing"
	globalBufferKey = "profit/buffer/global"
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Bank is the credit ledger used to hold buffers in custody and to burn.
type Bank interface {
	Burn(denom string, from [20]byte, amount *big.Int) error
	Transfer(denom string, from, to [20]byte, amount *big.Int) error
	TotalSupply(denom string) (*big.Int, error)
}

// Engine is the loss accountant. It owns the credit multiplier, the global and
// per-market surplus buffers and the accrued guild rewards. Buffer and reward
// balances are backed by credit held in the custody account.
type Engine struct {
	state       engineState
	bank        Bank
	policy      common.Policy
	emitter     events.Emitter
	pauses      common.PauseView
	custody     [20]byte
	creditDenom string
}

// NewEngine constructs the accountant.
func NewEngine(custody [20]byte, creditDenom string, policy common.Policy) *Engine {
	if policy == nil {
		policy = common.DefaultPolicy()
	}
	return &Engine{
		policy:      policy,
		emitter:     events.NoopEmitter{},
		custody:     custody,
		creditDenom: strings.ToLower(strings.TrimSpace(creditDenom)),
	}
}

func (e *Engine) SetState(state engineState) {
	if e == nil {
		return
	}
	e.state = state
}

func (e *Engine) SetBank(bank Bank) {
	if e == nil {
		return
	}
	e.bank = bank
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

// Custody returns the account holding buffer and reward credit.
func (e *Engine) Custody() [20]byte { return e.custody }

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.bank == nil {
		return errNilBank
	}
	return nil
}

func marketBufferKey(market string) []byte {
	return []byte("profit/buffer/market/" + market)
}

func guildRewardsKey(market string) []byte {
	return []byte("profit/guild/" + market)
}

func normalizeMarket(market string) string {
	return strings.ToLower(strings.TrimSpace(market))
}

func bufferKey(market string) []byte {
	if market == "" {
		return []byte(globalBufferKey)
	}
	return marketBufferKey(market)
}

func (e *Engine) loadAmount(key []byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	value := new(big.Int)
	ok, err := e.state.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (e *Engine) putAmount(key []byte, value *big.Int) error {
	return e.state.KVPut(key, value)
}

// Init stores the genesis multiplier of 1.0 and the sharing configuration.
func (e *Engine) Init(cfg SharingConfig) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	exists, err := e.state.KVGet([]byte(multiplierKey), nil)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyInit
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := e.putAmount([]byte(multiplierKey), new(big.Int).Set(wad)); err != nil {
		return err
	}
	return e.state.KVPut([]byte(sharingKey), cfg.Clone())
}

// Multiplier returns the current credit multiplier in WAD.
func (e *Engine) Multiplier() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	value := new(big.Int)
	ok, err := e.state.KVGet([]byte(multiplierKey), value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(big.Int).Set(wad), nil
	}
	return value, nil
}

// SurplusBuffer returns the global buffer for an empty market name and the
// market's own buffer otherwise.
func (e *Engine) SurplusBuffer(market string) (*big.Int, error) {
	return e.loadAmount(bufferKey(normalizeMarket(market)))
}

// GuildRewards returns the unclaimed guild share accrued by a market.
func (e *Engine) GuildRewards(market string) (*big.Int, error) {
	return e.loadAmount(guildRewardsKey(normalizeMarket(market)))
}

// ProfitSharing returns the active split configuration.
func (e *Engine) ProfitSharing() (SharingConfig, error) {
	if e == nil || e.state == nil {
		return SharingConfig{}, errNilState
	}
	var cfg SharingConfig
	ok, err := e.state.KVGet([]byte(sharingKey), &cfg)
	if err != nil {
		return SharingConfig{}, err
	}
	if !ok {
		// Everything to unit holders until governance decides otherwise.
		return SharingConfig{
			SurplusBufferSplit: big.NewInt(0),
			CreditSplit:        new(big.Int).Set(wad),
			GuildSplit:         big.NewInt(0),
			OtherSplit:         big.NewInt(0),
		}, nil
	}
	return cfg.Clone(), nil
}

// SetProfitSharing replaces the split configuration.
func (e *Engine) SetProfitSharing(caller common.Caller, cfg SharingConfig) error {
	if err := e.policy.Authorize(common.OpSetProfitSharing, caller); err != nil {
		return err
	}
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := e.state.KVPut([]byte(sharingKey), cfg.Clone()); err != nil {
		return err
	}
	e.emitter.Emit(events.ProfitSharingUpdated{
		SurplusBufferSplit: cfg.SurplusBufferSplit,
		CreditSplit:        cfg.CreditSplit,
		GuildSplit:         cfg.GuildSplit,
		OtherSplit:         cfg.OtherSplit,
		OtherRecipient:     cfg.OtherRecipient,
	})
	return nil
}

func (e *Engine) setMultiplier(before, after *big.Int) error {
	if before.Cmp(after) == 0 {
		return nil
	}
	if err := e.putAmount([]byte(multiplierKey), after); err != nil {
		return err
	}
	e.emitter.Emit(events.MultiplierUpdated{Previous: cloneBig(before), Current: cloneBig(after)})
	return nil
}

func (e *Engine) adjustBuffer(market string, delta *big.Int, reason string) (*big.Int, error) {
	key := bufferKey(market)
	level, err := e.loadAmount(key)
	if err != nil {
		return nil, err
	}
	level.Add(level, delta)
	if level.Sign() < 0 {
		return nil, ErrBufferTooSmall
	}
	if err := e.putAmount(key, level); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.SurplusBufferUpdated{Market: market, Reason: reason, Delta: cloneBig(delta), Level: cloneBig(level)})
	return level, nil
}

// NotifyPnL records a realized profit (positive amount) or loss (negative
// amount) for a market. Profit credit must already sit in the custody account.
func (e *Engine) NotifyPnL(caller common.Caller, market string, amount *big.Int) (*PnLOutcome, error) {
	if err := e.policy.Authorize(common.OpNotifyPnL, caller); err != nil {
		return nil, err
	}
	if err := e.ready(); err != nil {
		return nil, err
	}
	market = normalizeMarket(market)
	multiplier, err := e.Multiplier()
	if err != nil {
		return nil, err
	}
	outcome := newOutcome(market, amount, multiplier)
	if amount == nil || amount.Sign() == 0 {
		return outcome, nil
	}
	if amount.Sign() < 0 {
		err = e.absorbLoss(outcome, new(big.Int).Neg(amount))
	} else {
		err = e.distributeProfit(outcome, amount)
	}
	if err != nil {
		return nil, err
	}
	e.emitter.Emit(events.PnL{Market: market, Amount: cloneBig(amount)})
	return outcome, nil
}

// absorbLoss draws the market buffer, then the global buffer, and only then
// reprices the multiplier by (supply - remaining) / supply. Supply is read after
// the buffer burns so it counts circulating credit only.
func (e *Engine) absorbLoss(outcome *PnLOutcome, loss *big.Int) error {
	remaining := new(big.Int).Set(loss)

	if outcome.Market != "" {
		drawn, err := e.drawBuffer(outcome.Market, remaining)
		if err != nil {
			return err
		}
		outcome.MarketBufferDrawn = drawn
		remaining.Sub(remaining, drawn)
	}
	if remaining.Sign() > 0 {
		drawn, err := e.drawBuffer("", remaining)
		if err != nil {
			return err
		}
		outcome.GlobalBufferDrawn = drawn
		remaining.Sub(remaining, drawn)
	}
	outcome.UnabsorbedLoss = cloneBig(remaining)
	if remaining.Sign() == 0 {
		return nil
	}
	supply, err := e.bank.TotalSupply(e.creditDenom)
	if err != nil {
		return err
	}

	before := outcome.MultiplierBefore
	after := big.NewInt(0)
	if supply.Cmp(remaining) > 0 {
		after = new(big.Int).Sub(supply, remaining)
		after.Mul(after, before)
		after.Quo(after, supply)
	}
	outcome.MultiplierAfter = cloneBig(after)
	return e.setMultiplier(before, after)
}

func (e *Engine) drawBuffer(market string, want *big.Int) (*big.Int, error) {
	level, err := e.loadAmount(bufferKey(market))
	if err != nil {
		return nil, err
	}
	drawn := minBig(level, want)
	if drawn.Sign() == 0 {
		return drawn, nil
	}
	if _, err := e.adjustBuffer(market, new(big.Int).Neg(drawn), events.BufferReasonLoss); err != nil {
		return nil, err
	}
	if err := e.bank.Burn(e.creditDenom, e.custody, drawn); err != nil {
		return nil, err
	}
	return drawn, nil
}

// distributeProfit splits amount. Every share but the unit holders' rounds
// down; the unit holders take the remainder through a burn that raises the
// multiplier by supply / (supply - share).
func (e *Engine) distributeProfit(outcome *PnLOutcome, amount *big.Int) error {
	cfg, err := e.ProfitSharing()
	if err != nil {
		return err
	}
	surplus := splitOf(amount, cfg.SurplusBufferSplit)
	guild := splitOf(amount, cfg.GuildSplit)
	other := splitOf(amount, cfg.OtherSplit)
	credit := new(big.Int).Sub(amount, surplus)
	credit.Sub(credit, guild)
	credit.Sub(credit, other)

	if credit.Sign() > 0 {
		supply, err := e.bank.TotalSupply(e.creditDenom)
		if err != nil {
			return err
		}
		before := outcome.MultiplierBefore
		if supply.Cmp(credit) <= 0 || before.Sign() == 0 {
			// Nothing left to reprice; keep the value in the buffer.
			surplus.Add(surplus, credit)
			credit = big.NewInt(0)
		} else {
			if err := e.bank.Burn(e.creditDenom, e.custody, credit); err != nil {
				return err
			}
			after := new(big.Int).Mul(before, supply)
			after.Quo(after, new(big.Int).Sub(supply, credit))
			outcome.MultiplierAfter = cloneBig(after)
			if err := e.setMultiplier(before, after); err != nil {
				return err
			}
		}
	}
	if surplus.Sign() > 0 {
		if _, err := e.adjustBuffer("", surplus, events.BufferReasonProfit); err != nil {
			return err
		}
	}
	if guild.Sign() > 0 {
		key := guildRewardsKey(outcome.Market)
		accrued, err := e.loadAmount(key)
		if err != nil {
			return err
		}
		if err := e.putAmount(key, accrued.Add(accrued, guild)); err != nil {
			return err
		}
	}
	if other.Sign() > 0 {
		if err := e.bank.Transfer(e.creditDenom, e.custody, cfg.OtherRecipient, other); err != nil {
			return err
		}
	}
	outcome.SurplusShare = surplus
	outcome.CreditShare = credit
	outcome.GuildShare = guild
	outcome.OtherShare = other
	return nil
}

// Donate moves credit from the caller into a surplus buffer. An empty market
// targets the global buffer.
func (e *Engine) Donate(caller common.Caller, market string, amount *big.Int) (*big.Int, error) {
	if err := e.policy.Authorize(common.OpDonate, caller); err != nil {
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
	if err := e.bank.Transfer(e.creditDenom, caller.Address, e.custody, amount); err != nil {
		return nil, err
	}
	return e.adjustBuffer(normalizeMarket(market), cloneBig(amount), events.BufferReasonDonate)
}

// Withdraw pays credit out of a surplus buffer.
func (e *Engine) Withdraw(caller common.Caller, market string, to [20]byte, amount *big.Int) (*big.Int, error) {
	if err := e.policy.Authorize(common.OpWithdrawSurplus, caller); err != nil {
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
	market = normalizeMarket(market)
	level, err := e.adjustBuffer(market, new(big.Int).Neg(amount), events.BufferReasonWithdraw)
	if err != nil {
		return nil, fmt.Errorf("withdraw %s: %w", amount, err)
	}
	if err := e.bank.Transfer(e.creditDenom, e.custody, to, amount); err != nil {
		return nil, err
	}
	return level, nil
}

// ClaimGuildRewards pays out a market's accrued guild share.
func (e *Engine) ClaimGuildRewards(caller common.Caller, market string, to [20]byte) (*big.Int, error) {
	if err := e.policy.Authorize(common.OpClaimGuildRewards, caller); err != nil {
		return nil, err
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.ready(); err != nil {
		return nil, err
	}
	market = normalizeMarket(market)
	key := guildRewardsKey(market)
	accrued, err := e.loadAmount(key)
	if err != nil {
		return nil, err
	}
	if accrued.Sign() == 0 {
		return nil, ErrNoGuildRewards
	}
	if err := e.putAmount(key, big.NewInt(0)); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(e.creditDenom, e.custody, to, accrued); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.GuildRewardsClaimed{Market: market, Recipient: to, Amount: cloneBig(accrued)})
	return accrued, nil
}
