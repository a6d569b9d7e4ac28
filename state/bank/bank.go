package bank

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"creditguild/core/events"
	"creditguild/native/common"
)

var (
	ErrInvalidAmount       = common.NewError(common.ErrAdmissionDenied, "bank: amount must be positive")
	ErrInvalidDenom        = common.NewError(common.ErrAdmissionDenied, "bank: denomination required")
	ErrInsufficientBalance = common.NewError(common.ErrAdmissionDenied, "bank: insufficient balance")
	ErrBalanceOverflow     = common.NewError(common.ErrAdmissionDenied, "bank: balance exceeds 256 bits")
	ErrStateUnavailable    = errors.New("bank: state not configured")
)

const (
	balancePrefix = "bank/balance/"
	supplyPrefix  = "bank/supply/"
)

// Store is the subset of the state transaction used by the bank.
type Store interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Ledger tracks multi-denomination balances and total supplies. The credit
// unit and every market's collateral token live side by side and protocol
// modules hold custody through their module accounts.
type Ledger struct {
	state   Store
	emitter events.Emitter
}

// New constructs a ledger bound to the provided state.
func New(state Store) *Ledger {
	return &Ledger{state: state, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the sink for transfer and supply events.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if l == nil {
		return
	}
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func normalizeDenom(denom string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(denom))
	if trimmed == "" {
		return "", ErrInvalidDenom
	}
	return trimmed, nil
}

func balanceKey(denom string, addr [20]byte) []byte {
	return []byte(balancePrefix + denom + "/" + hex.EncodeToString(addr[:]))
}

func supplyKey(denom string) []byte {
	return []byte(supplyPrefix + denom)
}

func (l *Ledger) load(key []byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, ErrStateUnavailable
	}
	value := new(big.Int)
	ok, err := l.state.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (l *Ledger) store(key []byte, value *big.Int) error {
	if _, overflow := uint256.FromBig(value); overflow {
		return ErrBalanceOverflow
	}
	return l.state.KVPut(key, value)
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Balance returns the balance of addr in the given denomination.
func (l *Ledger) Balance(denom string, addr [20]byte) (*big.Int, error) {
	d, err := normalizeDenom(denom)
	if err != nil {
		return nil, err
	}
	return l.load(balanceKey(d, addr))
}

// TotalSupply returns the outstanding supply of the denomination.
func (l *Ledger) TotalSupply(denom string) (*big.Int, error) {
	d, err := normalizeDenom(denom)
	if err != nil {
		return nil, err
	}
	return l.load(supplyKey(d))
}

// Mint creates amount units of denom in the recipient's account.
func (l *Ledger) Mint(denom string, to [20]byte, amount *big.Int) error {
	d, err := normalizeDenom(denom)
	if err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	supply, err := l.load(supplyKey(d))
	if err != nil {
		return err
	}
	balance, err := l.load(balanceKey(d, to))
	if err != nil {
		return err
	}
	supply.Add(supply, amount)
	balance.Add(balance, amount)
	if err := l.store(supplyKey(d), supply); err != nil {
		return err
	}
	if err := l.store(balanceKey(d, to), balance); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenSupply{Denom: d, Total: supply, Delta: new(big.Int).Set(amount), Reason: events.SupplyReasonMint})
	return nil
}

// Burn destroys amount units of denom held by from.
func (l *Ledger) Burn(denom string, from [20]byte, amount *big.Int) error {
	d, err := normalizeDenom(denom)
	if err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	balance, err := l.load(balanceKey(d, from))
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s %s", ErrInsufficientBalance, balance, amount, d)
	}
	supply, err := l.load(supplyKey(d))
	if err != nil {
		return err
	}
	balance.Sub(balance, amount)
	supply.Sub(supply, amount)
	if supply.Sign() < 0 {
		return fmt.Errorf("bank: %s supply underflow", d)
	}
	if err := l.store(balanceKey(d, from), balance); err != nil {
		return err
	}
	if err := l.store(supplyKey(d), supply); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenSupply{Denom: d, Total: supply, Delta: new(big.Int).Neg(amount), Reason: events.SupplyReasonBurn})
	return nil
}

// Transfer moves amount units of denom between accounts. Self transfers only
// check the balance.
func (l *Ledger) Transfer(denom string, from, to [20]byte, amount *big.Int) error {
	d, err := normalizeDenom(denom)
	if err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	src, err := l.load(balanceKey(d, from))
	if err != nil {
		return err
	}
	if src.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s %s", ErrInsufficientBalance, src, amount, d)
	}
	if from == to {
		return nil
	}
	dst, err := l.load(balanceKey(d, to))
	if err != nil {
		return err
	}
	src.Sub(src, amount)
	dst.Add(dst, amount)
	if err := l.store(balanceKey(d, from), src); err != nil {
		return err
	}
	if err := l.store(balanceKey(d, to), dst); err != nil {
		return err
	}
	l.emitter.Emit(events.Transfer{Denom: d, From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}
