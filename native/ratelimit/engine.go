package ratelimit

import (
	"fmt"
	"math/big"
	"strings"

	"creditguild/core/events"
	"creditguild/native/common"
)

var (
	ErrRateLimitExceeded = common.NewError(common.ErrAdmissionDenied, "ratelimit: amount exceeds buffer")
	ErrUnknownAuthority  = common.NewError(common.ErrInvalidState, "ratelimit: unknown authority")
	ErrAuthorityExists   = common.NewError(common.ErrInvalidState, "ratelimit: authority already registered")
	ErrInvalidAmount     = common.NewError(common.ErrAdmissionDenied, "ratelimit: amount must be positive")
	ErrRateTooHigh       = common.NewError(common.ErrConfigInvalid, "ratelimit: rate per second above maximum")
	ErrCapacityTooHigh   = common.NewError(common.ErrConfigInvalid, "ratelimit: buffer cap above maximum")
	ErrNilStateAccess    = common.NewError(common.ErrInvalidState, "ratelimit: state not configured")
)

var (
	// MaxRatePerSecond bounds governance changes to the refill speed.
	MaxRatePerSecond = new(big.Int).Mul(big.NewInt(10_000), big.NewInt(1_000_000_000_000_000_000))
	// MaxBufferCap bounds governance changes to the bucket size.
	MaxBufferCap = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

// engineState captures the state access the rate limiter relies on.
type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Engine stores one Buffer per issuance authority.
type Engine struct {
	state   engineState
	policy  common.Policy
	emitter events.Emitter
}

// NewEngine constructs a rate limiter engine.
func NewEngine(policy common.Policy) *Engine {
	if policy == nil {
		policy = common.DefaultPolicy()
	}
	return &Engine{policy: policy, emitter: events.NoopEmitter{}}
}

// SetState wires the state backend.
func (e *Engine) SetState(state engineState) {
	if e == nil {
		return
	}
	e.state = state
}

// SetEmitter configures the event sink.
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

func bufferKey(authority string) []byte {
	return []byte("ratelimit/buffer/" + authority)
}

func normalizeAuthority(authority string) string {
	return strings.ToLower(strings.TrimSpace(authority))
}

func (e *Engine) load(authority string) (*Buffer, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilStateAccess
	}
	var stored Buffer
	ok, err := e.state.KVGet(bufferKey(authority), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAuthority, authority)
	}
	stored.Capacity = cloneOrZero(stored.Capacity)
	stored.Stored = cloneOrZero(stored.Stored)
	stored.RatePerSecond = cloneOrZero(stored.RatePerSecond)
	return &stored, nil
}

func (e *Engine) store(authority string, buf *Buffer) error {
	return e.state.KVPut(bufferKey(authority), buf)
}

func validateParams(capacity, rate *big.Int) error {
	if capacity == nil || capacity.Sign() < 0 || capacity.Cmp(MaxBufferCap) > 0 {
		return ErrCapacityTooHigh
	}
	if rate == nil || rate.Sign() < 0 || rate.Cmp(MaxRatePerSecond) > 0 {
		return ErrRateTooHigh
	}
	return nil
}

// Register creates a full buffer for a new authority. It is used at genesis
// and when governance onboards a market with a dedicated issuer.
func (e *Engine) Register(authority string, capacity, rate *big.Int, now uint64) error {
	if e == nil || e.state == nil {
		return ErrNilStateAccess
	}
	authority = normalizeAuthority(authority)
	if authority == "" {
		return common.NewError(common.ErrConfigInvalid, "ratelimit: authority required")
	}
	if err := validateParams(capacity, rate); err != nil {
		return err
	}
	exists, err := e.state.KVGet(bufferKey(authority), nil)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAuthorityExists, authority)
	}
	return e.store(authority, NewBuffer(capacity, rate, now))
}

// Buffer returns a copy of the stored buffer for authority.
func (e *Engine) Buffer(authority string) (*Buffer, error) {
	return e.load(normalizeAuthority(authority))
}

// CurrentLevel returns the live level of the authority's buffer.
func (e *Engine) CurrentLevel(authority string, now uint64) (*big.Int, error) {
	buf, err := e.load(normalizeAuthority(authority))
	if err != nil {
		return nil, err
	}
	return buf.Level(now), nil
}

// Deplete consumes amount from the buffer or fails with ErrRateLimitExceeded.
func (e *Engine) Deplete(caller common.Caller, authority string, amount *big.Int, now uint64) error {
	if err := e.policy.Authorize(common.OpDeplete, caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	authority = normalizeAuthority(authority)
	buf, err := e.load(authority)
	if err != nil {
		return err
	}
	if err := buf.deplete(amount, now); err != nil {
		return fmt.Errorf("%w: %s requested %s, available %s", err, authority, amount, buf.Level(now))
	}
	return e.store(authority, buf)
}

// Replenish returns amount to the buffer, capped at capacity. Zero amounts are
// a no-op.
func (e *Engine) Replenish(caller common.Caller, authority string, amount *big.Int, now uint64) error {
	if err := e.policy.Authorize(common.OpReplenish, caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	authority = normalizeAuthority(authority)
	buf, err := e.load(authority)
	if err != nil {
		return err
	}
	buf.replenish(amount, now)
	return e.store(authority, buf)
}

// SetRateLimitPerSecond changes the refill speed after settling accrual at the
// old rate.
func (e *Engine) SetRateLimitPerSecond(caller common.Caller, authority string, rate *big.Int, now uint64) error {
	if err := e.policy.Authorize(common.OpSetRateLimit, caller); err != nil {
		return err
	}
	if rate == nil || rate.Sign() < 0 || rate.Cmp(MaxRatePerSecond) > 0 {
		return ErrRateTooHigh
	}
	authority = normalizeAuthority(authority)
	buf, err := e.load(authority)
	if err != nil {
		return err
	}
	buf.setRate(rate, now)
	if err := e.store(authority, buf); err != nil {
		return err
	}
	e.emitter.Emit(events.RateLimitParamsUpdated{Authority: authority, Capacity: buf.Capacity, RatePerSecond: buf.RatePerSecond})
	return nil
}

// SetBufferCap changes the bucket size. A level above the new cap is clipped.
func (e *Engine) SetBufferCap(caller common.Caller, authority string, capacity *big.Int, now uint64) error {
	if err := e.policy.Authorize(common.OpSetBufferCap, caller); err != nil {
		return err
	}
	if capacity == nil || capacity.Sign() < 0 || capacity.Cmp(MaxBufferCap) > 0 {
		return ErrCapacityTooHigh
	}
	authority = normalizeAuthority(authority)
	buf, err := e.load(authority)
	if err != nil {
		return err
	}
	buf.setCapacity(capacity, now)
	if err := e.store(authority, buf); err != nil {
		return err
	}
	e.emitter.Emit(events.RateLimitParamsUpdated{Authority: authority, Capacity: buf.Capacity, RatePerSecond: buf.RatePerSecond})
	return nil
}
