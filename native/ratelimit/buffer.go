package ratelimit

import (
	"math/big"
)

// Buffer is a token bucket bounding how much an authority may mint or burn.
// Stored is the level recorded at LastUpdate; the live level is derived on
// every read.
type Buffer struct {
	Capacity      *big.Int
	Stored        *big.Int
	RatePerSecond *big.Int
	LastUpdate    uint64
}

// NewBuffer returns a full buffer.
func NewBuffer(capacity, ratePerSecond *big.Int, now uint64) *Buffer {
	return &Buffer{
		Capacity:      cloneOrZero(capacity),
		Stored:        cloneOrZero(capacity),
		RatePerSecond: cloneOrZero(ratePerSecond),
		LastUpdate:    now,
	}
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	if b == nil {
		return nil
	}
	return &Buffer{
		Capacity:      cloneOrZero(b.Capacity),
		Stored:        cloneOrZero(b.Stored),
		RatePerSecond: cloneOrZero(b.RatePerSecond),
		LastUpdate:    b.LastUpdate,
	}
}

// Level returns min(capacity, stored + elapsed*rate). Timestamps earlier than
// LastUpdate accrue nothing.
func (b *Buffer) Level(now uint64) *big.Int {
	capacity := cloneOrZero(b.Capacity)
	level := cloneOrZero(b.Stored)
	if now > b.LastUpdate && b.RatePerSecond != nil && b.RatePerSecond.Sign() > 0 {
		elapsed := new(big.Int).SetUint64(now - b.LastUpdate)
		level.Add(level, elapsed.Mul(elapsed, b.RatePerSecond))
	}
	if level.Cmp(capacity) > 0 {
		return capacity
	}
	if level.Sign() < 0 {
		return big.NewInt(0)
	}
	return level
}

// sync folds the accrued refill into Stored.
func (b *Buffer) sync(now uint64) {
	b.Stored = b.Level(now)
	if now > b.LastUpdate {
		b.LastUpdate = now
	}
}

// deplete removes amount from the live level. The buffer is left untouched
// when the level is insufficient.
func (b *Buffer) deplete(amount *big.Int, now uint64) error {
	level := b.Level(now)
	if amount.Cmp(level) > 0 {
		return ErrRateLimitExceeded
	}
	b.sync(now)
	b.Stored.Sub(b.Stored, amount)
	return nil
}

// replenish adds amount to the live level, silently capped at capacity.
func (b *Buffer) replenish(amount *big.Int, now uint64) {
	b.sync(now)
	b.Stored.Add(b.Stored, amount)
	if b.Stored.Cmp(b.Capacity) > 0 {
		b.Stored.Set(b.Capacity)
	}
}

func (b *Buffer) setRate(rate *big.Int, now uint64) {
	b.sync(now)
	b.RatePerSecond = new(big.Int).Set(rate)
}

func (b *Buffer) setCapacity(capacity *big.Int, now uint64) {
	b.sync(now)
	b.Capacity = new(big.Int).Set(capacity)
	if b.Stored.Cmp(b.Capacity) > 0 {
		b.Stored.Set(b.Capacity)
	}
}
