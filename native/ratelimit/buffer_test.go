package ratelimit

import (
	"errors"
	"math/big"
	"testing"
)

func TestBufferLevelSaturates(t *testing.T) {
	buf := NewBuffer(big.NewInt(1000), big.NewInt(10), 100)
	if err := buf.deplete(big.NewInt(600), 100); err != nil {
		t.Fatalf("deplete: %v", err)
	}
	cases := []struct {
		now  uint64
		want int64
	}{
		{now: 90, want: 400},
		{now: 100, want: 400},
		{now: 110, want: 500},
		{now: 160, want: 1000},
		{now: 10_000, want: 1000},
	}
	for _, tc := range cases {
		if got := buf.Level(tc.now); got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("level at %d = %s, want %d", tc.now, got, tc.want)
		}
	}
}

func TestBufferDepleteFailureLeavesStateUnchanged(t *testing.T) {
	buf := NewBuffer(big.NewInt(100), big.NewInt(1), 0)
	if err := buf.deplete(big.NewInt(80), 0); err != nil {
		t.Fatalf("deplete: %v", err)
	}
	before := buf.Clone()
	if err := buf.deplete(big.NewInt(30), 5); !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if buf.Stored.Cmp(before.Stored) != 0 || buf.LastUpdate != before.LastUpdate {
		t.Fatalf("failed deplete mutated the buffer: %+v", buf)
	}
	if err := buf.deplete(big.NewInt(25), 5); err != nil {
		t.Fatalf("exact level deplete: %v", err)
	}
	if got := buf.Level(5); got.Sign() != 0 {
		t.Fatalf("expected empty buffer, got %s", got)
	}
}

func TestBufferReplenishCapsAtCapacity(t *testing.T) {
	buf := NewBuffer(big.NewInt(100), big.NewInt(0), 0)
	if err := buf.deplete(big.NewInt(10), 0); err != nil {
		t.Fatalf("deplete: %v", err)
	}
	buf.replenish(big.NewInt(500), 1)
	if got := buf.Level(1); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("replenish must cap at capacity, got %s", got)
	}
}

func TestBufferSetCapacityClipsLevel(t *testing.T) {
	buf := NewBuffer(big.NewInt(100), big.NewInt(2), 0)
	if err := buf.deplete(big.NewInt(50), 0); err != nil {
		t.Fatalf("deplete: %v", err)
	}
	// 10 seconds at the old rate are settled before the change.
	buf.setRate(big.NewInt(0), 10)
	if got := buf.Level(100); got.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("level after rate change = %s, want 70", got)
	}
	buf.setCapacity(big.NewInt(40), 100)
	if got := buf.Level(100); got.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("level after cap change = %s, want 40", got)
	}
}

func TestBufferInvariantUnderRandomOps(t *testing.T) {
	buf := NewBuffer(big.NewInt(1_000), big.NewInt(7), 0)
	capacity := big.NewInt(1_000)
	now := uint64(0)
	amounts := []int64{13, 700, 2, 999, 450, 1, 60, 1_000, 333}
	for i, amt := range amounts {
		now += uint64(i * 11)
		if i%2 == 0 {
			_ = buf.deplete(big.NewInt(amt), now)
		} else {
			buf.replenish(big.NewInt(amt), now)
		}
		level := buf.Level(now)
		if level.Sign() < 0 || level.Cmp(capacity) > 0 {
			t.Fatalf("level %s escaped [0, %s] at step %d", level, capacity, i)
		}
	}
}
