package ratelimit

import (
	"errors"
	"math/big"
	"testing"

	"creditguild/core/events"
	"creditguild/core/state"
	"creditguild/native/common"
	"creditguild/storage"
)

var (
	lendingCaller  = common.ModuleCaller([20]byte{0xAA}, common.RoleLendingModule)
	governorCaller = common.Caller{Address: [20]byte{0x01}, Roles: []common.Role{common.RoleGovernor}}
	userCaller     = common.Caller{Address: [20]byte{0x02}}
)

func newTestEngine(t *testing.T) (*Engine, *events.Buffer) {
	t.Helper()
	txn := state.NewManager(storage.NewMemDB()).Begin()
	t.Cleanup(txn.Discard)
	engine := NewEngine(nil)
	engine.SetState(txn)
	buf := &events.Buffer{}
	engine.SetEmitter(buf)
	if err := engine.Register("market/weth", big.NewInt(1_000), big.NewInt(10), 0); err != nil {
		t.Fatalf("register: %v", err)
	}
	return engine, buf
}

func TestRegisterStartsFull(t *testing.T) {
	engine, _ := newTestEngine(t)
	level, err := engine.CurrentLevel("MARKET/WETH", 0)
	if err != nil {
		t.Fatalf("level: %v", err)
	}
	if level.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected full buffer, got %s", level)
	}
	if err := engine.Register("market/weth", big.NewInt(1), big.NewInt(1), 0); !errors.Is(err, ErrAuthorityExists) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if _, err := engine.CurrentLevel("market/unknown", 0); !errors.Is(err, ErrUnknownAuthority) {
		t.Fatalf("expected unknown authority, got %v", err)
	}
}

func TestDepleteAndRefill(t *testing.T) {
	engine, _ := newTestEngine(t)
	if err := engine.Deplete(lendingCaller, "market/weth", big.NewInt(900), 0); err != nil {
		t.Fatalf("deplete: %v", err)
	}
	err := engine.Deplete(lendingCaller, "market/weth", big.NewInt(200), 5)
	if !errors.Is(err, ErrRateLimitExceeded) || !errors.Is(err, common.ErrAdmissionDenied) {
		t.Fatalf("expected rate limit admission error, got %v", err)
	}
	if err := engine.Deplete(lendingCaller, "market/weth", big.NewInt(200), 10); err != nil {
		t.Fatalf("deplete after refill: %v", err)
	}
	if err := engine.Replenish(lendingCaller, "market/weth", big.NewInt(5_000), 10); err != nil {
		t.Fatalf("replenish: %v", err)
	}
	level, _ := engine.CurrentLevel("market/weth", 10)
	if level.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected capped level, got %s", level)
	}
}

func TestDepleteRequiresLendingModule(t *testing.T) {
	engine, _ := newTestEngine(t)
	if err := engine.Deplete(userCaller, "market/weth", big.NewInt(1), 0); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := engine.Replenish(governorCaller, "market/weth", big.NewInt(1), 0); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := engine.Deplete(lendingCaller, "market/weth", big.NewInt(0), 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestGovernorSetters(t *testing.T) {
	engine, buf := newTestEngine(t)
	if err := engine.SetRateLimitPerSecond(userCaller, "market/weth", big.NewInt(1), 0); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	tooFast := new(big.Int).Add(MaxRatePerSecond, big.NewInt(1))
	if err := engine.SetRateLimitPerSecond(governorCaller, "market/weth", tooFast, 0); !errors.Is(err, common.ErrConfigInvalid) {
		t.Fatalf("expected config invalid, got %v", err)
	}
	tooBig := new(big.Int).Add(MaxBufferCap, big.NewInt(1))
	if err := engine.SetBufferCap(governorCaller, "market/weth", tooBig, 0); !errors.Is(err, ErrCapacityTooHigh) {
		t.Fatalf("expected cap error, got %v", err)
	}

	if err := engine.Deplete(lendingCaller, "market/weth", big.NewInt(500), 0); err != nil {
		t.Fatalf("deplete: %v", err)
	}
	if err := engine.SetRateLimitPerSecond(governorCaller, "market/weth", big.NewInt(1), 20); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	level, _ := engine.CurrentLevel("market/weth", 30)
	// 500 + 20*10 at the old rate, then 10*1 at the new rate.
	if level.Cmp(big.NewInt(710)) != 0 {
		t.Fatalf("expected 710, got %s", level)
	}
	if err := engine.SetBufferCap(governorCaller, "market/weth", big.NewInt(300), 30); err != nil {
		t.Fatalf("set cap: %v", err)
	}
	stored, err := engine.Buffer("market/weth")
	if err != nil {
		t.Fatalf("buffer: %v", err)
	}
	if stored.Stored.Cmp(big.NewInt(300)) != 0 || stored.Capacity.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("unexpected buffer after cap change: %+v", stored)
	}
	if buf.Len() != 2 {
		t.Fatalf("expected two param events, got %d", buf.Len())
	}
}

func TestNilStateIsRejected(t *testing.T) {
	engine := NewEngine(nil)
	if _, err := engine.CurrentLevel("market/weth", 0); !errors.Is(err, ErrNilStateAccess) {
		t.Fatalf("expected nil state error, got %v", err)
	}
}
