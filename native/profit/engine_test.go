package profit

import (
	"errors"
	"math/big"
	"testing"

	"creditguild/core/events"
	"creditguild/core/state"
	"creditguild/native/common"
	"creditguild/state/bank"
	"creditguild/storage"
)

const creditDenom = "credit"

var (
	custody        = [20]byte{0xCC}
	holder         = [20]byte{0x01}
	treasury       = [20]byte{0x0F}
	lendingCaller  = common.ModuleCaller([20]byte{0xAA}, common.RoleLendingModule)
	governorCaller = common.Caller{Address: [20]byte{0x02}, Roles: []common.Role{common.RoleGovernor}}
	withdrawer     = common.Caller{Address: [20]byte{0x03}, Roles: []common.Role{common.RoleSurplusWithdrawer}}
	allocator      = common.Caller{Address: [20]byte{0x04}, Roles: []common.Role{common.RoleGuildAllocator}}
)

type fixture struct {
	engine *Engine
	bank   *bank.Ledger
	events *events.Buffer
}

func wadFrac(numerator, denominator int64) *big.Int {
	v := new(big.Int).Mul(wad, big.NewInt(numerator))
	return v.Quo(v, big.NewInt(denominator))
}

func newFixture(t *testing.T, supply int64, cfg SharingConfig) *fixture {
	t.Helper()
	txn := state.NewManager(storage.NewMemDB()).Begin()
	t.Cleanup(txn.Discard)
	ledger := bank.New(txn)
	engine := NewEngine(custody, creditDenom, nil)
	engine.SetState(txn)
	engine.SetBank(ledger)
	buf := &events.Buffer{}
	engine.SetEmitter(buf)
	if err := engine.Init(cfg); err != nil {
		t.Fatalf("init: %v", err)
	}
	if supply > 0 {
		if err := ledger.Mint(creditDenom, holder, big.NewInt(supply)); err != nil {
			t.Fatalf("mint: %v", err)
		}
	}
	return &fixture{engine: engine, bank: ledger, events: buf}
}

func allToHolders() SharingConfig {
	return SharingConfig{
		SurplusBufferSplit: big.NewInt(0),
		CreditSplit:        new(big.Int).Set(wad),
		GuildSplit:         big.NewInt(0),
		OtherSplit:         big.NewInt(0),
	}
}

func (f *fixture) multiplier(t *testing.T) *big.Int {
	t.Helper()
	m, err := f.engine.Multiplier()
	if err != nil {
		t.Fatalf("multiplier: %v", err)
	}
	return m
}

func TestLossRepricesMultiplierSequentially(t *testing.T) {
	f := newFixture(t, 1_000, allToHolders())

	if _, err := f.engine.NotifyPnL(lendingCaller, "weth", big.NewInt(-40)); err != nil {
		t.Fatalf("first loss: %v", err)
	}
	if got := f.multiplier(t); got.Cmp(wadFrac(96, 100)) != 0 {
		t.Fatalf("multiplier after first loss = %s, want 0.96e18", got)
	}

	// The defaulted credit leaves circulation before the second default.
	if err := f.bank.Burn(creditDenom, holder, big.NewInt(40)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	outcome, err := f.engine.NotifyPnL(lendingCaller, "weth", big.NewInt(-40))
	if err != nil {
		t.Fatalf("second loss: %v", err)
	}
	if got := f.multiplier(t); got.Cmp(wadFrac(92, 100)) != 0 {
		t.Fatalf("multiplier after second loss = %s, want 0.92e18", got)
	}
	if outcome.UnabsorbedLoss.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("unexpected unabsorbed loss %s", outcome.UnabsorbedLoss)
	}
}

func TestBufferAbsorbsLossBeforeMultiplier(t *testing.T) {
	f := newFixture(t, 1_000, allToHolders())
	if _, err := f.engine.Donate(common.Caller{Address: holder}, "", big.NewInt(50)); err != nil {
		t.Fatalf("donate: %v", err)
	}

	outcome, err := f.engine.NotifyPnL(lendingCaller, "weth", big.NewInt(-40))
	if err != nil {
		t.Fatalf("loss: %v", err)
	}
	if got := f.multiplier(t); got.Cmp(wad) != 0 {
		t.Fatalf("multiplier must stay at 1.0, got %s", got)
	}
	level, _ := f.engine.SurplusBuffer("")
	if level.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("global buffer = %s, want 10", level)
	}
	if outcome.GlobalBufferDrawn.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("unexpected buffer draw %s", outcome.GlobalBufferDrawn)
	}
	supply, _ := f.bank.TotalSupply(creditDenom)
	if supply.Cmp(big.NewInt(960)) != 0 {
		t.Fatalf("drawn buffer credit must be burned, supply = %s", supply)
	}
}

func TestLossDrawsMarketBufferFirst(t *testing.T) {
	f := newFixture(t, 1_000, allToHolders())
	donor := common.Caller{Address: holder}
	if _, err := f.engine.Donate(donor, "weth", big.NewInt(30)); err != nil {
		t.Fatalf("donate market: %v", err)
	}
	if _, err := f.engine.Donate(donor, "", big.NewInt(20)); err != nil {
		t.Fatalf("donate global: %v", err)
	}

	outcome, err := f.engine.NotifyPnL(lendingCaller, "WETH", big.NewInt(-60))
	if err != nil {
		t.Fatalf("loss: %v", err)
	}
	if outcome.MarketBufferDrawn.Cmp(big.NewInt(30)) != 0 || outcome.GlobalBufferDrawn.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("unexpected draws: market %s global %s", outcome.MarketBufferDrawn, outcome.GlobalBufferDrawn)
	}
	// 10 remains against the 950 still circulating after the buffers burn.
	if got := f.multiplier(t); got.Cmp(wadFrac(940, 950)) != 0 {
		t.Fatalf("multiplier = %s, want 940/950", got)
	}

	// Other markets' buffers are never touched.
	if _, err := f.engine.Donate(donor, "wbtc", big.NewInt(5)); err != nil {
		t.Fatalf("donate wbtc: %v", err)
	}
	if _, err := f.engine.NotifyPnL(lendingCaller, "weth", big.NewInt(-1)); err != nil {
		t.Fatalf("loss: %v", err)
	}
	if level, _ := f.engine.SurplusBuffer("wbtc"); level.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("wbtc buffer changed to %s", level)
	}
}

func TestLossExceedingSupplyZeroesMultiplier(t *testing.T) {
	f := newFixture(t, 100, allToHolders())
	if _, err := f.engine.NotifyPnL(lendingCaller, "weth", big.NewInt(-100)); err != nil {
		t.Fatalf("loss: %v", err)
	}
	if got := f.multiplier(t); got.Sign() != 0 {
		t.Fatalf("expected zero multiplier, got %s", got)
	}
}

func TestProfitSplitRoundsDownAndRemainderGoesToHolders(t *testing.T) {
	cfg := SharingConfig{
		SurplusBufferSplit: wadFrac(10, 100),
		CreditSplit:        wadFrac(70, 100),
		GuildSplit:         wadFrac(15, 100),
		OtherSplit:         wadFrac(5, 100),
		OtherRecipient:     treasury,
	}
	f := newFixture(t, 1_000, cfg)
	if err := f.bank.Transfer(creditDenom, holder, custody, big.NewInt(101)); err != nil {
		t.Fatalf("fund custody: %v", err)
	}

	outcome, err := f.engine.NotifyPnL(lendingCaller, "weth", big.NewInt(101))
	if err != nil {
		t.Fatalf("profit: %v", err)
	}
	checks := map[string]struct {
		got  *big.Int
		want int64
	}{
		"surplus": {outcome.SurplusShare, 10},
		"guild":   {outcome.GuildShare, 15},
		"other":   {outcome.OtherShare, 5},
		"credit":  {outcome.CreditShare, 71},
	}
	for name, c := range checks {
		if c.got.Cmp(big.NewInt(c.want)) != 0 {
			t.Fatalf("%s share = %s, want %d", name, c.got, c.want)
		}
	}

	wantMultiplier := new(big.Int).Quo(new(big.Int).Mul(wad, big.NewInt(1_000)), big.NewInt(929))
	if got := f.multiplier(t); got.Cmp(wantMultiplier) != 0 {
		t.Fatalf("multiplier = %s, want %s", got, wantMultiplier)
	}
	if bal, _ := f.bank.Balance(creditDenom, treasury); bal.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("treasury balance = %s", bal)
	}
	if bal, _ := f.bank.Balance(creditDenom, custody); bal.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("custody must hold buffer plus guild rewards, got %s", bal)
	}
	if level, _ := f.engine.SurplusBuffer(""); level.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("buffer = %s", level)
	}

	if _, err := f.engine.ClaimGuildRewards(governorCaller, "weth", treasury); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected unauthorized claim, got %v", err)
	}
	claimed, err := f.engine.ClaimGuildRewards(allocator, "weth", treasury)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Cmp(big.NewInt(15)) != 0 {
		t.Fatalf("claimed %s, want 15", claimed)
	}
	if _, err := f.engine.ClaimGuildRewards(allocator, "weth", treasury); !errors.Is(err, ErrNoGuildRewards) {
		t.Fatalf("expected empty rewards, got %v", err)
	}
}

func TestProfitNeverIncreasesMultiplierWithoutHolderShare(t *testing.T) {
	cfg := SharingConfig{
		SurplusBufferSplit: new(big.Int).Set(wad),
		CreditSplit:        big.NewInt(0),
		GuildSplit:         big.NewInt(0),
		OtherSplit:         big.NewInt(0),
	}
	f := newFixture(t, 1_000, cfg)
	if err := f.bank.Transfer(creditDenom, holder, custody, big.NewInt(10)); err != nil {
		t.Fatalf("fund custody: %v", err)
	}
	if _, err := f.engine.NotifyPnL(lendingCaller, "weth", big.NewInt(10)); err != nil {
		t.Fatalf("profit: %v", err)
	}
	if got := f.multiplier(t); got.Cmp(wad) != 0 {
		t.Fatalf("multiplier moved to %s", got)
	}
}

func TestNotifyPnLRequiresLendingModule(t *testing.T) {
	f := newFixture(t, 1_000, allToHolders())
	_, err := f.engine.NotifyPnL(governorCaller, "weth", big.NewInt(-1))
	if !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if got := f.multiplier(t); got.Cmp(wad) != 0 {
		t.Fatalf("rejected call changed the multiplier")
	}
}

func TestWithdrawIsGated(t *testing.T) {
	f := newFixture(t, 1_000, allToHolders())
	if _, err := f.engine.Donate(common.Caller{Address: holder}, "weth", big.NewInt(40)); err != nil {
		t.Fatalf("donate: %v", err)
	}
	if _, err := f.engine.Withdraw(governorCaller, "weth", treasury, big.NewInt(10)); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := f.engine.Withdraw(withdrawer, "weth", treasury, big.NewInt(41)); !errors.Is(err, ErrBufferTooSmall) {
		t.Fatalf("expected buffer too small, got %v", err)
	}
	level, err := f.engine.Withdraw(withdrawer, "weth", treasury, big.NewInt(15))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if level.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("level = %s", level)
	}
	if bal, _ := f.bank.Balance(creditDenom, treasury); bal.Cmp(big.NewInt(15)) != 0 {
		t.Fatalf("treasury balance = %s", bal)
	}
}

func TestSetProfitSharingValidation(t *testing.T) {
	f := newFixture(t, 0, allToHolders())
	bad := SharingConfig{
		SurplusBufferSplit: wadFrac(50, 100),
		CreditSplit:        wadFrac(40, 100),
		GuildSplit:         big.NewInt(0),
		OtherSplit:         big.NewInt(0),
	}
	if err := f.engine.SetProfitSharing(governorCaller, bad); !errors.Is(err, common.ErrConfigInvalid) {
		t.Fatalf("expected config invalid, got %v", err)
	}
	noRecipient := SharingConfig{
		SurplusBufferSplit: big.NewInt(0),
		CreditSplit:        wadFrac(90, 100),
		GuildSplit:         big.NewInt(0),
		OtherSplit:         wadFrac(10, 100),
	}
	if err := f.engine.SetProfitSharing(governorCaller, noRecipient); !errors.Is(err, ErrMissingRecipient) {
		t.Fatalf("expected missing recipient, got %v", err)
	}
	noRecipient.OtherRecipient = treasury
	if err := f.engine.SetProfitSharing(lendingCaller, noRecipient); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := f.engine.SetProfitSharing(governorCaller, noRecipient); err != nil {
		t.Fatalf("set sharing: %v", err)
	}
	got, err := f.engine.ProfitSharing()
	if err != nil {
		t.Fatalf("sharing: %v", err)
	}
	if got.OtherRecipient != treasury || got.OtherSplit.Cmp(wadFrac(10, 100)) != 0 {
		t.Fatalf("unexpected sharing config %+v", got)
	}
	if err := f.engine.Init(allToHolders()); !errors.Is(err, ErrAlreadyInit) {
		t.Fatalf("expected already initialised, got %v", err)
	}
}
