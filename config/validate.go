package config

import (
	"fmt"
	"math/big"

	"creditguild/crypto"
)

// Market is a MarketConfig with every value parsed.
type Market struct {
	Name                        string
	CollateralDenom             string
	Authority                   string
	InterestRate                *big.Int
	OpeningFee                  *big.Int
	MaxDebtPerCollateral        *big.Int
	MinPartialRepayPercent      *big.Int
	MaxDelayBetweenPartialRepay uint64
	HardCap                     *big.Int
	MinBorrow                   *big.Int
	GaugeWeightTolerance        *big.Int
	GaugeWeight                 *big.Int
	Active                      bool
	RateLimitCapacity           *big.Int
	RateLimitPerSecond          *big.Int
}

// Role is a parsed role grant.
type Role struct {
	Role    string
	Address [20]byte
}

// Balance is a parsed initial balance.
type Balance struct {
	Address [20]byte
	Denom   string
	Amount  *big.Int
}

// Resolved is the genesis with decimals scaled, durations converted and
// addresses decoded. Parameter bounds are enforced by the engines when the
// genesis is applied.
type Resolved struct {
	CreditDenom        string
	GenesisTime        uint64
	AuctionMidPoint    uint64
	AuctionDuration    uint64
	SurplusBufferSplit *big.Int
	CreditSplit        *big.Int
	GuildSplit         *big.Int
	OtherSplit         *big.Int
	OtherRecipient     [20]byte
	Pauses             PauseConfig
	Markets            []Market
	Roles              []Role
	Balances           []Balance
}

// Validate resolves the genesis and reports the first structural error.
func (g *Genesis) Validate() error {
	_, err := g.Resolve()
	return err
}

// Resolve parses every value of the genesis.
func (g *Genesis) Resolve() (*Resolved, error) {
	if g == nil {
		return nil, fmt.Errorf("genesis is missing")
	}
	out := &Resolved{CreditDenom: g.CreditDenom, GenesisTime: g.GenesisTime, Pauses: g.Pauses}
	if out.CreditDenom == "" {
		out.CreditDenom = DefaultCreditDenom
	}

	var err error
	if out.AuctionMidPoint, err = ParseSeconds(g.Auction.MidPoint); err != nil {
		return nil, fmt.Errorf("auction.MidPoint: %w", err)
	}
	if out.AuctionDuration, err = ParseSeconds(g.Auction.Duration); err != nil {
		return nil, fmt.Errorf("auction.Duration: %w", err)
	}
	if out.AuctionMidPoint == 0 || out.AuctionMidPoint >= out.AuctionDuration {
		return nil, fmt.Errorf("auction: midpoint must be positive and below duration")
	}

	if err := g.ProfitSharing.resolve(out); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(g.Markets))
	for i, m := range g.Markets {
		if m.Name == "" {
			return nil, fmt.Errorf("market[%d]: name required", i)
		}
		if _, dup := seen[m.Name]; dup {
			return nil, fmt.Errorf("market %s: declared twice", m.Name)
		}
		seen[m.Name] = struct{}{}
		if m.CollateralDenom == out.CreditDenom {
			return nil, fmt.Errorf("market %s: collateral cannot be the credit token", m.Name)
		}
		resolved, err := m.resolve()
		if err != nil {
			return nil, fmt.Errorf("market %s: %w", m.Name, err)
		}
		out.Markets = append(out.Markets, resolved)
	}

	for i, r := range g.Roles {
		if r.Role == "" {
			return nil, fmt.Errorf("role[%d]: role required", i)
		}
		addr, err := crypto.ParseAddress(r.Address)
		if err != nil {
			return nil, fmt.Errorf("role[%d] %s: %w", i, r.Role, err)
		}
		out.Roles = append(out.Roles, Role{Role: r.Role, Address: addr})
	}

	for i, b := range g.Balances {
		if b.Denom == "" {
			return nil, fmt.Errorf("balance[%d]: denom required", i)
		}
		addr, err := crypto.ParseAddress(b.Address)
		if err != nil {
			return nil, fmt.Errorf("balance[%d]: %w", i, err)
		}
		amount, err := ParseWad(b.Amount)
		if err != nil {
			return nil, fmt.Errorf("balance[%d]: %w", i, err)
		}
		out.Balances = append(out.Balances, Balance{Address: addr, Denom: b.Denom, Amount: amount})
	}
	return out, nil
}

func (p ProfitSharingConfig) resolve(out *Resolved) error {
	zero := big.NewInt(0)
	var err error
	if out.SurplusBufferSplit, err = parseOptionalWad(p.SurplusBufferSplit, zero); err != nil {
		return fmt.Errorf("profitSharing.SurplusBufferSplit: %w", err)
	}
	if out.CreditSplit, err = parseOptionalWad(p.CreditSplit, zero); err != nil {
		return fmt.Errorf("profitSharing.CreditSplit: %w", err)
	}
	if out.GuildSplit, err = parseOptionalWad(p.GuildSplit, zero); err != nil {
		return fmt.Errorf("profitSharing.GuildSplit: %w", err)
	}
	if out.OtherSplit, err = parseOptionalWad(p.OtherSplit, zero); err != nil {
		return fmt.Errorf("profitSharing.OtherSplit: %w", err)
	}
	sum := new(big.Int).Add(out.SurplusBufferSplit, out.CreditSplit)
	sum.Add(sum, out.GuildSplit)
	sum.Add(sum, out.OtherSplit)
	if sum.Cmp(wad) != 0 {
		return fmt.Errorf("profitSharing: splits add up to %s, want 1", FormatWad(sum))
	}
	if p.OtherRecipient != "" {
		addr, err := crypto.ParseAddress(p.OtherRecipient)
		if err != nil {
			return fmt.Errorf("profitSharing.OtherRecipient: %w", err)
		}
		out.OtherRecipient = addr
	}
	return nil
}

func (m MarketConfig) resolve() (Market, error) {
	out := Market{
		Name:            m.Name,
		CollateralDenom: m.CollateralDenom,
		Authority:       m.Authority,
		Active:          !m.Inactive,
	}
	zero := big.NewInt(0)
	fields := []struct {
		name     string
		raw      string
		fallback *big.Int
		dst      **big.Int
	}{
		{"InterestRate", m.InterestRate, zero, &out.InterestRate},
		{"OpeningFee", m.OpeningFee, zero, &out.OpeningFee},
		{"MaxDebtPerCollateral", m.MaxDebtPerCollateral, nil, &out.MaxDebtPerCollateral},
		{"MinPartialRepayPercent", m.MinPartialRepayPercent, zero, &out.MinPartialRepayPercent},
		{"HardCap", m.HardCap, nil, &out.HardCap},
		{"MinBorrow", m.MinBorrow, zero, &out.MinBorrow},
		{"GaugeWeightTolerance", m.GaugeWeightTolerance, wad, &out.GaugeWeightTolerance},
		{"GaugeWeight", m.GaugeWeight, nil, &out.GaugeWeight},
		{"RateLimitCapacity", m.RateLimitCapacity, nil, &out.RateLimitCapacity},
		{"RateLimitPerSecond", m.RateLimitPerSecond, zero, &out.RateLimitPerSecond},
	}
	for _, f := range fields {
		var (
			v   *big.Int
			err error
		)
		if f.fallback == nil {
			v, err = ParseWad(f.raw)
		} else {
			v, err = parseOptionalWad(f.raw, f.fallback)
		}
		if err != nil {
			return Market{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	delay, err := ParseSeconds(m.MaxDelayBetweenPartialRepay)
	if err != nil {
		return Market{}, fmt.Errorf("MaxDelayBetweenPartialRepay: %w", err)
	}
	out.MaxDelayBetweenPartialRepay = delay
	return out, nil
}
