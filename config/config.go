package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultCreditDenom names the credit token when the genesis leaves it empty.
const DefaultCreditDenom = "credit"

// Load reads the protocol genesis from path. A missing file is replaced by a
// default single-market genesis written to the same path.
func Load(path string) (*Genesis, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis path required")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	genesis := &Genesis{}
	meta, err := toml.DecodeFile(path, genesis)
	if err != nil {
		return nil, fmt.Errorf("decode genesis %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("genesis %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	genesis.normalize()
	return genesis, nil
}

// Parse decodes a genesis document held in memory.
func Parse(data string) (*Genesis, error) {
	genesis := &Genesis{}
	if _, err := toml.Decode(data, genesis); err != nil {
		return nil, err
	}
	genesis.normalize()
	return genesis, nil
}

func (g *Genesis) normalize() {
	g.CreditDenom = strings.ToLower(strings.TrimSpace(g.CreditDenom))
	if g.CreditDenom == "" {
		g.CreditDenom = DefaultCreditDenom
	}
	for i := range g.Markets {
		m := &g.Markets[i]
		m.Name = strings.ToLower(strings.TrimSpace(m.Name))
		m.CollateralDenom = strings.ToLower(strings.TrimSpace(m.CollateralDenom))
		if m.CollateralDenom == "" {
			m.CollateralDenom = m.Name
		}
		m.Authority = strings.ToLower(strings.TrimSpace(m.Authority))
	}
	for i := range g.Roles {
		g.Roles[i].Role = strings.ToLower(strings.TrimSpace(g.Roles[i].Role))
		g.Roles[i].Address = strings.TrimSpace(g.Roles[i].Address)
	}
	for i := range g.Balances {
		g.Balances[i].Denom = strings.ToLower(strings.TrimSpace(g.Balances[i].Denom))
		g.Balances[i].Address = strings.TrimSpace(g.Balances[i].Address)
	}
}

// Default returns a development genesis with a single WETH market.
func Default() *Genesis {
	return &Genesis{
		CreditDenom: DefaultCreditDenom,
		Auction:     AuctionConfig{MidPoint: "650s", Duration: "30m"},
		ProfitSharing: ProfitSharingConfig{
			SurplusBufferSplit: "0.1",
			CreditSplit:        "0.9",
			GuildSplit:         "0",
			OtherSplit:         "0",
		},
		Markets: []MarketConfig{{
			Name:                        "weth",
			CollateralDenom:             "weth",
			InterestRate:                "0.04",
			OpeningFee:                  "0",
			MaxDebtPerCollateral:        "2000",
			MinPartialRepayPercent:      "0",
			MaxDelayBetweenPartialRepay: "0s",
			HardCap:                     "2000000",
			MinBorrow:                   "100",
			GaugeWeightTolerance:        "1.2",
			GaugeWeight:                 "1",
			RateLimitCapacity:           "1000000",
			RateLimitPerSecond:          "10",
		}},
	}
}

// createDefault writes Default to path and returns it.
func createDefault(path string) (*Genesis, error) {
	genesis := Default()
	if err := persist(path, genesis); err != nil {
		return nil, err
	}
	return genesis, nil
}

func persist(path string, genesis *Genesis) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(genesis)
}
