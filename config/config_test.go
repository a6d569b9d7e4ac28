package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"creditguild/crypto"
)

var (
	governorBytes  = [20]byte{0x42, 19: 0x24}
	governorString = crypto.FormatAddress(governorBytes)
)

func TestParseWad(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1", "1000000000000000000"},
		{"0.05", "50000000000000000"},
		{".5", "500000000000000000"},
		{"1_000", "1000000000000000000000"},
		{"0.000000000000000001", "1"},
	}
	for _, tc := range cases {
		got, err := ParseWad(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got.String(), tc.in)
	}
	for _, bad := range []string{"", "-1", "1.", "1.2.3", "abc", "0.0000000000000000001"} {
		_, err := ParseWad(bad)
		require.Error(t, err, bad)
	}
}

func TestFormatWadRoundTrip(t *testing.T) {
	for _, in := range []string{"0", "1", "0.05", "1.2", "123456.000001"} {
		v, err := ParseWad(in)
		require.NoError(t, err)
		require.Equal(t, in, FormatWad(v))
	}
	require.Equal(t, "-0.5", FormatWad(big.NewInt(-500000000000000000)))
}

func TestParseSeconds(t *testing.T) {
	secs, err := ParseSeconds("30m")
	require.NoError(t, err)
	require.Equal(t, uint64(1800), secs)
	_, err = ParseSeconds("1500ms")
	require.Error(t, err)
	_, err = ParseSeconds("-1s")
	require.Error(t, err)
}

func TestLoadResolvesGenesis(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.toml")
	contents := fmt.Sprintf(`CreditDenom = "gUSDC"
GenesisTime = 1700000000

[Auction]
MidPoint = "10m"
Duration = "20m"

[ProfitSharing]
SurplusBufferSplit = "0.1"
CreditSplit = "0.8"
GuildSplit = "0.1"

[[Market]]
Name = "WETH"
InterestRate = "0.05"
MaxDebtPerCollateral = "2000"
MaxDelayBetweenPartialRepay = "720h"
MinPartialRepayPercent = "0.1"
HardCap = "1_000_000"
MinBorrow = "100"
GaugeWeight = "3"
RateLimitCapacity = "50000"
RateLimitPerSecond = "1.5"

[[Role]]
Role = " Governor "
Address = "%s"

[[Balance]]
Address = "%s"
Denom = "WETH"
Amount = "10"
`, governorString, governorString)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	genesis, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "gusdc", genesis.CreditDenom)

	resolved, err := genesis.Resolve()
	require.NoError(t, err)
	require.Equal(t, uint64(600), resolved.AuctionMidPoint)
	require.Equal(t, uint64(1200), resolved.AuctionDuration)
	require.Len(t, resolved.Markets, 1)

	market := resolved.Markets[0]
	require.Equal(t, "weth", market.Name)
	require.Equal(t, "weth", market.CollateralDenom)
	require.True(t, market.Active)
	require.Equal(t, uint64(720*3600), market.MaxDelayBetweenPartialRepay)
	require.Equal(t, "50000000000000000", market.InterestRate.String())
	require.Equal(t, "0", market.OpeningFee.String())
	require.Equal(t, 0, market.GaugeWeightTolerance.Cmp(wad))
	require.Equal(t, "1500000000000000000", market.RateLimitPerSecond.String())

	require.Equal(t, []Role{{Role: "governor", Address: governorBytes}}, resolved.Roles)
	require.Equal(t, "weth", resolved.Balances[0].Denom)
	require.Equal(t, "10000000000000000000", resolved.Balances[0].Amount.String())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.toml")
	require.NoError(t, os.WriteFile(path, []byte("CreditDenom = \"credit\"\nFlashLoans = true\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "FlashLoans"))
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "genesis.toml")
	genesis, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, genesis.Validate())

	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, genesis.Markets, reloaded.Markets)
}

func TestResolveRejectsStructuralErrors(t *testing.T) {
	cases := map[string]func(g *Genesis){
		"splits do not sum to one": func(g *Genesis) { g.ProfitSharing.CreditSplit = "0.5" },
		"midpoint after duration":  func(g *Genesis) { g.Auction.MidPoint = "1h" },
		"duplicate market":         func(g *Genesis) { g.Markets = append(g.Markets, g.Markets[0]) },
		"credit as collateral":     func(g *Genesis) { g.Markets[0].CollateralDenom = DefaultCreditDenom },
		"missing hard cap":         func(g *Genesis) { g.Markets[0].HardCap = "" },
		"bad role address":         func(g *Genesis) { g.Roles = []RoleConfig{{Role: "governor", Address: "nope"}} },
		"foreign prefix": func(g *Genesis) {
			foreign := crypto.MustNewAddress("xyz", governorBytes[:]).String()
			g.Balances = []BalanceConfig{{Address: foreign, Denom: "weth", Amount: "1"}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			g := Default()
			mutate(g)
			require.Error(t, g.Validate())
		})
	}
}

func TestParseInMemory(t *testing.T) {
	g, err := Parse("[Auction]\nMidPoint = \"1m\"\nDuration = \"2m\"\n[ProfitSharing]\nCreditSplit = \"1\"\n")
	require.NoError(t, err)
	require.Equal(t, DefaultCreditDenom, g.CreditDenom)
	require.NoError(t, g.Validate())
}
