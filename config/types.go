package config

// Genesis is the TOML document that seeds a fresh protocol state. Fixed-point
// values are decimal strings ("0.05", "1.2", "250000") and are scaled by 1e18
// when resolved; durations use Go syntax ("30m", "720h").
type Genesis struct {
	CreditDenom   string              `toml:"CreditDenom"`
	GenesisTime   uint64              `toml:"GenesisTime"`
	Auction       AuctionConfig       `toml:"Auction"`
	ProfitSharing ProfitSharingConfig `toml:"ProfitSharing"`
	Pauses        PauseConfig         `toml:"Pauses"`
	Markets       []MarketConfig      `toml:"Market"`
	Roles         []RoleConfig        `toml:"Role"`
	Balances      []BalanceConfig     `toml:"Balance"`
}

// AuctionConfig holds the two-phase Dutch auction schedule.
type AuctionConfig struct {
	MidPoint string `toml:"MidPoint"`
	Duration string `toml:"Duration"`
}

// ProfitSharingConfig splits realized profit. The four splits must add up to 1.
type ProfitSharingConfig struct {
	SurplusBufferSplit string `toml:"SurplusBufferSplit"`
	CreditSplit        string `toml:"CreditSplit"`
	GuildSplit         string `toml:"GuildSplit"`
	OtherSplit         string `toml:"OtherSplit"`
	OtherRecipient     string `toml:"OtherRecipient"`
}

// PauseConfig lists modules that start paused.
type PauseConfig struct {
	Lending bool `toml:"Lending"`
	Auction bool `toml:"Auction"`
	Profit  bool `toml:"Profit"`
}

// MarketConfig describes one lending market, its gauge and its issuance
// rate limit.
type MarketConfig struct {
	Name                        string `toml:"Name"`
	CollateralDenom             string `toml:"CollateralDenom"`
	Authority                   string `toml:"Authority"`
	InterestRate                string `toml:"InterestRate"`
	OpeningFee                  string `toml:"OpeningFee"`
	MaxDebtPerCollateral        string `toml:"MaxDebtPerCollateral"`
	MinPartialRepayPercent      string `toml:"MinPartialRepayPercent"`
	MaxDelayBetweenPartialRepay string `toml:"MaxDelayBetweenPartialRepay"`
	HardCap                     string `toml:"HardCap"`
	MinBorrow                   string `toml:"MinBorrow"`
	GaugeWeightTolerance        string `toml:"GaugeWeightTolerance"`
	GaugeWeight                 string `toml:"GaugeWeight"`
	Inactive                    bool   `toml:"Inactive"`
	RateLimitCapacity           string `toml:"RateLimitCapacity"`
	RateLimitPerSecond          string `toml:"RateLimitPerSecond"`
}

// RoleConfig grants a role to a bech32 address.
type RoleConfig struct {
	Role    string `toml:"Role"`
	Address string `toml:"Address"`
}

// BalanceConfig mints an initial balance.
type BalanceConfig struct {
	Address string `toml:"Address"`
	Denom   string `toml:"Denom"`
	Amount  string `toml:"Amount"`
}
