package profit

import "math/big"

// SharingConfig splits realized profit. Every split is a WAD fraction and the
// four splits sum to exactly one WAD.
type SharingConfig struct {
	SurplusBufferSplit *big.Int
	CreditSplit        *big.Int
	GuildSplit         *big.Int
	OtherSplit         *big.Int
	OtherRecipient     [20]byte
}

// Clone returns a deep copy of the configuration.
func (c SharingConfig) Clone() SharingConfig {
	return SharingConfig{
		SurplusBufferSplit: cloneBig(c.SurplusBufferSplit),
		CreditSplit:        cloneBig(c.CreditSplit),
		GuildSplit:         cloneBig(c.GuildSplit),
		OtherSplit:         cloneBig(c.OtherSplit),
		OtherRecipient:     c.OtherRecipient,
	}
}

// Validate checks the splits sum to one and that a recipient exists for the
// other share.
func (c SharingConfig) Validate() error {
	total := big.NewInt(0)
	for _, split := range []*big.Int{c.SurplusBufferSplit, c.CreditSplit, c.GuildSplit, c.OtherSplit} {
		if split == nil || split.Sign() < 0 {
			return ErrInvalidSplit
		}
		total.Add(total, split)
	}
	if total.Cmp(wad) != 0 {
		return ErrInvalidSplit
	}
	if c.OtherSplit.Sign() > 0 && c.OtherRecipient == ([20]byte{}) {
		return ErrMissingRecipient
	}
	return nil
}

// PnLOutcome reports how a profit or loss was absorbed.
type PnLOutcome struct {
	Market string
	Amount *big.Int

	// Loss path.
	MarketBufferDrawn *big.Int
	GlobalBufferDrawn *big.Int
	UnabsorbedLoss    *big.Int

	// Profit path.
	SurplusShare *big.Int
	CreditShare  *big.Int
	GuildShare   *big.Int
	OtherShare   *big.Int

	MultiplierBefore *big.Int
	MultiplierAfter  *big.Int
}

func newOutcome(market string, amount *big.Int, multiplier *big.Int) *PnLOutcome {
	return &PnLOutcome{
		Market:            market,
		Amount:            cloneBig(amount),
		MarketBufferDrawn: big.NewInt(0),
		GlobalBufferDrawn: big.NewInt(0),
		UnabsorbedLoss:    big.NewInt(0),
		SurplusShare:      big.NewInt(0),
		CreditShare:       big.NewInt(0),
		GuildShare:        big.NewInt(0),
		OtherShare:        big.NewInt(0),
		MultiplierBefore:  cloneBig(multiplier),
		MultiplierAfter:   cloneBig(multiplier),
	}
}

var wad = big.NewInt(1_000_000_000_000_000_000)

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

func splitOf(amount, split *big.Int) *big.Int {
	if split == nil || split.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, split)
	return out.Quo(out, wad)
}
