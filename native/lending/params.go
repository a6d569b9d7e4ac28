package lending

import (
	"fmt"
	"math/big"
	"strings"
)

// Hardcoded safety bounds for market parameters.
var (
	MaxInterestRate           = new(big.Int).Mul(big.NewInt(10), wad) // 1000% APR
	MaxOpeningFee             = new(big.Int).Quo(wad, big.NewInt(10)) // 10%
	MinGaugeWeightTolerance   = new(big.Int).Set(wad)
	MaxGaugeWeightTolerance   = new(big.Int).Mul(big.NewInt(10), wad)
	MaxPartialRepayPercent    = new(big.Int).Set(wad)
	MaxHardCap                = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	MaxDelayBetweenRepayments = uint64(10 * 365 * 24 * 60 * 60)
)

// MarketParams configure one collateral type. Fixed point values use WAD.
type MarketParams struct {
	Name            string
	CollateralDenom string
	// Authority names the rate limiter buffer charged on issuance.
	Authority                   string
	InterestRate                *big.Int
	OpeningFee                  *big.Int
	MaxDebtPerCollateral        *big.Int
	MinPartialRepayPercent      *big.Int
	MaxDelayBetweenPartialRepay uint64
	HardCap                     *big.Int
	MinBorrow                   *big.Int
	GaugeWeightTolerance        *big.Int
}

// Clone returns a deep copy of the parameters.
func (p MarketParams) Clone() MarketParams {
	clone := p
	clone.InterestRate = cloneBig(p.InterestRate)
	clone.OpeningFee = cloneBig(p.OpeningFee)
	clone.MaxDebtPerCollateral = cloneBig(p.MaxDebtPerCollateral)
	clone.MinPartialRepayPercent = cloneBig(p.MinPartialRepayPercent)
	clone.HardCap = cloneBig(p.HardCap)
	clone.MinBorrow = cloneBig(p.MinBorrow)
	clone.GaugeWeightTolerance = cloneBig(p.GaugeWeightTolerance)
	return clone
}

func configErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidParams}, args...)...)
}

func nonNegative(v *big.Int) bool {
	return v != nil && v.Sign() >= 0
}

// Normalize trims identifiers and lower-cases denominations.
func (p *MarketParams) Normalize() {
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	p.CollateralDenom = strings.ToLower(strings.TrimSpace(p.CollateralDenom))
	p.Authority = strings.ToLower(strings.TrimSpace(p.Authority))
	if p.Authority == "" && p.Name != "" {
		p.Authority = "market/" + p.Name
	}
}

// Validate enforces the hardcoded bounds.
func (p MarketParams) Validate() error {
	if p.Name == "" {
		return configErr("market name required")
	}
	if p.CollateralDenom == "" {
		return configErr("market %s: collateral denom required", p.Name)
	}
	if !nonNegative(p.InterestRate) || p.InterestRate.Cmp(MaxInterestRate) > 0 {
		return configErr("market %s: interest rate outside [0, %s]", p.Name, MaxInterestRate)
	}
	if !nonNegative(p.OpeningFee) || p.OpeningFee.Cmp(MaxOpeningFee) > 0 {
		return configErr("market %s: opening fee outside [0, %s]", p.Name, MaxOpeningFee)
	}
	if p.MaxDebtPerCollateral == nil || p.MaxDebtPerCollateral.Sign() <= 0 {
		return configErr("market %s: max debt per collateral must be positive", p.Name)
	}
	if !nonNegative(p.MinPartialRepayPercent) || p.MinPartialRepayPercent.Cmp(MaxPartialRepayPercent) > 0 {
		return configErr("market %s: min partial repay percent outside [0, 1]", p.Name)
	}
	if p.MaxDelayBetweenPartialRepay > MaxDelayBetweenRepayments {
		return configErr("market %s: partial repay delay too long", p.Name)
	}
	if err := validateHardCap(p.HardCap); err != nil {
		return fmt.Errorf("market %s: %w", p.Name, err)
	}
	if err := validateMinBorrow(p.MinBorrow); err != nil {
		return fmt.Errorf("market %s: %w", p.Name, err)
	}
	if err := validateTolerance(p.GaugeWeightTolerance); err != nil {
		return fmt.Errorf("market %s: %w", p.Name, err)
	}
	return nil
}

func validateHardCap(v *big.Int) error {
	if !nonNegative(v) || v.Cmp(MaxHardCap) > 0 {
		return configErr("hard cap outside [0, %s]", MaxHardCap)
	}
	return nil
}

func validateMinBorrow(v *big.Int) error {
	if !nonNegative(v) || v.Cmp(MaxHardCap) > 0 {
		return configErr("min borrow outside [0, %s]", MaxHardCap)
	}
	return nil
}

func validateTolerance(v *big.Int) error {
	if v == nil || v.Cmp(MinGaugeWeightTolerance) < 0 || v.Cmp(MaxGaugeWeightTolerance) > 0 {
		return configErr("gauge weight tolerance outside [%s, %s]", MinGaugeWeightTolerance, MaxGaugeWeightTolerance)
	}
	return nil
}
