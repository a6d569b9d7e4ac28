package auction

import (
	"math/big"
)

// MaxDuration bounds governance changes to the auction length.
const MaxDuration = uint64(30 * 24 * 60 * 60)

// Params configure the two-phase schedule. MidPoint is the second at which the
// full collateral is first offered; Duration is the second at which the credit
// asked reaches zero.
type Params struct {
	MidPoint uint64
	Duration uint64
}

// Validate requires 0 < MidPoint < Duration <= MaxDuration.
func (p Params) Validate() error {
	if p.MidPoint == 0 || p.MidPoint >= p.Duration || p.Duration > MaxDuration {
		return ErrInvalidParams
	}
	return nil
}

// Auction is the liquidation of one called loan. The schedule parameters are
// copied at start so later governance changes leave running auctions alone.
type Auction struct {
	LoanID           uint64
	Market           string
	StartTime        uint64
	CallDebt         *big.Int
	CollateralAmount *big.Int
	MidPoint         uint64
	Duration         uint64
}

// Clone returns a deep copy of the auction.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	clone := *a
	clone.CallDebt = cloneBig(a.CallDebt)
	clone.CollateralAmount = cloneBig(a.CollateralAmount)
	return &clone
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// Quote returns the collateral offered and the credit asked at time now.
//
//	elapsed <= M:      (C * elapsed / M, D)
//	M < elapsed < T:   (C, D - D * (elapsed - M) / (T - M))
//	elapsed >= T:      (C, 0)
func (a *Auction) Quote(now uint64) (collateralOut, creditIn *big.Int) {
	var elapsed uint64
	if now > a.StartTime {
		elapsed = now - a.StartTime
	}
	collateral := cloneBig(a.CollateralAmount)
	debt := cloneBig(a.CallDebt)
	switch {
	case elapsed <= a.MidPoint:
		out := new(big.Int).Mul(collateral, new(big.Int).SetUint64(elapsed))
		out.Quo(out, new(big.Int).SetUint64(a.MidPoint))
		return out, debt
	case elapsed < a.Duration:
		decay := new(big.Int).Mul(debt, new(big.Int).SetUint64(elapsed-a.MidPoint))
		decay.Quo(decay, new(big.Int).SetUint64(a.Duration-a.MidPoint))
		return collateral, debt.Sub(debt, decay)
	default:
		return collateral, big.NewInt(0)
	}
}
