package lending

import "math/big"

// accruedInterest returns borrowAmount * rate * elapsed / YEAR / WAD, the simple
// interest owed for the period at an annual WAD rate.
func accruedInterest(borrowAmount, rate *big.Int, elapsed uint64) *big.Int {
	if borrowAmount == nil || borrowAmount.Sign() == 0 || rate == nil || rate.Sign() == 0 || elapsed == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(borrowAmount, rate)
	scaled.Mul(scaled, new(big.Int).SetUint64(elapsed))
	scaled.Quo(scaled, big.NewInt(secondsPerYear))
	return scaled.Quo(scaled, wad)
}

// openingFee returns the one-off fee charged on the borrowed amount.
func openingFee(borrowAmount, fee *big.Int) *big.Int {
	if fee == nil || fee.Sign() == 0 {
		return big.NewInt(0)
	}
	return wadMul(borrowAmount, fee)
}

// normalizeToMultiplier converts an amount expressed at borrowMultiplier into
// credit units at the current multiplier. A fall of the multiplier makes the
// same obligation cost more credit units.
func normalizeToMultiplier(amount, borrowMultiplier, current *big.Int) *big.Int {
	return mulDiv(amount, borrowMultiplier, current)
}

// loanDebt computes the live debt of an active loan at time now, in credit
// units at the current multiplier.
func loanDebt(loan *Loan, params *MarketParams, current *big.Int, now uint64) *big.Int {
	if loan == nil {
		return big.NewInt(0)
	}
	switch loan.Status {
	case LoanStatusClosed:
		return big.NewInt(0)
	case LoanStatusCalled:
		return cloneBig(loan.CallDebt)
	}
	if params == nil {
		return big.NewInt(0)
	}
	var elapsed uint64
	if now > loan.OpenTime {
		elapsed = now - loan.OpenTime
	}
	debt := cloneBig(loan.BorrowAmount)
	debt.Add(debt, accruedInterest(loan.BorrowAmount, params.InterestRate, elapsed))
	debt.Add(debt, openingFee(loan.BorrowAmount, params.OpeningFee))
	return normalizeToMultiplier(debt, loan.BorrowMultiplier, current)
}

// loanPrincipal is the borrowed amount expressed at the current multiplier.
func loanPrincipal(loan *Loan, current *big.Int) *big.Int {
	return normalizeToMultiplier(loan.BorrowAmount, loan.BorrowMultiplier, current)
}

// debtCeiling derives the market's issuance ceiling from gauge weights:
// (totalIssuance + extra) * weight * tolerance / totalWeight / WAD.
func debtCeiling(totalIssuance, extra, weight, totalWeight, tolerance *big.Int) *big.Int {
	if weight == nil || weight.Sign() == 0 || totalWeight == nil || totalWeight.Sign() == 0 {
		return big.NewInt(0)
	}
	base := new(big.Int).Add(cloneBig(totalIssuance), cloneBig(extra))
	base.Mul(base, weight)
	base.Mul(base, cloneBig(tolerance))
	base.Quo(base, totalWeight)
	return base.Quo(base, wad)
}
