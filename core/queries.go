package core

import (
	"math/big"

	"creditguild/native/auction"
	"creditguild/native/lending"
	"creditguild/native/profit"
	"creditguild/native/ratelimit"
)

var wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func wadOne() *big.Int { return new(big.Int).Set(wad) }

// CreditDenom returns the denomination of the credit token.
func (p *Protocol) CreditDenom() (string, error) {
	var denom string
	err := p.view(func(*engines) error {
		denom = p.creditDenom
		return nil
	})
	return denom, err
}

// Loan returns a loan record.
func (p *Protocol) Loan(id uint64) (*lending.Loan, error) {
	var loan *lending.Loan
	err := p.view(func(e *engines) error {
		var err error
		loan, err = e.lending.Loan(id)
		return err
	})
	return loan, err
}

// LoansOf lists the loan ids opened by borrower.
func (p *Protocol) LoansOf(borrower [20]byte) ([]uint64, error) {
	var ids []uint64
	err := p.view(func(e *engines) error {
		var err error
		ids, err = e.lending.LoansOf(borrower)
		return err
	})
	return ids, err
}

// LoanDebt returns the live debt of a loan at now.
func (p *Protocol) LoanDebt(id uint64, now uint64) (*big.Int, error) {
	var debt *big.Int
	err := p.view(func(e *engines) error {
		var err error
		debt, err = e.lending.LoanDebt(id, now)
		return err
	})
	return debt, err
}

// PartialRepayDelayPassed reports whether a loan missed its repayment deadline.
func (p *Protocol) PartialRepayDelayPassed(id uint64, now uint64) (bool, error) {
	var passed bool
	err := p.view(func(e *engines) error {
		var err error
		passed, err = e.lending.PartialRepayDelayPassed(id, now)
		return err
	})
	return passed, err
}

// Market returns a market with its live issuance.
func (p *Protocol) Market(name string) (*lending.Market, error) {
	var market *lending.Market
	err := p.view(func(e *engines) error {
		var err error
		market, err = e.lending.Market(name)
		return err
	})
	return market, err
}

// Markets lists every market.
func (p *Protocol) Markets() ([]*lending.Market, error) {
	var markets []*lending.Market
	err := p.view(func(e *engines) error {
		var err error
		markets, err = e.lending.Markets()
		return err
	})
	return markets, err
}

// DebtCeiling returns the current issuance ceiling of a market.
func (p *Protocol) DebtCeiling(market string) (*big.Int, error) {
	var ceiling *big.Int
	err := p.view(func(e *engines) error {
		var err error
		ceiling, err = e.lending.DebtCeiling(market, big.NewInt(0))
		return err
	})
	return ceiling, err
}

// TotalIssuance returns the outstanding borrowed amount.
func (p *Protocol) TotalIssuance() (*big.Int, error) {
	var total *big.Int
	err := p.view(func(e *engines) error {
		var err error
		total, err = e.lending.TotalIssuance()
		return err
	})
	return total, err
}

// Auction returns the open auction for a loan.
func (p *Protocol) Auction(loanID uint64) (*auction.Auction, error) {
	var a *auction.Auction
	err := p.view(func(e *engines) error {
		var err error
		a, err = e.auction.Auction(loanID)
		return err
	})
	return a, err
}

// AuctionsInProgress counts open auctions.
func (p *Protocol) AuctionsInProgress() (uint64, error) {
	var count uint64
	err := p.view(func(e *engines) error {
		var err error
		count, err = e.auction.AuctionsInProgress()
		return err
	})
	return count, err
}

// GetBidDetail returns the quote of an auction at now.
func (p *Protocol) GetBidDetail(loanID uint64, now uint64) (collateralOut, creditIn *big.Int, err error) {
	err = p.view(func(e *engines) error {
		var err error
		collateralOut, creditIn, err = e.auction.GetBidDetail(loanID, now)
		return err
	})
	return collateralOut, creditIn, err
}

// AuctionParams returns the schedule applied to new auctions.
func (p *Protocol) AuctionParams() (auction.Params, error) {
	var params auction.Params
	err := p.view(func(e *engines) error {
		var err error
		params, err = e.auction.Params()
		return err
	})
	return params, err
}

// Multiplier returns the credit multiplier.
func (p *Protocol) Multiplier() (*big.Int, error) {
	var mult *big.Int
	err := p.view(func(e *engines) error {
		var err error
		mult, err = e.profit.Multiplier()
		return err
	})
	return mult, err
}

// SurplusBuffer returns a buffer level. An empty market is the global buffer.
func (p *Protocol) SurplusBuffer(market string) (*big.Int, error) {
	var level *big.Int
	err := p.view(func(e *engines) error {
		var err error
		level, err = e.profit.SurplusBuffer(market)
		return err
	})
	return level, err
}

// GuildRewards returns the unclaimed guild share of a market.
func (p *Protocol) GuildRewards(market string) (*big.Int, error) {
	var accrued *big.Int
	err := p.view(func(e *engines) error {
		var err error
		accrued, err = e.profit.GuildRewards(market)
		return err
	})
	return accrued, err
}

// ProfitSharing returns the profit split.
func (p *Protocol) ProfitSharing() (profit.SharingConfig, error) {
	var cfg profit.SharingConfig
	err := p.view(func(e *engines) error {
		var err error
		cfg, err = e.profit.ProfitSharing()
		return err
	})
	return cfg, err
}

// RateLimit returns an authority's buffer and its level at now.
func (p *Protocol) RateLimit(authority string, now uint64) (*ratelimit.Buffer, *big.Int, error) {
	var (
		buf   *ratelimit.Buffer
		level *big.Int
	)
	err := p.view(func(e *engines) error {
		var err error
		if buf, err = e.limiter.Buffer(authority); err != nil {
			return err
		}
		level = buf.Level(now)
		return nil
	})
	return buf, level, err
}

// Balance returns the balance of addr in denom.
func (p *Protocol) Balance(denom string, addr [20]byte) (*big.Int, error) {
	var balance *big.Int
	err := p.view(func(e *engines) error {
		var err error
		balance, err = e.bank.Balance(denom, addr)
		return err
	})
	return balance, err
}

// TotalSupply returns the supply of denom.
func (p *Protocol) TotalSupply(denom string) (*big.Int, error) {
	var supply *big.Int
	err := p.view(func(e *engines) error {
		var err error
		supply, err = e.bank.TotalSupply(denom)
		return err
	})
	return supply, err
}

// IsPaused reports a module's pause flag.
func (p *Protocol) IsPaused(module string) (bool, error) {
	var paused bool
	err := p.view(func(e *engines) error {
		paused = e.pauses.IsPaused(module)
		return nil
	})
	return paused, err
}

// Roles returns the roles held by addr.
func (p *Protocol) Roles(addr [20]byte) ([]string, error) {
	var roles []string
	err := p.view(func(e *engines) error {
		for _, role := range callerFor(e.txn, addr).Roles {
			roles = append(roles, string(role))
		}
		return nil
	})
	return roles, err
}
