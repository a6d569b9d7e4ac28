package core

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"creditguild/config"
	"creditguild/native/auction"
	"creditguild/native/common"
	"creditguild/native/lending"
	"creditguild/native/profit"
	"creditguild/native/ratelimit"
)

// InitGenesis seeds an empty database from a resolved genesis. Markets,
// gauges, rate limits, the auction schedule, profit sharing, roles, balances
// and pause flags are written in one transaction.
func (p *Protocol) InitGenesis(genesis *config.Resolved) error {
	if genesis == nil {
		return fmt.Errorf("%w: genesis is missing", common.ErrConfigInvalid)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	started := time.Now()
	txn := p.state.Begin()
	defer txn.Discard()

	exists, err := txn.KVGet([]byte(creditDenomKey), nil)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyInitialised
	}
	if err := txn.KVPut([]byte(creditDenomKey), genesis.CreditDenom); err != nil {
		return err
	}
	e := p.newEngines(txn, genesis.CreditDenom)

	if err := e.profit.Init(profit.SharingConfig{
		SurplusBufferSplit: genesis.SurplusBufferSplit,
		CreditSplit:        genesis.CreditSplit,
		GuildSplit:         genesis.GuildSplit,
		OtherSplit:         genesis.OtherSplit,
		OtherRecipient:     genesis.OtherRecipient,
	}); err != nil {
		return fmt.Errorf("profit sharing: %w", err)
	}
	if err := e.auction.InitParams(auction.Params{
		MidPoint: genesis.AuctionMidPoint,
		Duration: genesis.AuctionDuration,
	}); err != nil {
		return fmt.Errorf("auction: %w", err)
	}

	for _, m := range genesis.Markets {
		params := lending.MarketParams{
			Name:                        m.Name,
			CollateralDenom:             m.CollateralDenom,
			Authority:                   m.Authority,
			InterestRate:                m.InterestRate,
			OpeningFee:                  m.OpeningFee,
			MaxDebtPerCollateral:        m.MaxDebtPerCollateral,
			MinPartialRepayPercent:      m.MinPartialRepayPercent,
			MaxDelayBetweenPartialRepay: m.MaxDelayBetweenPartialRepay,
			HardCap:                     m.HardCap,
			MinBorrow:                   m.MinBorrow,
			GaugeWeightTolerance:        m.GaugeWeightTolerance,
		}
		if err := e.lending.CreateMarket(params); err != nil {
			return fmt.Errorf("market %s: %w", m.Name, err)
		}
		created, err := e.lending.Market(m.Name)
		if err != nil {
			return err
		}
		authority := created.Params.Authority
		err = e.limiter.Register(authority, m.RateLimitCapacity, m.RateLimitPerSecond, genesis.GenesisTime)
		if err != nil && !errors.Is(err, ratelimit.ErrAuthorityExists) {
			return fmt.Errorf("market %s rate limit: %w", m.Name, err)
		}
		if err := e.gauges.Put(m.Name, m.GaugeWeight, m.Active); err != nil {
			return fmt.Errorf("market %s gauge: %w", m.Name, err)
		}
	}

	for _, grant := range genesis.Roles {
		role, err := common.ParseRole(grant.Role)
		if err != nil {
			return err
		}
		if err := txn.SetRole(string(role), grant.Address[:]); err != nil {
			return err
		}
	}
	for _, balance := range genesis.Balances {
		if err := e.bank.Mint(balance.Denom, balance.Address, balance.Amount); err != nil {
			return fmt.Errorf("balance %s: %w", balance.Denom, err)
		}
	}
	pauses := map[string]bool{
		ModuleLending: genesis.Pauses.Lending,
		ModuleAuction: genesis.Pauses.Auction,
		ModuleProfit:  genesis.Pauses.Profit,
	}
	for module, paused := range pauses {
		if !paused {
			continue
		}
		if err := e.pauses.SetPaused(module, true); err != nil {
			return err
		}
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("commit genesis: %w", err)
	}
	p.creditDenom = genesis.CreditDenom
	p.publish(e.buf)
	p.metrics.SetMultiplier(wadOne())
	p.logger.Info("genesis applied",
		slog.String("creditDenom", genesis.CreditDenom),
		slog.Int("markets", len(genesis.Markets)),
		slog.Int("roles", len(genesis.Roles)),
		slog.Duration("took", time.Since(started)))
	return nil
}
