package events

import (
	"math/big"

	"creditguild/core/types"
)

const (
	// TypePnL is emitted for every profit or loss report.
	TypePnL = "profit.pnl"
	// TypeMultiplierUpdated is emitted whenever the credit multiplier moves.
	TypeMultiplierUpdated = "profit.multiplier_updated"
	// TypeSurplusBufferUpdated is emitted when a surplus buffer changes.
	TypeSurplusBufferUpdated = "profit.surplus_buffer_updated"
	// TypeGuildRewardsClaimed is emitted when accrued guild rewards are paid.
	TypeGuildRewardsClaimed = "profit.guild_rewards_claimed"
	// TypeProfitSharingUpdated is emitted when the split changes.
	TypeProfitSharingUpdated = "profit.sharing_updated"

	// BufferReasonDonate marks a donation into a buffer.
	BufferReasonDonate = "donate"
	// BufferReasonWithdraw marks an authorized withdrawal.
	BufferReasonWithdraw = "withdraw"
	// BufferReasonProfit marks the surplus buffer share of a profit.
	BufferReasonProfit = "profit"
	// BufferReasonLoss marks a buffer drawn down by a loss.
	BufferReasonLoss = "loss"
)

type PnL struct {
	Market string
	Amount *big.Int
}

func (PnL) EventType() string { return TypePnL }

func (e PnL) Event() *types.Event {
	return &types.Event{
		Type: TypePnL,
		Attributes: map[string]string{
			"market": e.Market,
			"amount": amount(e.Amount),
		},
	}
}

type MultiplierUpdated struct {
	Previous *big.Int
	Current  *big.Int
}

func (MultiplierUpdated) EventType() string { return TypeMultiplierUpdated }

func (e MultiplierUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeMultiplierUpdated,
		Attributes: map[string]string{
			"previous": amount(e.Previous),
			"current":  amount(e.Current),
		},
	}
}

// SurplusBufferUpdated describes a buffer movement. An empty Market denotes the
// global buffer.
type SurplusBufferUpdated struct {
	Market string
	Reason string
	Delta  *big.Int
	Level  *big.Int
}

func (SurplusBufferUpdated) EventType() string { return TypeSurplusBufferUpdated }

func (e SurplusBufferUpdated) Event() *types.Event {
	market := e.Market
	if market == "" {
		market = "global"
	}
	return &types.Event{
		Type: TypeSurplusBufferUpdated,
		Attributes: map[string]string{
			"market": market,
			"reason": e.Reason,
			"delta":  amount(e.Delta),
			"level":  amount(e.Level),
		},
	}
}

type GuildRewardsClaimed struct {
	Market    string
	Recipient [20]byte
	Amount    *big.Int
}

func (GuildRewardsClaimed) EventType() string { return TypeGuildRewardsClaimed }

func (e GuildRewardsClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeGuildRewardsClaimed,
		Attributes: map[string]string{
			"market":    e.Market,
			"recipient": address(e.Recipient),
			"amount":    amount(e.Amount),
		},
	}
}

type ProfitSharingUpdated struct {
	SurplusBufferSplit *big.Int
	CreditSplit        *big.Int
	GuildSplit         *big.Int
	OtherSplit         *big.Int
	OtherRecipient     [20]byte
}

func (ProfitSharingUpdated) EventType() string { return TypeProfitSharingUpdated }

func (e ProfitSharingUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeProfitSharingUpdated,
		Attributes: map[string]string{
			"surplusBufferSplit": amount(e.SurplusBufferSplit),
			"creditSplit":        amount(e.CreditSplit),
			"guildSplit":         amount(e.GuildSplit),
			"otherSplit":         amount(e.OtherSplit),
			"otherRecipient":     address(e.OtherRecipient),
		},
	}
}
