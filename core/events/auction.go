package events

import (
	"math/big"
	"strconv"

	"creditguild/core/types"
)

const (
	// TypeAuctionStarted is emitted when a called loan enters liquidation.
	TypeAuctionStarted = "auction.started"
	// TypeAuctionBid is emitted when a bidder settles an auction.
	TypeAuctionBid = "auction.bid"
	// TypeAuctionForgiven is emitted when an expired auction is written off.
	TypeAuctionForgiven = "auction.forgiven"
	// TypeAuctionParamsUpdated is emitted when the schedule changes.
	TypeAuctionParamsUpdated = "auction.params_updated"
)

type AuctionStarted struct {
	LoanID     uint64
	Market     string
	CallDebt   *big.Int
	Collateral *big.Int
	Timestamp  uint64
}

func (AuctionStarted) EventType() string { return TypeAuctionStarted }

func (e AuctionStarted) Event() *types.Event {
	return &types.Event{
		Type: TypeAuctionStarted,
		Attributes: map[string]string{
			"loan":       loanID(e.LoanID),
			"market":     e.Market,
			"callDebt":   amount(e.CallDebt),
			"collateral": amount(e.Collateral),
			"timestamp":  timestamp(e.Timestamp),
		},
	}
}

type AuctionBid struct {
	LoanID        uint64
	Bidder        [20]byte
	CollateralOut *big.Int
	CreditIn      *big.Int
	Timestamp     uint64
}

func (AuctionBid) EventType() string { return TypeAuctionBid }

func (e AuctionBid) Event() *types.Event {
	return &types.Event{
		Type: TypeAuctionBid,
		Attributes: map[string]string{
			"loan":          loanID(e.LoanID),
			"bidder":        address(e.Bidder),
			"collateralOut": amount(e.CollateralOut),
			"creditIn":      amount(e.CreditIn),
			"timestamp":     timestamp(e.Timestamp),
		},
	}
}

type AuctionForgiven struct {
	LoanID    uint64
	Timestamp uint64
}

func (AuctionForgiven) EventType() string { return TypeAuctionForgiven }

func (e AuctionForgiven) Event() *types.Event {
	return &types.Event{
		Type: TypeAuctionForgiven,
		Attributes: map[string]string{
			"loan":      loanID(e.LoanID),
			"timestamp": timestamp(e.Timestamp),
		},
	}
}

type AuctionParamsUpdated struct {
	MidPoint uint64
	Duration uint64
}

func (AuctionParamsUpdated) EventType() string { return TypeAuctionParamsUpdated }

func (e AuctionParamsUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeAuctionParamsUpdated,
		Attributes: map[string]string{
			"midPoint": strconv.FormatUint(e.MidPoint, 10),
			"duration": strconv.FormatUint(e.Duration, 10),
		},
	}
}
