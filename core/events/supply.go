package events

import (
	"math/big"
	"strings"

	"creditguild/core/types"
)

const (
	// TypeTokenSupply is emitted whenever a denomination's supply changes.
	TypeTokenSupply = "bank.supply"
	// TypeTransfer is emitted for every balance movement between accounts.
	TypeTransfer = "bank.transfer"

	// SupplyReasonMint identifies mint driven supply increases.
	SupplyReasonMint = "mint"
	// SupplyReasonBurn identifies burn driven supply decreases.
	SupplyReasonBurn = "burn"
)

// TokenSupply captures a supply delta for a fungible denomination.
type TokenSupply struct {
	Denom  string
	Total  *big.Int
	Delta  *big.Int
	Reason string
}

func (TokenSupply) EventType() string { return TypeTokenSupply }

// Event renders the structured supply change event for downstream consumers.
func (e TokenSupply) Event() *types.Event {
	attrs := map[string]string{}
	denom := normalizeAsset(e.Denom)
	if denom == "" {
		denom = "unknown"
	}
	attrs["denom"] = denom
	attrs["total"] = amount(e.Total)
	if e.Delta != nil {
		attrs["delta"] = e.Delta.String()
	}
	reason := strings.TrimSpace(e.Reason)
	if reason != "" {
		attrs["reason"] = reason
	}
	return &types.Event{Type: TypeTokenSupply, Attributes: attrs}
}

// Transfer records a balance movement.
type Transfer struct {
	Denom  string
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	return &types.Event{
		Type: TypeTransfer,
		Attributes: map[string]string{
			"denom":  normalizeAsset(e.Denom),
			"from":   address(e.From),
			"to":     address(e.To),
			"amount": amount(e.Amount),
		},
	}
}
