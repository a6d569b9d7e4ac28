package events

import (
	"math/big"

	"creditguild/core/types"
)

// TypeRateLimitParamsUpdated is emitted when governance changes a buffer.
const TypeRateLimitParamsUpdated = "ratelimit.params_updated"

type RateLimitParamsUpdated struct {
	Authority     string
	Capacity      *big.Int
	RatePerSecond *big.Int
}

func (RateLimitParamsUpdated) EventType() string { return TypeRateLimitParamsUpdated }

func (e RateLimitParamsUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeRateLimitParamsUpdated,
		Attributes: map[string]string{
			"authority":     e.Authority,
			"capacity":      amount(e.Capacity),
			"ratePerSecond": amount(e.RatePerSecond),
		},
	}
}
