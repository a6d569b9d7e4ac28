package common

import (
	"fmt"
	"strings"
)

// Role names a capability that can be granted to an address.
type Role string

const (
	RoleGovernor          Role = "governor"
	RoleGuardian          Role = "guardian"
	RoleSurplusWithdrawer Role = "surplus_withdrawer"
	RoleGaugeOracle       Role = "gauge_oracle"
	RoleGuildAllocator    Role = "guild_allocator"
	// Module roles are never granted to accounts; engines attach them to the
	// callers they construct for cross-module calls.
	RoleLendingModule Role = "module:lending"
	RoleAuctionModule Role = "module:auction"
)

// GrantableRoles lists the roles governance may assign to accounts.
var GrantableRoles = []Role{
	RoleGovernor,
	RoleGuardian,
	RoleSurplusWithdrawer,
	RoleGaugeOracle,
	RoleGuildAllocator,
}

// ParseRole validates a role name supplied by governance.
func ParseRole(raw string) (Role, error) {
	trimmed := Role(strings.ToLower(strings.TrimSpace(raw)))
	for _, role := range GrantableRoles {
		if role == trimmed {
			return role, nil
		}
	}
	return "", NewError(ErrConfigInvalid, fmt.Sprintf("unknown role %q", raw))
}

// Operation identifies an entry point checked against a Policy.
type Operation string

const (
	OpBorrow            Operation = "borrow"
	OpRepay             Operation = "repay"
	OpPartialRepay      Operation = "partial_repay"
	OpCall              Operation = "call"
	OpBid               Operation = "bid"
	OpForgive           Operation = "forgive"
	OpDonate            Operation = "donate"
	OpWithdrawSurplus   Operation = "withdraw_surplus"
	OpClaimGuildRewards Operation = "claim_guild_rewards"
	OpTransfer          Operation = "transfer"

	OpSetRateLimit     Operation = "set_rate_limit"
	OpSetBufferCap     Operation = "set_buffer_cap"
	OpSetMarketParam   Operation = "set_market_param"
	OpSetAuctionParams Operation = "set_auction_params"
	OpSetProfitSharing Operation = "set_profit_sharing"
	OpGrantRole        Operation = "grant_role"
	OpPause            Operation = "pause"
	OpSetGauge         Operation = "set_gauge"

	OpDeplete        Operation = "deplete"
	OpReplenish      Operation = "replenish"
	OpStartAuction   Operation = "start_auction"
	OpResolveAuction Operation = "resolve_auction"
	OpNotifyPnL      Operation = "notify_pnl"
)

// Caller is the authorization context passed into every operation.
type Caller struct {
	Address [20]byte
	Roles   []Role
}

// Has reports whether the caller carries role.
func (c Caller) Has(role Role) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ModuleCaller builds the caller used by a module account for internal calls.
func ModuleCaller(addr [20]byte, role Role) Caller {
	return Caller{Address: addr, Roles: []Role{role}}
}

// Policy maps each operation to the roles allowed to invoke it. An operation
// mapped to an empty list is public; an operation missing from the table is
// denied.
type Policy map[Operation][]Role

// DefaultPolicy returns the role table used by the protocol.
func DefaultPolicy() Policy {
	return Policy{
		OpBorrow:            {},
		OpRepay:             {},
		OpPartialRepay:      {},
		OpCall:              {},
		OpBid:               {},
		OpForgive:           {},
		OpDonate:            {},
		OpWithdrawSurplus:   {RoleSurplusWithdrawer},
		OpClaimGuildRewards: {RoleGuildAllocator},
		OpTransfer:          {},
		OpSetRateLimit:      {RoleGovernor},
		OpSetBufferCap:      {RoleGovernor},
		OpSetMarketParam:    {RoleGovernor},
		OpSetAuctionParams:  {RoleGovernor},
		OpSetProfitSharing:  {RoleGovernor},
		OpGrantRole:         {RoleGovernor},
		OpPause:             {RoleGuardian, RoleGovernor},
		OpSetGauge:          {RoleGaugeOracle},
		OpDeplete:           {RoleLendingModule},
		OpReplenish:         {RoleLendingModule},
		OpStartAuction:      {RoleLendingModule},
		OpResolveAuction:    {RoleAuctionModule},
		OpNotifyPnL:         {RoleLendingModule},
	}
}

// Authorize returns nil when caller may invoke op.
func (p Policy) Authorize(op Operation, caller Caller) error {
	allowed, ok := p[op]
	if !ok {
		return fmt.Errorf("%w: operation %s not permitted", ErrUnauthorized, op)
	}
	if len(allowed) == 0 {
		return nil
	}
	for _, role := range allowed {
		if caller.Has(role) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s requires one of %v", ErrUnauthorized, op, allowed)
}
